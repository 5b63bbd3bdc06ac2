package service

// KeyRecord is a registered key hash and the label it was registered under.
type KeyRecord struct {
	Label string
	Hash  []byte
}

// KeyStore handles persistence of registered key hashes
type KeyStore interface {
	InsertKey(profile string, label string, hash []byte) error
	GetKeyHashes(profile string) ([]KeyRecord, error)
	DeleteKey(profile string, label string) (deleted bool, err error)
}
