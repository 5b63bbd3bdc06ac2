package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/keycheck/internal/service"
)

func (s *SQLiteStore) KeyStore() service.KeyStore {
	return s
}

func (s *SQLiteStore) InsertKey(
	profile string,
	label string,
	hash []byte,
) error {
	_, err := s.db.Exec(`
		INSERT INTO key (profile, label, hash, created)
		VALUES (?1, ?2, ?3, ?4);`,
		profile,
		label,
		hash,
		time.Now().Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s", service.ErrKeyExists, profile, label)
		}
		return fmt.Errorf("couldn't insert into key: %v", err)
	}
	return nil
}

func (s *SQLiteStore) GetKeyHashes(
	profile string,
) (
	[]service.KeyRecord,
	error,
) {
	rows, err := s.db.Query(`
		SELECT label, hash
		FROM key
		WHERE profile=?1
		ORDER BY id;`,
		profile,
	)
	if err != nil {
		return nil, fmt.Errorf("couldn't query key: %v", err)
	}
	defer rows.Close()

	var records []service.KeyRecord
	for rows.Next() {
		var record service.KeyRecord
		if err := rows.Scan(&record.Label, &record.Hash); err != nil {
			return nil, fmt.Errorf("couldn't scan key: %v", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) DeleteKey(
	profile string,
	label string,
) (
	bool,
	error,
) {
	result, err := s.db.Exec(`
		DELETE FROM key
		WHERE profile=?1 AND label=?2;`,
		profile,
		label,
	)
	if err != nil {
		return false, fmt.Errorf("couldn't delete from key: %v", err)
	}
	return !resultsEmpty(result), nil
}

func isUniqueViolation(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		// SQLITE_CONSTRAINT_UNIQUE
		return coded.Code() == 2067
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
