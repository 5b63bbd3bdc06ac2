// Package service implements the business logic of the keycheck data server:
// checking submitted keys against registered hashes, issuing session tokens,
// and validating them again on the protected ping route.
package service

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"git.sr.ht/~jakintosh/keycheck/pkg/tokens"
)

var (
	ErrInvalidKey    = errors.New("invalid key")
	ErrKeyMissing    = errors.New("key missing")
	ErrKeyTooLong    = errors.New("key too long")
	ErrKeyExists     = errors.New("key already registered")
	ErrKeyNotFound   = errors.New("key not found")
	ErrCheckNotFound = errors.New("check not found")
	ErrInvalidCheck  = errors.New("invalid check definition")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrInternal      = errors.New("internal error")
)

// HashMode controls the bcrypt cost for key hashing.
type HashMode int

const (
	// HashModeProduction uses bcrypt.DefaultCost.
	HashModeProduction HashMode = iota
	// HashModeTesting uses bcrypt.MinCost. Panics outside of go test.
	HashModeTesting
)

// Cost returns the bcrypt cost for this mode.
func (m HashMode) Cost() int {
	switch m {
	case HashModeTesting:
		if !testing.Testing() {
			panic("service: HashModeTesting used outside of test environment")
		}
		return bcrypt.MinCost
	default:
		return bcrypt.DefaultCost
	}
}

// Service checks keys for the profiles in its catalog. It depends on a
// KeyStore for persistence and a token issuer/validator pair.
type Service struct {
	keyStore       KeyStore
	catalog        *CheckCatalog
	tokenIssuer    tokens.Issuer
	tokenValidator tokens.Validator
	hashMode       HashMode
	log            logrus.FieldLogger
}

func New(
	keyStore KeyStore,
	catalog *CheckCatalog,
	issuer tokens.Issuer,
	validator tokens.Validator,
	hashMode HashMode,
	log logrus.FieldLogger,
) *Service {
	return &Service{
		keyStore:       keyStore,
		catalog:        catalog,
		tokenIssuer:    issuer,
		tokenValidator: validator,
		hashMode:       hashMode,
		log:            log,
	}
}

func (s *Service) Catalog() *CheckCatalog {
	return s.catalog
}
