// Package testutil provides test environment setup and utilities for internal package tests.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"git.sr.ht/~jakintosh/keycheck/internal/api"
	"git.sr.ht/~jakintosh/keycheck/internal/boundary"
	"git.sr.ht/~jakintosh/keycheck/internal/database"
	"git.sr.ht/~jakintosh/keycheck/internal/service"
	"git.sr.ht/~jakintosh/keycheck/pkg/identity"
	"git.sr.ht/~jakintosh/keycheck/pkg/tokens"
)

const (
	IssuerDomain    = "test.keycheck.local"
	DefaultLifetime = 30 * time.Minute
)

var (
	sharedSigningKey     *ecdsa.PrivateKey
	sharedSigningKeyOnce sync.Once
)

// getSharedSigningKey returns a cached ECDSA signing key for tests.
// This avoids the overhead of generating a new key for each test.
func getSharedSigningKey() *ecdsa.PrivateKey {
	sharedSigningKeyOnce.Do(func() {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			panic("failed to generate shared signing key: " + err.Error())
		}
		sharedSigningKey = key
	})
	return sharedSigningKey
}

// TestEnv provides all dependencies needed for testing the data server
type TestEnv struct {
	DB             *database.SQLiteStore
	Service        *service.Service
	Catalog        *service.CheckCatalog
	Router         http.Handler
	TokenIssuer    tokens.Issuer
	TokenValidator tokens.Validator
	Log            *logrus.Logger
	LogHook        *test.Hook
}

// SetupTestEnv creates an isolated test environment with in-memory SQLite
// and the catalog in testdata/checks
func SetupTestEnv(
	t *testing.T,
) *TestEnv {
	t.Helper()
	return SetupTestEnvWithCatalog(t, GetTestDataPath("checks"))
}

// SetupTestEnvWithCatalog is SetupTestEnv with a caller-chosen catalog
// directory; "" serves only the built-in profiles
func SetupTestEnvWithCatalog(
	t *testing.T,
	catalogDir string,
) *TestEnv {
	t.Helper()

	// create in-memory SQLite database
	db, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// use cached signing key (generated once across all tests)
	issuer, validator := tokens.InitServer(getSharedSigningKey(), IssuerDomain)

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	catalog, err := service.NewCheckCatalog(catalogDir, DefaultLifetime, log)
	if err != nil {
		t.Fatalf("failed to load test catalog: %v", err)
	}

	svc := service.New(
		db.KeyStore(),
		catalog,
		issuer,
		validator,
		service.HashModeTesting,
		log,
	)

	// setup cleanup
	t.Cleanup(func() {
		_ = db.Close()
	})

	return &TestEnv{
		DB:             db,
		Service:        svc,
		Catalog:        catalog,
		Router:         api.New(svc, log).Router(),
		TokenIssuer:    issuer,
		TokenValidator: validator,
		Log:            log,
		LogHook:        hook,
	}
}

// GetTestDataPath returns the path to a subdirectory in testdata
func GetTestDataPath(
	subdir string,
) string {
	_, filename, _, _ := runtime.Caller(0)
	// Go up from internal/testutil to repo root, then into testdata
	return filepath.Join(filepath.Dir(filename), "..", "..", "testdata", subdir)
}

// RegisterTestKey registers a key for a profile
func (env *TestEnv) RegisterTestKey(
	t *testing.T,
	profileName string,
	key string,
) {
	t.Helper()
	if err := env.Service.RegisterKey(profileName, "test", key); err != nil {
		t.Fatalf("failed to register test key: %v", err)
	}
}

// IssueTestSessionToken creates a session token for testing
func (env *TestEnv) IssueTestSessionToken(
	t *testing.T,
	subject string,
	audience []string,
) *tokens.SessionToken {
	t.Helper()
	token, err := env.TokenIssuer.IssueSessionToken(subject, "Test User", audience, DefaultLifetime)
	if err != nil {
		t.Fatalf("failed to issue test session token: %v", err)
	}
	return token
}

// TestUser is the caller served by test boundaries
var TestUser = identity.Caller{
	DisplayName: "Ada",
	Email:       "ada@example.com",
}

// BoundaryEnv provides a boundary backed by in-memory SQLite
type BoundaryEnv struct {
	DB       *database.SQLiteStore
	Boundary *boundary.Boundary
	Router   http.Handler
	LogHook  *test.Hook
}

// SetupBoundaryEnv creates a boundary for TestUser that forwards to upstream
func SetupBoundaryEnv(
	t *testing.T,
	upstream string,
) *BoundaryEnv {
	t.Helper()

	db, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	key, err := boundary.GenerateSealKey()
	if err != nil {
		t.Fatalf("failed to generate seal key: %v", err)
	}

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	b, err := boundary.New(boundary.Config{
		Store:    db.SecretStore(),
		Sealer:   boundary.NewSealer(key),
		User:     TestUser,
		Upstream: upstream,
		Log:      log,
	})
	if err != nil {
		t.Fatalf("failed to create boundary: %v", err)
	}

	return &BoundaryEnv{
		DB:       db,
		Boundary: b,
		Router:   b.Router(),
		LogHook:  hook,
	}
}

// SetTestSecret stores a secret for TestUser
func (env *BoundaryEnv) SetTestSecret(
	t *testing.T,
	name string,
	value string,
) {
	t.Helper()
	if err := env.Boundary.SetSecret(name, value); err != nil {
		t.Fatalf("failed to set test secret: %v", err)
	}
}
