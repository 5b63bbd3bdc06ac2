// Package keychecktest runs a complete keycheck setup in-process for tests:
// a data server and a trusted boundary on httptest servers, each backed by
// in-memory SQLite, plus helpers to mint session tokens and to build
// workflows wired to the stack.
package keychecktest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"git.sr.ht/~jakintosh/keycheck/internal/api"
	"git.sr.ht/~jakintosh/keycheck/internal/boundary"
	"git.sr.ht/~jakintosh/keycheck/internal/database"
	"git.sr.ht/~jakintosh/keycheck/internal/logging"
	"git.sr.ht/~jakintosh/keycheck/internal/service"
	"git.sr.ht/~jakintosh/keycheck/pkg/client"
	"git.sr.ht/~jakintosh/keycheck/pkg/identity"
	"git.sr.ht/~jakintosh/keycheck/pkg/message"
	"git.sr.ht/~jakintosh/keycheck/pkg/profile"
	"git.sr.ht/~jakintosh/keycheck/pkg/secretref"
	"git.sr.ht/~jakintosh/keycheck/pkg/session"
	"git.sr.ht/~jakintosh/keycheck/pkg/tokens"
	"git.sr.ht/~jakintosh/keycheck/pkg/workflow"
)

const DefaultIssuerDomain = "keycheck.test"

// DefaultUser is the boundary user when Options.User is empty.
var DefaultUser = identity.Caller{
	DisplayName: "Test User",
	Email:       "test@keycheck.test",
}

// Keys holds cryptographic keys for testing.
type Keys struct {
	SigningKey      *ecdsa.PrivateKey
	VerificationKey *ecdsa.PublicKey
	IssuerDomain    string
}

// NewKeys generates a new ECDSA P-256 keypair for testing.
func NewKeys(issuerDomain string) (*Keys, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	return &Keys{
		SigningKey:      privateKey,
		VerificationKey: &privateKey.PublicKey,
		IssuerDomain:    issuerDomain,
	}, nil
}

// NewSessionToken mints an encoded session token signed with keys.
func NewSessionToken(
	keys *Keys,
	subject string,
	audience string,
	lifetime time.Duration,
) (string, error) {
	issuer, _ := tokens.InitServer(keys.SigningKey, keys.IssuerDomain)
	token, err := issuer.IssueSessionToken(subject, "", []string{audience}, lifetime)
	if err != nil {
		return "", err
	}
	return token.Encoded(), nil
}

// Options configures NewStack.
type Options struct {
	// Keys maps a profile name to the key registered for it on the data
	// server.
	Keys map[string]string

	// Secrets maps a secret name to the value stored in the boundary.
	Secrets map[string]string

	// User is served on the boundary's /api/me. Defaults to DefaultUser.
	User identity.Caller

	// CatalogDir holds extra check definitions. Empty serves the built-ins.
	CatalogDir string

	// TokenLifetime defaults to 30 minutes.
	TokenLifetime time.Duration

	// Log receives both servers' logs. Defaults to discarding them.
	Log logrus.FieldLogger
}

// Stack is a running data server and boundary. The boundary forwards
// /proxy/* to the data server.
type Stack struct {
	DataServer     *httptest.Server
	BoundaryServer *httptest.Server
	Keys           *Keys
	User           identity.Caller

	service  *service.Service
	boundary *boundary.Boundary
}

// NewStack starts the stack and registers its shutdown with t.Cleanup.
func NewStack(t testing.TB, opts Options) *Stack {
	t.Helper()

	if opts.User.Email == "" {
		opts.User = DefaultUser
	}
	if opts.TokenLifetime <= 0 {
		opts.TokenLifetime = 30 * time.Minute
	}
	var log logrus.FieldLogger = opts.Log
	if log == nil {
		log = logging.Discard()
	}

	keys, err := NewKeys(DefaultIssuerDomain)
	if err != nil {
		t.Fatalf("failed to generate keys: %v", err)
	}

	// data server
	keyDB, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create key store: %v", err)
	}
	t.Cleanup(func() { _ = keyDB.Close() })

	catalog, err := service.NewCheckCatalog(opts.CatalogDir, opts.TokenLifetime, log)
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	issuer, validator := tokens.InitServer(keys.SigningKey, keys.IssuerDomain)
	svc := service.New(keyDB.KeyStore(), catalog, issuer, validator, service.HashModeTesting, log)

	dataServer := httptest.NewServer(api.New(svc, log.WithField("server", "data")).Router())
	t.Cleanup(dataServer.Close)

	// boundary
	secretDB, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create secret store: %v", err)
	}
	t.Cleanup(func() { _ = secretDB.Close() })

	sealKey, err := boundary.GenerateSealKey()
	if err != nil {
		t.Fatalf("failed to generate seal key: %v", err)
	}
	b, err := boundary.New(boundary.Config{
		Store:    secretDB.SecretStore(),
		Sealer:   boundary.NewSealer(sealKey),
		User:     opts.User,
		Upstream: dataServer.URL,
		Log:      log.WithField("server", "boundary"),
	})
	if err != nil {
		t.Fatalf("failed to create boundary: %v", err)
	}

	boundaryServer := httptest.NewServer(b.Router())
	t.Cleanup(boundaryServer.Close)

	stack := &Stack{
		DataServer:     dataServer,
		BoundaryServer: boundaryServer,
		Keys:           keys,
		User:           opts.User,
		service:        svc,
		boundary:       b,
	}
	for profileName, key := range opts.Keys {
		stack.RegisterKey(t, profileName, key)
	}
	for name, value := range opts.Secrets {
		stack.SetSecret(t, name, value)
	}
	return stack
}

// ProxyURL is the base URL clients use to reach the data server through the
// boundary.
func (s *Stack) ProxyURL() string {
	return s.BoundaryServer.URL + boundary.ProxyPrefix
}

// RegisterKey registers key for a profile on the data server.
func (s *Stack) RegisterKey(t testing.TB, profileName string, key string) {
	t.Helper()
	if err := s.service.RegisterKey(profileName, "test", key); err != nil {
		t.Fatalf("failed to register key for %s: %v", profileName, err)
	}
}

// RevokeKey removes a key registered with RegisterKey.
func (s *Stack) RevokeKey(t testing.TB, profileName string) {
	t.Helper()
	if err := s.service.RevokeKey(profileName, "test"); err != nil {
		t.Fatalf("failed to revoke key for %s: %v", profileName, err)
	}
}

// SetSecret stores a secret for the stack's user in the boundary.
func (s *Stack) SetSecret(t testing.TB, name string, value string) {
	t.Helper()
	if err := s.boundary.SetSecret(name, value); err != nil {
		t.Fatalf("failed to set secret %s: %v", name, err)
	}
}

// Secret returns the stored value of a secret, or "" if none is stored.
func (s *Stack) Secret(name string) string {
	value, _ := s.boundary.Secret(name)
	return value
}

// Client returns a client that reaches the data server through the boundary.
func (s *Stack) Client() *client.Client {
	return client.New(s.ProxyURL(), client.WithHTTPClient(s.BoundaryServer.Client()))
}

// Workflow builds a workflow for p wired to the stack: identity and secret
// writes go to the boundary, checks and probes through its proxy.
func (s *Stack) Workflow(
	t testing.TB,
	p profile.Profile,
	sink message.Sink,
) (
	*workflow.Workflow,
	*session.Holder,
) {
	t.Helper()

	httpClient := s.BoundaryServer.Client()
	c := s.Client()
	holder := session.NewHolder()

	w, err := workflow.New(workflow.Config{
		Profile:  p,
		Identity: identity.NewHTTPLookup(s.BoundaryServer.URL, httpClient),
		Resolver: secretref.TagResolver{},
		Verifier: c,
		Prober:   c,
		Sink:     sink,
		Holder:   holder,
		Writer:   secretref.NewHTTPWriter(s.BoundaryServer.URL, httpClient),
	})
	if err != nil {
		t.Fatalf("failed to build workflow: %v", err)
	}
	return w, holder
}
