package service_test

import (
	"errors"
	"strings"
	"testing"

	"git.sr.ht/~jakintosh/keycheck/internal/service"
	"git.sr.ht/~jakintosh/keycheck/internal/testutil"
	"git.sr.ht/~jakintosh/keycheck/pkg/tokens"
)

func TestCheck_ValidKey(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	env.RegisterTestKey(t, "access_key", "open-sesame")

	// matching key issues a token for the caller
	token, err := env.Service.Check("/access_check", map[string]string{
		"access_key": "open-sesame",
		"name":       "Ada",
		"email":      "ada@example.com",
	})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if token.Subject() != "ada@example.com" {
		t.Errorf("Subject = %s, want ada@example.com", token.Subject())
	}
	if token.Name() != "Ada" {
		t.Errorf("Name = %s, want Ada", token.Name())
	}

	// the token decodes with the server's validator
	decoded := &tokens.SessionToken{}
	if err := decoded.Decode(token.Encoded(), env.TokenValidator); err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if len(decoded.Audience()) != 1 || decoded.Audience()[0] != "access" {
		t.Errorf("Audience = %v, want [access]", decoded.Audience())
	}
}

func TestCheck_AnyRegisteredKeyMatches(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	if err := env.Service.RegisterKey("license_key", "first", "key-one"); err != nil {
		t.Fatal(err)
	}
	if err := env.Service.RegisterKey("license_key", "second", "key-two"); err != nil {
		t.Fatal(err)
	}

	// second key also verifies
	if _, err := env.Service.Check("/license_check", map[string]string{"license_key": "key-two"}); err != nil {
		t.Errorf("Check with second key failed: %v", err)
	}
}

func TestCheck_WrongKey(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	env.RegisterTestKey(t, "access_key", "open-sesame")

	_, err := env.Service.Check("/access_check", map[string]string{"access_key": "guess"})
	if !errors.Is(err, service.ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestCheck_OversizedKey(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	env.RegisterTestKey(t, "access_key", "open-sesame")

	// longer than any hashable key is invalid without touching stored hashes
	_, err := env.Service.Check("/access_check", map[string]string{"access_key": strings.Repeat("k", 73)})
	if !errors.Is(err, service.ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	for _, entry := range env.LogHook.AllEntries() {
		if strings.Contains(entry.Message, "unusable hash") {
			t.Errorf("unexpected log entry: %s", entry.Message)
		}
	}
}

func TestCheck_KeyScopedToProfile(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	env.RegisterTestKey(t, "access_key", "open-sesame")

	// an access key is not a license key
	_, err := env.Service.Check("/license_check", map[string]string{"license_key": "open-sesame"})
	if !errors.Is(err, service.ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestCheck_UnexpandedPlaceholderIsInvalid(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	env.RegisterTestKey(t, "access_key", "open-sesame")

	_, err := env.Service.Check("/access_check", map[string]string{"access_key": "{{secret:access_key}}"})
	if !errors.Is(err, service.ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestCheck_MissingKey(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	// key sent under the wrong field
	_, err := env.Service.Check("/access_check", map[string]string{"license_key": "x"})
	if !errors.Is(err, service.ErrKeyMissing) {
		t.Errorf("expected ErrKeyMissing, got %v", err)
	}
}

func TestCheck_UnknownPath(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	_, err := env.Service.Check("/other_check", map[string]string{"other": "x"})
	if !errors.Is(err, service.ErrCheckNotFound) {
		t.Errorf("expected ErrCheckNotFound, got %v", err)
	}
}

func TestCheck_CatalogLifetime(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	env.RegisterTestKey(t, "partner_key", "p4rtner")

	token, err := env.Service.Check("/partner_check", map[string]string{"partner_key": "p4rtner"})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	// the definition's lifetime wins over the default
	lifetime := token.Expiration().Sub(token.IssuedAt())
	if lifetime.Minutes() != 5 {
		t.Errorf("lifetime = %v, want 5m", lifetime)
	}
}
