package service_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/keycheck/internal/service"
	"git.sr.ht/~jakintosh/keycheck/internal/testutil"
	"git.sr.ht/~jakintosh/keycheck/pkg/tokens"
)

func TestPing_ValidToken(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	issued := env.IssueTestSessionToken(t, "ada@example.com", []string{"access"})

	token, err := env.Service.Ping(issued.Encoded())
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if token.Subject() != "ada@example.com" {
		t.Errorf("Subject = %s, want ada@example.com", token.Subject())
	}
}

func TestPing_Rejects(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	expired, err := env.TokenIssuer.IssueSessionToken("ada", "", []string{"access"}, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	otherKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	foreignIssuer, _ := tokens.InitServer(otherKey, testutil.IssuerDomain)
	foreign, err := foreignIssuer.IssueSessionToken("ada", "", []string{"access"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]string{
		"empty":   "",
		"garbage": "abc123",
		"expired": expired.Encoded(),
		"foreign": foreign.Encoded(),
	}
	for name, encoded := range cases {
		if _, err := env.Service.Ping(encoded); !errors.Is(err, service.ErrTokenInvalid) {
			t.Errorf("%s: expected ErrTokenInvalid, got %v", name, err)
		}
	}
}
