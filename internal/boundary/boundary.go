// Package boundary is the trusted side of the keycheck setup. It owns the
// user's attributes and sealed secrets, and forwards requests to the data
// server after replacing secret placeholders with the stored values. Clients
// only ever handle placeholders.
package boundary

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"git.sr.ht/~jakintosh/keycheck/pkg/identity"
	"git.sr.ht/~jakintosh/keycheck/pkg/secretref"
)

var (
	ErrSecretNotFound    = errors.New("secret not found")
	ErrInvalidSecretName = errors.New("invalid secret name")
	ErrEmptySecret       = errors.New("secret value is empty")
	ErrInternal          = errors.New("internal error")
)

// SecretStore handles persistence of sealed secrets, keyed by owner and name.
type SecretStore interface {
	PutSecret(owner string, name string, sealed []byte) error
	GetSecret(owner string, name string) ([]byte, error)
	DeleteSecret(owner string, name string) (deleted bool, err error)
	ListSecrets(owner string) ([]string, error)
}

type Config struct {
	Store    SecretStore
	Sealer   *Sealer
	User     identity.Caller
	Upstream string

	// HTTPClient forwards proxied requests. Defaults to a client that does
	// not follow redirects.
	HTTPClient *http.Client

	Log logrus.FieldLogger
}

type Boundary struct {
	store    SecretStore
	sealer   *Sealer
	user     identity.Caller
	upstream *url.URL
	client   *http.Client
	log      logrus.FieldLogger
}

func New(cfg Config) (*Boundary, error) {
	if cfg.Store == nil || cfg.Sealer == nil {
		return nil, fmt.Errorf("boundary needs a secret store and a sealer")
	}
	if cfg.User.Email == "" {
		return nil, fmt.Errorf("boundary needs a user email")
	}
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q", cfg.Upstream)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return &Boundary{
		store:    cfg.Store,
		sealer:   cfg.Sealer,
		user:     cfg.User,
		upstream: upstream,
		client:   client,
		log:      cfg.Log,
	}, nil
}

// User returns the attributes served on /api/me.
func (b *Boundary) User() identity.Caller {
	return b.user
}

// SetSecret seals value and stores it under name for the boundary's user.
func (b *Boundary) SetSecret(
	name string,
	value string,
) error {
	if !secretref.ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSecretName, name)
	}
	if value == "" {
		return ErrEmptySecret
	}

	sealed, err := b.sealer.Seal([]byte(value))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if err := b.store.PutSecret(b.user.Email, name, sealed); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}

	b.log.WithField("secret", name).Info("secret updated")
	return nil
}

// Secret returns the plaintext of a stored secret.
func (b *Boundary) Secret(
	name string,
) (
	string,
	error,
) {
	sealed, err := b.store.GetSecret(b.user.Email, name)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	plain, err := b.sealer.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return string(plain), nil
}

func (b *Boundary) DeleteSecret(name string) error {
	deleted, err := b.store.DeleteSecret(b.user.Email, name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	b.log.WithField("secret", name).Info("secret deleted")
	return nil
}

func (b *Boundary) SecretNames() ([]string, error) {
	names, err := b.store.ListSecrets(b.user.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return names, nil
}

// lookup resolves placeholders during expansion. Store failures are logged
// and treated as a missing secret.
func (b *Boundary) lookup(name string) (string, bool) {
	value, err := b.Secret(name)
	if err != nil {
		if !errors.Is(err, ErrSecretNotFound) {
			b.log.WithError(err).WithField("secret", name).Error("secret lookup failed")
		}
		return "", false
	}
	return value, true
}
