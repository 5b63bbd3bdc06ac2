package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the registered claims plus the caller's display name.
type SessionClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// SessionToken is the short-lived bearer token returned by a successful key
// check. The subject is the caller's email and the audience is the profile
// the key was checked against.
type SessionToken struct {
	id         string
	issuer     string
	issuedAt   time.Time
	expiration time.Time
	audience   []string
	subject    string
	name       string
	encoded    string
}

func (t *SessionToken) ID() string            { return t.id }
func (t *SessionToken) Issuer() string        { return t.issuer }
func (t *SessionToken) IssuedAt() time.Time   { return t.issuedAt }
func (t *SessionToken) Expiration() time.Time { return t.expiration }
func (t *SessionToken) Audience() []string    { return t.audience }
func (t *SessionToken) Subject() string       { return t.subject }
func (t *SessionToken) Name() string          { return t.name }
func (t *SessionToken) Encoded() string       { return t.encoded }

// Decode validates encToken and fills the token from its claims.
func (token *SessionToken) Decode(encToken string, validator Validator) error {
	claims, err := decodeToken(encToken, validator)
	if err != nil {
		return err
	}
	token.fromClaims(claims, encToken)
	return nil
}

func (token *SessionToken) intoClaims() *SessionClaims {
	return &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        token.id,
			Issuer:    token.issuer,
			Subject:   token.subject,
			Audience:  jwt.ClaimStrings(token.audience),
			IssuedAt:  jwt.NewNumericDate(token.issuedAt),
			ExpiresAt: jwt.NewNumericDate(token.expiration),
		},
		Name: token.name,
	}
}

func (token *SessionToken) fromClaims(claims *SessionClaims, encToken string) {
	token.id = claims.ID
	token.issuer = claims.Issuer
	token.subject = claims.Subject
	token.audience = []string(claims.Audience)
	token.name = claims.Name
	if claims.IssuedAt != nil {
		token.issuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		token.expiration = claims.ExpiresAt.Time
	}
	token.encoded = encToken
}
