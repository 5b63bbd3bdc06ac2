package tokens

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Server implements both Issuer and Validator for the data server. It holds
// the private signing key and the matching public key. Create one with
// InitServer.
type Server struct {
	signingKey      *ecdsa.PrivateKey
	verificationKey *ecdsa.PublicKey
	issuerDomain    string
}

//
// Issuer interface

func (server *Server) IssueSessionToken(
	subject string,
	name string,
	audience []string,
	lifetime time.Duration,
) (*SessionToken, error) {

	// jwt numeric dates have second precision
	now := time.Now().Truncate(time.Second)
	token := &SessionToken{
		id:         uuid.NewString(),
		issuer:     server.issuerDomain,
		issuedAt:   now,
		expiration: now.Add(lifetime),
		audience:   audience,
		subject:    subject,
		name:       name,
	}

	encoded, err := jwt.
		NewWithClaims(jwt.SigningMethodES256, token.intoClaims()).
		SignedString(server.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %v", err)
	}
	token.encoded = encoded

	return token, nil
}

//
// Validator interface

func (server *Server) VerificationKey() *ecdsa.PublicKey {
	return server.verificationKey
}

// ParserOptions checks the issuer but accepts any audience; the server
// validates tokens for every profile it serves.
func (server *Server) ParserOptions() []jwt.ParserOption {
	return baseParserOptions(server.issuerDomain)
}
