package tokens

import (
	"crypto/ecdsa"

	"github.com/golang-jwt/jwt/v5"
)

// Client implements Validator for services that only hold the data server's
// public key. It also enforces that tokens were issued for its audience.
// Create one with InitClient.
type Client struct {
	verificationKey *ecdsa.PublicKey
	issuerDomain    string
	validAudience   string
}

//
// Validator interface

func (client *Client) VerificationKey() *ecdsa.PublicKey {
	return client.verificationKey
}

func (client *Client) ParserOptions() []jwt.ParserOption {
	return append(
		baseParserOptions(client.issuerDomain),
		jwt.WithAudience(client.validAudience),
	)
}
