package tokens

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type validateError struct {
	context string
	err     error
}

func (t *validateError) Context() string { return t.context }
func (t *validateError) Error() string   { return fmt.Sprintf("%v", t.err) }
func (t *validateError) Unwrap() error   { return t.err }

var (
	errTokenMalformed       = errors.New("token malformed")
	errTokenBadSignature    = errors.New("token bad signature")
	errTokenInvalidAudience = errors.New("token invalid audience")
	errTokenInvalidIssuer   = errors.New("token invalid issuer")
	errTokenExpired         = errors.New("token expired")
	errTokenNotIssued       = errors.New("token not issued yet")
)

func ErrTokenMalformed() error       { return errTokenMalformed }
func ErrTokenBadSignature() error    { return errTokenBadSignature }
func ErrTokenInvalidAudience() error { return errTokenInvalidAudience }
func ErrTokenInvalidIssuer() error   { return errTokenInvalidIssuer }
func ErrTokenExpired() error         { return errTokenExpired }
func ErrTokenNotIssued() error       { return errTokenNotIssued }

type Issuer interface {
	IssueSessionToken(string, string, []string, time.Duration) (*SessionToken, error)
}

type Validator interface {
	VerificationKey() *ecdsa.PublicKey
	ParserOptions() []jwt.ParserOption
}

func InitServer(
	signingKey *ecdsa.PrivateKey,
	issuerDomain string,
) (
	Issuer,
	Validator,
) {
	server := &Server{
		signingKey:      signingKey,
		verificationKey: &signingKey.PublicKey,
		issuerDomain:    issuerDomain,
	}
	return server, server
}

func InitClient(
	verificationKey *ecdsa.PublicKey,
	issuerDomain string,
	validAudience string,
) Validator {
	return &Client{
		verificationKey: verificationKey,
		issuerDomain:    issuerDomain,
		validAudience:   validAudience,
	}
}

func baseParserOptions(issuerDomain string) []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(issuerDomain),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
}

func decodeToken(tokenStr string, validator Validator) (*SessionClaims, *validateError) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(*jwt.Token) (any, error) { return validator.VerificationKey(), nil },
		validator.ParserOptions()...,
	)
	if err != nil {
		return nil, &validateError{
			context: fmt.Sprintf("token rejected: %v", err),
			err:     classify(err),
		}
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return errTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return errTokenBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return errTokenExpired
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenNotValidYet):
		return errTokenNotIssued
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return errTokenInvalidIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return errTokenInvalidAudience
	default:
		return errTokenMalformed
	}
}
