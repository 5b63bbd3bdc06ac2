// Package tokens issues and validates the session tokens handed out by the
// keycheck data server.
//
// Tokens are ES256 (ECDSA P-256 with SHA-256) signed JSON Web Tokens. The
// package has two roles:
//
//   - Server: issues and validates tokens with a private signing key
//   - Client: validates tokens with the server's public verification key
//
// # Server Usage (Issuing Tokens)
//
//	issuer, validator := tokens.InitServer(signingKey, "keycheck.example.com")
//
//	// Issue a token for a verified access key, valid for 30 minutes
//	token, err := issuer.IssueSessionToken(
//	    "ada@example.com",  // subject (caller email)
//	    "Ada",              // display name
//	    []string{"access"}, // audience (profile audience)
//	    30*time.Minute,     // lifetime
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tokenString := token.Encoded()
//
// # Client Usage (Validating Tokens)
//
//	validator := tokens.InitClient(publicKey, "keycheck.example.com", "access")
//
//	token := &tokens.SessionToken{}
//	if err := token.Decode(tokenString, validator); err != nil {
//	    return fmt.Errorf("invalid token: %w", err)
//	}
//
// # Error Handling
//
//	err := token.Decode(tokenString, validator)
//	switch {
//	case errors.Is(err, tokens.ErrTokenExpired()):
//	    // Token has expired
//	case errors.Is(err, tokens.ErrTokenInvalidAudience()):
//	    // Token not intended for this audience
//	case errors.Is(err, tokens.ErrTokenBadSignature()):
//	    // Token signature verification failed
//	case errors.Is(err, tokens.ErrTokenMalformed()):
//	    // Token structure is invalid
//	}
//
// Signing keys are stored as DER; see LoadOrCreateSigningKey and
// DecodeVerificationKey.
package tokens
