package service

import (
	"fmt"

	"git.sr.ht/~jakintosh/keycheck/pkg/tokens"
)

// Ping validates a session token presented to the protected route.
func (s *Service) Ping(
	encodedToken string,
) (
	*tokens.SessionToken,
	error,
) {
	if encodedToken == "" {
		return nil, fmt.Errorf("%w: no token", ErrTokenInvalid)
	}

	token := &tokens.SessionToken{}
	if err := token.Decode(encodedToken, s.tokenValidator); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return token, nil
}
