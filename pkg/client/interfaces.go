package client

import (
	"context"

	"git.sr.ht/~jakintosh/keycheck/pkg/profile"
)

// Verifier submits a verification request.
type Verifier interface {
	Verify(ctx context.Context, p profile.Profile, req VerificationRequest) (*VerificationResponse, error)
}

// Prober presents a session token to the probe endpoint.
type Prober interface {
	Probe(ctx context.Context, token string) (*ProbeResult, error)
}

var _ Verifier = (*Client)(nil)
var _ Prober = (*Client)(nil)
