// Package client talks to a key-verification data server.
//
// It implements the two network calls of the verification workflow: the
// verification call, which exchanges a secret placeholder for a session
// token, and the probe, which presents that token as a bearer credential.
//
// # Quick Start
//
//	c := client.New("https://boundary.example.com/proxy")
//
//	res, err := c.Verify(ctx, profile.AccessKey, client.VerificationRequest{
//	    Placeholder: secretref.Tag("access_key"),
//	    DisplayName: "Ada",
//	    Email:       "ada@example.com",
//	})
//	if err != nil {
//	    // transport failure
//	}
//	token, ok := res.Token()
//
//	probe, err := c.Probe(ctx, token)
//	if err == nil && probe.OK {
//	    // token accepted
//	}
//
// # Errors
//
// Only transport failures are returned as errors, wrapped in [ErrTransport].
// A rejected key or token is a normal response with OK set to false.
//
// # Testing
//
// Consumers should depend on the [Verifier] and [Prober] interfaces rather
// than *Client so fakes can stand in for the network.
package client
