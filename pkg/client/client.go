package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"git.sr.ht/~jakintosh/keycheck/pkg/profile"
	"git.sr.ht/~jakintosh/keycheck/pkg/secretref"
)

var ErrTransport = errors.New("transport failure")

const (
	PingPath   = "/ping"
	ChecksPath = "/checks"

	maxResponseBytes = 1 << 20
)

// VerificationRequest is serialized with the placeholder under the profile's
// key field, alongside the caller's name and email.
type VerificationRequest struct {
	Placeholder secretref.Placeholder
	DisplayName string
	Email       string
}

func (r VerificationRequest) body(keyField string) ([]byte, error) {
	return json.Marshal(map[string]string{
		keyField: string(r.Placeholder),
		"name":   r.DisplayName,
		"email":  r.Email,
	})
}

type VerificationBody struct {
	JWTToken string `json:"jwt_token,omitempty"`
}

// VerificationResponse mirrors the proxied response: OK is true for any 2xx
// status, and Body is nil when the response carried no JSON object.
type VerificationResponse struct {
	OK     bool
	Status int
	Body   *VerificationBody
}

// Token returns the session token if the response verified the key. A
// non-OK response and an OK response without a token are treated alike.
func (r *VerificationResponse) Token() (string, bool) {
	if r == nil || !r.OK || r.Body == nil || r.Body.JWTToken == "" {
		return "", false
	}
	return r.Body.JWTToken, true
}

type ProbeResult struct {
	OK     bool
	Status int
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logrus.FieldLogger
}

type Option func(*Client)

// WithHTTPClient sets the client used for every call. Timeouts are the
// http.Client's; the Client itself enforces none.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL string, opts ...Option) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		log:        discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Verify posts the request to the profile's check endpoint.
func (c *Client) Verify(
	ctx context.Context,
	p profile.Profile,
	req VerificationRequest,
) (
	*VerificationResponse,
	error,
) {
	body, err := req.body(p.KeyField)
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification request: %w", err)
	}

	url := c.baseURL + p.CheckPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	log := c.log.WithFields(logrus.Fields{"profile": p.Name, "secret": p.SecretName})
	log.Debugf("posting verification request to %s", url)

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	response := &VerificationResponse{
		OK:     isSuccess(res.StatusCode),
		Status: res.StatusCode,
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		verificationBody := new(VerificationBody)
		if err := json.Unmarshal(raw, verificationBody); err != nil {
			log.Debugf("ignoring non-json verification response: %v", err)
		} else {
			response.Body = verificationBody
		}
	}
	return response, nil
}

// Probe calls the ping endpoint. The bearer header is attached only when a
// token is given; callers gate the call on holding one.
func (c *Client) Probe(
	ctx context.Context,
	token string,
) (
	*ProbeResult,
	error,
) {
	url := c.baseURL + PingPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debugf("probing %s", url)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxResponseBytes))

	return &ProbeResult{
		OK:     isSuccess(res.StatusCode),
		Status: res.StatusCode,
	}, nil
}

// Checks lists the profiles the data server serves, including those defined
// only in its catalog.
func (c *Client) Checks(ctx context.Context) ([]profile.Profile, error) {
	url := c.baseURL + ChecksPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	if !isSuccess(res.StatusCode) {
		return nil, fmt.Errorf("%w: listing checks returned %d", ErrTransport, res.StatusCode)
	}

	var profiles []profile.Profile
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(&profiles); err != nil {
		return nil, fmt.Errorf("failed to decode check list: %w", err)
	}
	return profiles, nil
}

// Lookup returns the named profile, asking the data server when it is not
// built in.
func (c *Client) Lookup(ctx context.Context, name string) (profile.Profile, error) {
	if p, err := profile.Lookup(name); err == nil {
		return p, nil
	}
	profiles, err := c.Checks(ctx)
	if err != nil {
		return profile.Profile{}, err
	}
	for _, p := range profiles {
		if p.Name == name {
			if p.SecretName == "" {
				p.SecretName = p.Name
			}
			return p, p.Validate()
		}
	}
	return profile.Profile{}, fmt.Errorf("%w: %s", profile.ErrUnknownProfile, name)
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}
