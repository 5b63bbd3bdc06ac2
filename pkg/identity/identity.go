// Package identity looks up the caller a verification runs on behalf of.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrLookupFailed = errors.New("identity lookup failed")

const unknown = "Unknown"

// Caller is the display name and email of the current user.
type Caller struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Lookup returns the current caller. A failed lookup is a workflow failure;
// implementations must not substitute a default caller for an error.
type Lookup interface {
	CurrentUser(ctx context.Context) (Caller, error)
}

// Static always returns the same caller.
type Static Caller

func (s Static) CurrentUser(context.Context) (Caller, error) {
	return Caller(s), nil
}

// HTTPLookup reads the caller from the boundary's /api/me endpoint.
type HTTPLookup struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPLookup(baseURL string, httpClient *http.Client) *HTTPLookup {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPLookup{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// CurrentUser fetches the caller. Empty fields in an otherwise successful
// response are reported as "Unknown".
func (l *HTTPLookup) CurrentUser(ctx context.Context) (Caller, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/me", nil)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := l.httpClient.Do(req)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Caller{}, fmt.Errorf("%w: status %d", ErrLookupFailed, res.StatusCode)
	}

	var caller Caller
	if err := json.NewDecoder(res.Body).Decode(&caller); err != nil {
		return Caller{}, fmt.Errorf("%w: bad response: %v", ErrLookupFailed, err)
	}
	if caller.DisplayName == "" {
		caller.DisplayName = unknown
	}
	if caller.Email == "" {
		caller.Email = unknown
	}
	return caller, nil
}
