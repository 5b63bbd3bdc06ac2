package secretref

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

var ErrWriteRejected = errors.New("secret write rejected")

// Writer stores a new value for a named secret inside the trusted boundary.
type Writer interface {
	WriteSecret(ctx context.Context, secretName string, value string) error
}

// HTTPWriter writes secrets through the boundary's secrets API.
type HTTPWriter struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPWriter(baseURL string, httpClient *http.Client) *HTTPWriter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPWriter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type writeRequest struct {
	Value string `json:"value"`
}

func (w *HTTPWriter) WriteSecret(
	ctx context.Context,
	secretName string,
	value string,
) error {
	body, err := json.Marshal(writeRequest{Value: value})
	if err != nil {
		return fmt.Errorf("failed to encode secret: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/secrets/%s", w.baseURL, url.PathEscape(secretName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to put secret: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrWriteRejected, res.StatusCode)
	}
	return nil
}
