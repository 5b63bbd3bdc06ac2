package boundary_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~jakintosh/keycheck/internal/testutil"
)

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
	Header http.Header
}

// recordingUpstream answers every request with status and body, and sends
// what it saw on the returned channel.
func recordingUpstream(t *testing.T, status int, body string) (*httptest.Server, <-chan seenRequest) {
	t.Helper()
	seen := make(chan seenRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen <- seenRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   string(b),
			Header: r.Header.Clone(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestProxy_ExpandsPlaceholders(t *testing.T) {
	t.Parallel()
	upstream, seen := recordingUpstream(t, http.StatusOK, `{"jwt_token":"abc"}`)
	env := testutil.SetupBoundaryEnv(t, upstream.URL)
	env.SetTestSecret(t, "access_key", `open "sesame"`)

	body := `{"access_key":"{{secret:access_key}}","name":"Ada"}`
	result := testutil.PostJSON(env.Router, "/proxy/access_check?x=1", body, nil)
	testutil.ExpectStatus(t, http.StatusOK, result)

	req := <-seen
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/access_check", req.Path)
	assert.Equal(t, "x=1", req.Query)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	// the value is JSON-escaped in place
	var fields map[string]string
	require.NoError(t, json.Unmarshal([]byte(req.Body), &fields))
	assert.Equal(t, `open "sesame"`, fields["access_key"])
	assert.Equal(t, "Ada", fields["name"])

	// referenced names are logged, values never are
	var names any
	for _, entry := range env.LogHook.AllEntries() {
		if entry.Message == "expanding placeholders" {
			names = entry.Data["secrets"]
		}
	}
	assert.Equal(t, []string{"access_key"}, names)
}

func TestProxy_MissingSecretExpandsEmpty(t *testing.T) {
	t.Parallel()
	upstream, seen := recordingUpstream(t, http.StatusUnauthorized, "{}\n")
	env := testutil.SetupBoundaryEnv(t, upstream.URL)

	result := testutil.PostJSON(env.Router, "/proxy/license_check", `{"license_key":"{{secret:license_key}}"}`, nil)
	testutil.ExpectStatus(t, http.StatusUnauthorized, result)

	req := <-seen
	assert.JSONEq(t, `{"license_key":""}`, req.Body)

	// the miss is logged
	found := false
	for _, entry := range env.LogHook.AllEntries() {
		if entry.Message == "placeholders without stored secret" {
			found = true
		}
	}
	assert.True(t, found, "expected warning for missing secret")
}

func TestProxy_PassesResponseThrough(t *testing.T) {
	t.Parallel()
	upstream, _ := recordingUpstream(t, http.StatusTeapot, `{"odd":true}`)
	env := testutil.SetupBoundaryEnv(t, upstream.URL)

	result := testutil.Get(env.Router, "/proxy/anything", nil)
	testutil.ExpectStatus(t, http.StatusTeapot, result)
	assert.Equal(t, `{"odd":true}`, string(result.Body))
	assert.Equal(t, "yes", result.Headers.Get("X-Upstream"))
}

func TestProxy_ForwardsAuthorization(t *testing.T) {
	t.Parallel()
	upstream, seen := recordingUpstream(t, http.StatusOK, `{}`)
	env := testutil.SetupBoundaryEnv(t, upstream.URL)

	result := testutil.Get(env.Router, "/proxy/ping", nil, testutil.Bearer("tok"))
	testutil.ExpectStatus(t, http.StatusOK, result)

	req := <-seen
	assert.Equal(t, "/ping", req.Path)
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
}

func TestProxy_UpstreamDown(t *testing.T) {
	t.Parallel()
	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	env := testutil.SetupBoundaryEnv(t, addr)
	result := testutil.Get(env.Router, "/proxy/ping", nil)
	testutil.ExpectStatus(t, http.StatusBadGateway, result)
}

func TestProxy_UpstreamBasePath(t *testing.T) {
	t.Parallel()
	upstream, seen := recordingUpstream(t, http.StatusOK, `{}`)
	env := testutil.SetupBoundaryEnv(t, upstream.URL+"/base/")

	testutil.ExpectStatus(t, http.StatusOK, testutil.Get(env.Router, "/proxy/ping", nil))
	assert.Equal(t, "/base/ping", (<-seen).Path)
}
