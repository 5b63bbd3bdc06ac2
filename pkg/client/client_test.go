package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~jakintosh/keycheck/pkg/client"
	"git.sr.ht/~jakintosh/keycheck/pkg/profile"
	"git.sr.ht/~jakintosh/keycheck/pkg/secretref"
)

func testRequest() client.VerificationRequest {
	return client.VerificationRequest{
		Placeholder: secretref.Tag("access_key"),
		DisplayName: "Ada",
		Email:       "ada@example.com",
	}
}

func TestVerify_RequestContract(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/access_check", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{
			"access_key": "{{secret:access_key}}",
			"name":       "Ada",
			"email":      "ada@example.com",
		}, body)

		w.Write([]byte(`{"jwt_token":"abc123"}`))
	}))
	defer ts.Close()

	c := client.New(ts.URL, client.WithHTTPClient(ts.Client()))
	res, err := c.Verify(context.Background(), profile.AccessKey, testRequest())
	require.NoError(t, err)

	token, ok := res.Token()
	assert.True(t, ok)
	assert.Equal(t, "abc123", token)
}

func TestVerify_LicenseProfileUsesItsField(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/license_check", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "license_key")
		assert.NotContains(t, body, "access_key")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	req := testRequest()
	req.Placeholder = secretref.Tag("license_key")
	res, err := client.New(ts.URL).Verify(context.Background(), profile.LicenseKey, req)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	_, ok := res.Token()
	assert.False(t, ok)
}

func TestVerify_OKWithoutToken(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"empty object": `{}`,
		"empty token":  `{"jwt_token":""}`,
		"no body":      ``,
		"not json":     `accepted`,
	} {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer ts.Close()

			res, err := client.New(ts.URL).Verify(context.Background(), profile.AccessKey, testRequest())
			require.NoError(t, err)
			assert.True(t, res.OK)
			_, ok := res.Token()
			assert.False(t, ok)
		})
	}
}

func TestVerify_TransportFailure(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := client.New(url).Verify(context.Background(), profile.AccessKey, testRequest())
	assert.ErrorIs(t, err, client.ErrTransport)
}

func TestProbe_AttachesBearer(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ping", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer abc123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	c := client.New(ts.URL)
	res, err := c.Probe(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, res.OK)

	res, err = c.Probe(context.Background(), "wrong")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
}

func TestProbe_NoTokenNoHeader(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	res, err := client.New(ts.URL).Probe(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestProbe_TransportFailure(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := client.New(url).Probe(context.Background(), "abc123")
	assert.ErrorIs(t, err, client.ErrTransport)
}

func TestNew_TrimsBaseURL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "http://localhost:3000", client.New("http://localhost:3000/").BaseURL())
}

func TestChecks_DecodesCatalog(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checks", r.URL.Path)
		w.Write([]byte(`[{"name":"partner_key","check_path":"/partner_check","key_field":"partner_key","label":"Partner key","audience":"partner_key","lifetime":"5m0s"}]`))
	}))
	defer ts.Close()

	c := client.New(ts.URL, client.WithHTTPClient(ts.Client()))
	profiles, err := c.Checks(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "/partner_check", profiles[0].CheckPath)
}

func TestLookup_BuiltinMakesNoCall(t *testing.T) {
	t.Parallel()

	// unreachable base URL; a call would fail
	c := client.New("http://127.0.0.1:1")
	p, err := c.Lookup(context.Background(), "license_key")
	require.NoError(t, err)
	assert.Equal(t, profile.LicenseKey, p)
}

func TestLookup_CatalogProfile(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"partner_key","check_path":"/partner_check","key_field":"partner_key","label":"Partner key"}]`))
	}))
	defer ts.Close()

	c := client.New(ts.URL, client.WithHTTPClient(ts.Client()))
	p, err := c.Lookup(context.Background(), "partner_key")
	require.NoError(t, err)
	assert.Equal(t, "partner_key", p.SecretName)

	_, err = c.Lookup(context.Background(), "nobody")
	assert.ErrorIs(t, err, profile.ErrUnknownProfile)
}
