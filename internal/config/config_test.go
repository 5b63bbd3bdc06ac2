package config_test

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~jakintosh/keycheck/internal/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func sealKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestDefaultServer_IsValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, config.DefaultServer().Validate())
}

func TestLoadServer_File(t *testing.T) {
	path := writeFile(t, "server.yaml", `
listen: 127.0.0.1:9000
issuer_domain: keys.example.com
token_lifetime: 5m
keys:
  - profile: access_key
    value: open-sesame
log:
  level: debug
  format: json
`)

	cfg, err := config.LoadServer(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, "keys.example.com", cfg.IssuerDomain)
	assert.Equal(t, 5*time.Minute, cfg.TokenLifetime)
	assert.Equal(t, "keycheck.sqlite", cfg.DBPath, "unset fields keep defaults")
	require.Len(t, cfg.Keys, 1)
	assert.Equal(t, "open-sesame", cfg.Keys[0].Value)
	assert.Equal(t, config.Log{Level: "debug", Format: "json"}, cfg.Log)
	assert.NoError(t, cfg.Validate())
}

func TestLoadServer_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "server.yaml", "listen: 127.0.0.1:9000\n")
	t.Setenv("KEYCHECK_LISTEN", ":7000")
	t.Setenv("KEYCHECK_TOKEN_LIFETIME", "90s")
	t.Setenv("KEYCHECK_KEYS", "access_key:a1, license_key:team:l1")
	t.Setenv("KEYCHECK_LOG_LEVEL", "warn")

	cfg, err := config.LoadServer(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, 90*time.Second, cfg.TokenLifetime)
	assert.Equal(t, []config.KeySeed{
		{Profile: "access_key", Label: "seed", Value: "a1"},
		{Profile: "license_key", Label: "team", Value: "l1"},
	}, cfg.Keys)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadServer_BadDuration(t *testing.T) {
	t.Setenv("KEYCHECK_TOKEN_LIFETIME", "soon")

	_, err := config.LoadServer("")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadServer_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadServer(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestServer_Validate(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*config.Server){
		"no listen":      func(c *config.Server) { c.Listen = "" },
		"no issuer":      func(c *config.Server) { c.IssuerDomain = "" },
		"zero lifetime":  func(c *config.Server) { c.TokenLifetime = 0 },
		"bad log level":  func(c *config.Server) { c.Log.Level = "loud" },
		"bad log format": func(c *config.Server) { c.Log.Format = "xml" },
		"empty key":      func(c *config.Server) { c.Keys = []config.KeySeed{{Profile: "access_key"}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := config.DefaultServer()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}
}

func TestParseKeySeed(t *testing.T) {
	t.Parallel()

	seed, err := config.ParseKeySeed("license_key:abc:def")
	require.NoError(t, err)
	assert.Equal(t, config.KeySeed{Profile: "license_key", Label: "abc", Value: "def"}, seed)

	for _, bad := range []string{"", "access_key", ":value", "access_key:"} {
		_, err := config.ParseKeySeed(bad)
		assert.ErrorIs(t, err, config.ErrInvalidConfig, "input %q", bad)
	}
}

func TestLoadBoundary(t *testing.T) {
	path := writeFile(t, "boundary.yaml", `
upstream: http://data.example.com
seal_key: `+sealKey()+`
user:
  display_name: Ada
  email: ada@example.com
secrets:
  access_key: open-sesame
`)
	t.Setenv("KEYCHECK_USER_NAME", "Ada L.")

	cfg, err := config.LoadBoundary(path)
	require.NoError(t, err)

	assert.Equal(t, "http://data.example.com", cfg.Upstream)
	assert.Equal(t, "Ada L.", cfg.User.DisplayName)
	assert.Equal(t, map[string]string{"access_key": "open-sesame"}, cfg.Secrets)
	require.NoError(t, cfg.Validate())

	key, err := cfg.SealKeyBytes()
	require.NoError(t, err)
	assert.Equal(t, byte('k'), key[31])
}

func TestBoundary_Validate(t *testing.T) {
	t.Parallel()

	valid := func() config.Boundary {
		cfg := config.DefaultBoundary()
		cfg.SealKey = sealKey()
		cfg.User.Email = "ada@example.com"
		return cfg
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*config.Boundary){
		"relative upstream": func(c *config.Boundary) { c.Upstream = "data-server" },
		"no seal key":       func(c *config.Boundary) { c.SealKey = "" },
		"short seal key":    func(c *config.Boundary) { c.SealKey = base64.StdEncoding.EncodeToString([]byte("short")) },
		"no email":          func(c *config.Boundary) { c.User.Email = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}
}

func TestLoadClient_Env(t *testing.T) {
	t.Setenv("KEYCHECK_BOUNDARY", "http://127.0.0.1:9999")
	t.Setenv("KEYCHECK_PROFILE", "license_key")
	t.Setenv("KEYCHECK_TIMEOUT", "3s")

	cfg, err := config.LoadClient("")
	require.NoError(t, err)

	assert.Equal(t, config.Client{
		Boundary: "http://127.0.0.1:9999",
		Profile:  "license_key",
		Timeout:  3 * time.Second,
		Log:      config.Log{Level: "warn", Format: "text"},
	}, cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "KEYCHECK_PROFILE=license_key\n")
	t.Setenv("KEYCHECK_PROFILE", "")
	os.Unsetenv("KEYCHECK_PROFILE")

	// missing files are skipped
	require.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), path))
	t.Cleanup(func() { os.Unsetenv("KEYCHECK_PROFILE") })

	assert.Equal(t, "license_key", os.Getenv("KEYCHECK_PROFILE"))
}
