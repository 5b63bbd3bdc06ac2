package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~jakintosh/keycheck/internal/cli"
	"git.sr.ht/~jakintosh/keycheck/pkg/keychecktest"
	"git.sr.ht/~jakintosh/keycheck/pkg/message"
)

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli.Execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func validStack(t *testing.T) *keychecktest.Stack {
	return keychecktest.NewStack(t, keychecktest.Options{
		Keys:    map[string]string{"access_key": "good-key", "license_key": "lic"},
		Secrets: map[string]string{"access_key": "good-key"},
	})
}

func TestCheck_Valid(t *testing.T) {
	t.Parallel()
	stack := validStack(t)

	code, out, _ := run(t, "check", "--boundary", stack.BoundaryServer.URL)

	assert.Equal(t, cli.ExitOK, code)
	assert.Equal(t, "[positive] Access key is valid\n", out)
}

func TestCheck_NotValid(t *testing.T) {
	t.Parallel()
	stack := validStack(t)

	// no license secret stored
	code, out, _ := run(t, "check", "--boundary", stack.BoundaryServer.URL, "--profile", "license_key")

	assert.Equal(t, cli.ExitInvalid, code)
	assert.Equal(t, "[critical] License key is NOT valid\n", out)
}

func TestCheck_VerifyToken(t *testing.T) {
	t.Parallel()
	stack := validStack(t)

	code, out, _ := run(t, "check", "--verify-token", "--boundary", stack.BoundaryServer.URL)

	assert.Equal(t, cli.ExitOK, code)
	assert.Equal(t, "[positive] Access key is valid\n[positive] JWT Token is valid\n", out)
}

func TestCheck_BoundaryUnreachable(t *testing.T) {
	t.Parallel()

	code, out, _ := run(t, "check", "--boundary", "http://127.0.0.1:1", "--profile", "access_key")

	assert.Equal(t, cli.ExitError, code)
	assert.Equal(t, "[critical] Unexpected error occurred\n", out)
}

func TestCheck_JSON(t *testing.T) {
	t.Parallel()
	stack := validStack(t)

	code, out, _ := run(t, "check", "--json", "--verify-token", "--boundary", stack.BoundaryServer.URL)
	require.Equal(t, cli.ExitOK, code)

	var parsed struct {
		Profile    string            `json:"profile"`
		State      string            `json:"state"`
		TokenState string            `json:"token_state"`
		Messages   []message.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "access_key", parsed.Profile)
	assert.Equal(t, "verified", parsed.State)
	assert.Equal(t, "valid", parsed.TokenState)
	assert.Len(t, parsed.Messages, 2)
}

func TestCheck_UnknownProfile(t *testing.T) {
	t.Parallel()
	stack := validStack(t)

	code, _, stderr := run(t, "check", "--boundary", stack.BoundaryServer.URL, "--profile", "nobody")

	assert.Equal(t, cli.ExitError, code)
	assert.Contains(t, stderr, "nobody")
}

func TestCheck_ConfigFile(t *testing.T) {
	t.Parallel()
	stack := validStack(t)

	path := filepath.Join(t.TempDir(), "keycheck.yaml")
	cfg := "boundary: " + stack.BoundaryServer.URL + "\nprofile: license_key\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	// the flag wins over the file
	code, out, _ := run(t, "check", "--config", path, "--profile", "access_key")

	assert.Equal(t, cli.ExitOK, code)
	assert.Contains(t, out, "Access key is valid")
}

func TestCheck_InvalidConfig(t *testing.T) {
	t.Parallel()

	code, _, stderr := run(t, "check", "--boundary", "not a url")

	assert.Equal(t, cli.ExitError, code)
	assert.Contains(t, stderr, "boundary")
}

func TestUpdateSecret_Reverifies(t *testing.T) {
	t.Parallel()
	stack := validStack(t)

	code, out, _ := run(t, "update-secret", "lic", "--boundary", stack.BoundaryServer.URL, "--profile", "license_key")

	assert.Equal(t, cli.ExitOK, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{
		"[critical] License key is NOT valid",
		"[positive] License key is valid",
	}, lines)
	assert.Equal(t, "lic", stack.Secret("license_key"))
}

func TestUpdateSecret_FromStdin(t *testing.T) {
	t.Parallel()
	stack := validStack(t)

	root := cli.NewRootCommand(&bytes.Buffer{}, &bytes.Buffer{})
	root.SetIn(strings.NewReader("lic\n"))
	root.SetArgs([]string{"update-secret", "-", "--boundary", stack.BoundaryServer.URL, "--profile", "license_key"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "lic", stack.Secret("license_key"))
}

func TestUpdateSecret_RequiresValue(t *testing.T) {
	t.Parallel()

	code, _, _ := run(t, "update-secret")
	assert.Equal(t, cli.ExitError, code)
}

func TestProfiles_ListsCatalog(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partner.yaml"),
		[]byte("name: partner_key\ncheck_path: /partner_check\nlabel: Partner key\n"), 0o644))
	stack := keychecktest.NewStack(t, keychecktest.Options{CatalogDir: dir})

	code, out, _ := run(t, "profiles", "--boundary", stack.BoundaryServer.URL)

	assert.Equal(t, cli.ExitOK, code)
	assert.Contains(t, out, "access_key")
	assert.Contains(t, out, "license_key")
	assert.Contains(t, out, "/partner_check")
}

func TestProfiles_FallsBackToBuiltins(t *testing.T) {
	t.Parallel()

	code, out, _ := run(t, "profiles", "--boundary", "http://127.0.0.1:1")

	assert.Equal(t, cli.ExitOK, code)
	assert.Contains(t, out, "access_key")
	assert.NotContains(t, out, "partner_key")
}
