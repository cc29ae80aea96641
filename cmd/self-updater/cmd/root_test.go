package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/self-updater/internal/domain/update"
)

// execute runs a fresh root command with args and returns the exit code and stdout.
func execute(t *testing.T, args ...string) (int, string) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCommand(new(flags))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	exitCode = domain.ExitSuccess

	require.NoError(t, cmd.Execute())

	return exitCode, out.String()
}

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)

	return ts
}

// TestRoot_ExitCodes maps transaction results to exit codes.
func TestRoot_ExitCodes(t *testing.T) {
	ok := newServer(t, http.StatusOK, "new")
	missing := newServer(t, http.StatusNotFound, "")
	dir := t.TempDir()
	config := filepath.Join(dir, "absent.yaml")

	target := filepath.Join(dir, "app.exe")

	code, out := execute(t, "--url", ok.URL, "--out", target, "--no-color")
	require.Equal(t, domain.ExitSuccess, code)
	require.Contains(t, out, "Update succeeded")
	require.NotContains(t, out, "\x1b[")

	contents, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "new", string(contents))

	code, _ = execute(t, "-u", missing.URL, "-o", target, "-n")
	require.Equal(t, domain.ExitDownloadError, code)

	contents, err = os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "new", string(contents))

	code, out = execute(t, "--url", ok.URL, "-n")
	require.Equal(t, domain.ExitFatal, code)
	require.Contains(t, out, "Update failed")

	code, _ = execute(t, "--config", config, "--url", ok.URL, "--out", target)
	require.Equal(t, domain.ExitFatal, code)
}

// TestRoot_RedirectAndQuiet writes the summary to the redirect file even in quiet mode.
func TestRoot_RedirectAndQuiet(t *testing.T) {
	ts := newServer(t, http.StatusOK, "new")
	dir := t.TempDir()
	logPath := filepath.Join(dir, "update.log")

	code, out := execute(t,
		"--url", ts.URL,
		"--out", filepath.Join(dir, "app.exe"),
		"--redirect", logPath,
		"--quiet")
	require.Equal(t, domain.ExitSuccess, code)
	require.Empty(t, out)

	logged, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(logged), "Update succeeded")
	require.NotContains(t, string(logged), "Target URL")
}

// TestRoot_ConfigFile reads inputs from an explicit settings file.
func TestRoot_ConfigFile(t *testing.T) {
	ts := newServer(t, http.StatusOK, "from-config")
	dir := t.TempDir()
	target := filepath.Join(dir, "app.exe")
	settings := filepath.Join(dir, "settings.yaml")

	require.NoError(t, os.WriteFile(settings, []byte("url: "+ts.URL+"\nout: "+target+"\nkeep_backup: true\n"), 0o600))
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o600))

	code, _ := execute(t, "-c", settings, "-n")
	require.Equal(t, domain.ExitSuccess, code)

	contents, err := os.ReadFile(target + domain.BackupSuffix)
	require.NoError(t, err)
	require.Equal(t, "old", string(contents))
}

// TestRoot_HelpWithoutInputs prints usage and succeeds when nothing is configured.
func TestRoot_HelpWithoutInputs(t *testing.T) {
	code, out := execute(t)
	require.Equal(t, domain.ExitSuccess, code)
	require.Contains(t, out, "--url")
}
