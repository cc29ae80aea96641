package update

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRequestValidate checks required fields and URL validation.
func TestRequestValidate(t *testing.T) {
	t.Parallel()

	req := &Request{TargetPath: "app.exe"}
	require.ErrorIs(t, req.Validate(), ErrURLRequired)

	req = &Request{URL: "https://example.com/app.exe"}
	require.ErrorIs(t, req.Validate(), ErrTargetRequired)

	req = &Request{URL: "ftp://example.com/app.exe", TargetPath: "app.exe"}
	require.Error(t, req.Validate())

	req = &Request{URL: "not a url", TargetPath: "app.exe"}
	require.Error(t, req.Validate())

	req = &Request{URL: "https://example.com/app.exe", TargetPath: "app.exe", BufferSize: -1}
	require.Error(t, req.Validate())

	req = &Request{URL: "https://example.com/app.exe", TargetPath: "app.exe"}
	require.NoError(t, req.Validate())
}

// TestEffectiveBufferSize verifies the default buffer hint fallback.
func TestEffectiveBufferSize(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultBufferSize, (&Request{}).EffectiveBufferSize())
	require.Equal(t, 4096, (&Request{BufferSize: 4096}).EffectiveBufferSize())
}

// TestBackupPathFor checks the sibling naming convention.
func TestBackupPathFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, "bin/app.exe.backup", BackupPathFor("bin/app.exe"))
}
