package update

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestOutcomeClassification covers the commit rule: 200 with a non-empty body only.
func TestOutcomeClassification(t *testing.T) {
	t.Parallel()

	require.True(t, (&Outcome{StatusCode: http.StatusOK, BytesWritten: 1}).Succeeded())
	require.False(t, (&Outcome{StatusCode: http.StatusOK}).Succeeded())
	require.True(t, (&Outcome{StatusCode: http.StatusOK}).ZeroLength())
	require.False(t, (&Outcome{StatusCode: http.StatusNotFound, BytesWritten: 10}).Succeeded())
	require.False(t, (&Outcome{StatusCode: http.StatusNoContent, BytesWritten: 10}).Succeeded())
	require.False(t, (*Outcome)(nil).Succeeded())
}

// TestStatusLabel verifies the diagnostic labels.
func TestStatusLabel(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		http.StatusBadRequest:          "Bad Request",
		http.StatusUnauthorized:        "Unauthorized",
		http.StatusForbidden:           "Forbidden",
		http.StatusNotFound:            "Not Found",
		http.StatusInternalServerError: "Unexpected",
		http.StatusFound:               "Unexpected",
	}
	for code, label := range cases {
		require.Equal(t, label, StatusLabel(code))
	}

	require.True(t, IsKnownError(http.StatusForbidden))
	require.False(t, IsKnownError(http.StatusBadGateway))
}

// TestResultExitCode ensures warnings never change the exit code.
func TestResultExitCode(t *testing.T) {
	t.Parallel()

	success := NewSuccess(&Outcome{StatusCode: http.StatusOK, BytesWritten: 3})
	success.Warn(WarningRelaunch, errors.New("boom"))
	success.Warn(WarningCleanup, nil)

	require.Equal(t, ExitSuccess, success.ExitCode())
	require.Len(t, success.Warnings, 1)
	require.True(t, success.HasWarning(WarningRelaunch))
	require.False(t, success.HasWarning(WarningCleanup))
	require.EqualValues(t, 3, success.BytesWritten())

	downloadErr := NewDownloadError(&Outcome{StatusCode: http.StatusNotFound}, nil)
	downloadErr.Warn(WarningRestore, errors.New("rename failed"))
	require.Equal(t, ExitDownloadError, downloadErr.ExitCode())
	require.Equal(t, http.StatusNotFound, downloadErr.StatusCode())

	fatal := NewFatal(errors.New("no lock"))
	require.Equal(t, ExitFatal, fatal.ExitCode())
	require.Zero(t, fatal.BytesWritten())
	require.Zero(t, fatal.Elapsed())
}

// TestWarningUnwrap verifies that warnings expose their cause.
func TestWarningUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("permission denied")
	w := Warning{Kind: WarningCleanup, Err: cause}

	require.ErrorIs(t, w, cause)
	require.Equal(t, "cleanup: permission denied", w.Error())
	require.Equal(t, "download error", KindDownloadError.String())
}

// TestCause explains why an outcome is rejected.
func TestCause(t *testing.T) {
	t.Parallel()

	require.NoError(t, Cause(nil))
	require.NoError(t, Cause(&Outcome{StatusCode: http.StatusOK, BytesWritten: 1}))
	require.ErrorIs(t, Cause(&Outcome{StatusCode: http.StatusOK}), ErrZeroLength)

	var statusErr *StatusError

	require.ErrorAs(t, Cause(&Outcome{StatusCode: http.StatusNotFound}), &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.Contains(t, statusErr.Error(), "Not Found")
	require.Contains(t, Cause(&Outcome{StatusCode: http.StatusTeapot}).Error(), "unexpected")
}
