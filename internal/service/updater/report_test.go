package updater

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	domain "github.com/oshokin/self-updater/internal/domain/update"
	"github.com/oshokin/self-updater/internal/logger"
)

func observedContext(level zapcore.Level) (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(level)

	return logger.ToContext(context.Background(), zap.New(core).Sugar()), logs
}

// TestReport_RolledBackFollowsResult prints the rollback state recorded on the result.
func TestReport_RolledBackFollowsResult(t *testing.T) {
	t.Parallel()

	for _, rolledBack := range []bool{true, false} {
		ctx, logs := observedContext(zapcore.InfoLevel)

		result := domain.NewDownloadError(
			&domain.Outcome{StatusCode: http.StatusNotFound},
			&domain.StatusError{Code: http.StatusNotFound})
		result.RolledBack = rolledBack

		if !rolledBack {
			result.Warn(domain.WarningCleanup, errors.New("remove corrupt target: directory not empty"))
		}

		Report(ctx, result)

		summary := logs.FilterMessage("Download error").All()
		require.Len(t, summary, 1)
		require.Equal(t, rolledBack, summary[0].ContextMap()["rolled_back"])
		require.EqualValues(t, http.StatusNotFound, summary[0].ContextMap()["status"])
		require.Equal(t, len(result.Warnings), logs.FilterMessage("Warning").Len())
	}
}

// TestReport_SummaryIgnoresLevel writes the summary even when info lines are hidden.
func TestReport_SummaryIgnoresLevel(t *testing.T) {
	t.Parallel()

	ctx, logs := observedContext(zapcore.ErrorLevel)

	Report(ctx, domain.NewSuccess(&domain.Outcome{StatusCode: http.StatusOK, BytesWritten: 3}))

	summary := logs.FilterMessage("Update succeeded").All()
	require.Len(t, summary, 1)
	require.EqualValues(t, 3, summary[0].ContextMap()["bytes"])
}
