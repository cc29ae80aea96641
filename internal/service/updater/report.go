package updater

import (
	"context"
	"errors"
	"net/http"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap/zapcore"

	domain "github.com/oshokin/self-updater/internal/domain/update"
	"github.com/oshokin/self-updater/internal/logger"
)

// logStatus logs the response code: known client errors as errors,
// other non-200 codes as warnings.
func logStatus(ctx context.Context, code int) {
	switch {
	case code == http.StatusOK:
		logger.InfoKV(ctx, "Received success response code", "status", code)
	case domain.IsKnownError(code):
		logger.ErrorKV(ctx, "Received error response code", "status", code, "label", domain.StatusLabel(code))
	default:
		logger.WarnKV(ctx, "Received unexpected response code", "status", code)
	}
}

// Report writes one summary line for result, followed by one line per warning.
// The summary is written even when the configured level would hide it.
func Report(ctx context.Context, result *domain.Result) {
	if result == nil {
		return
	}

	summaryCtx := logger.Always(ctx, zapcore.InfoLevel)

	switch result.Kind {
	case domain.KindSuccess:
		logger.InfoKV(summaryCtx, "Update succeeded",
			"bytes", result.BytesWritten(),
			"size", humanize.Bytes(uint64(result.BytesWritten())), //nolint:gosec // Never negative.
			"elapsed_ms", result.Elapsed().Milliseconds(),
			"relaunched", result.Relaunched)
	case domain.KindDownloadError:
		fields := append(downloadErrorFields(result), "rolled_back", result.RolledBack)
		logger.ErrorKV(summaryCtx, "Download error", fields...)
	default:
		logger.ErrorKV(summaryCtx, "Update failed", "error", result.Err)
	}

	for _, w := range result.Warnings {
		logger.WarnKV(summaryCtx, "Warning", "step", string(w.Kind), "error", w.Err)
	}
}

// downloadErrorFields describes why a download was rejected.
func downloadErrorFields(result *domain.Result) []any {
	var statusErr *domain.StatusError

	switch {
	case errors.As(result.Err, &statusErr):
		return []any{"status", statusErr.Code, "label", domain.StatusLabel(statusErr.Code)}
	case errors.Is(result.Err, domain.ErrZeroLength):
		return []any{"status", result.StatusCode(), "reason", "zero-length response"}
	default:
		return []any{"error", result.Err}
	}
}
