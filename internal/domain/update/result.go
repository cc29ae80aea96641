package update

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies how a transaction ended.
type Kind int

const (
	// KindSuccess means the target now holds the downloaded content.
	KindSuccess Kind = iota
	// KindDownloadError means the response was rejected and rollback was attempted.
	KindDownloadError
	// KindFatal means the transaction could not run or could not be rolled back.
	KindFatal
)

// Exit codes returned to the shell.
const (
	ExitSuccess       = 0
	ExitFatal         = 1
	ExitDownloadError = 2
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindDownloadError:
		return "download error"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// WarningKind names the bookkeeping step a warning came from.
type WarningKind string

const (
	// WarningRestore is a failure while restoring the backup during rollback.
	WarningRestore WarningKind = "restore"
	// WarningCleanup is a failure while deleting a corrupt target or an obsolete backup.
	WarningCleanup WarningKind = "cleanup"
	// WarningRelaunch is a failure while starting the new executable.
	WarningRelaunch WarningKind = "relaunch"
)

// Warning is a non-fatal problem attached to a result.
type Warning struct {
	// Kind is the step that failed.
	Kind WarningKind
	// Err is the underlying failure.
	Err error
}

// Error implements error.
func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Kind, w.Err)
}

// Unwrap exposes the underlying failure to errors.Is/As.
func (w Warning) Unwrap() error {
	return w.Err
}

// ErrZeroLength marks a 200 response with an empty body.
var ErrZeroLength = errors.New("received an empty response body")

// Result is the single value a transaction hands back to its caller.
type Result struct {
	// Kind is the headline classification.
	Kind Kind
	// Outcome is the download outcome, nil when no request was completed.
	Outcome *Outcome
	// Err is the cause of a download error or fatal result.
	Err error
	// Warnings are bookkeeping failures that did not change Kind.
	Warnings []Warning
	// Relaunched is true when the new executable was started.
	Relaunched bool
	// RolledBack is true when rollback left the target in its pre-update state.
	RolledBack bool
}

// NewSuccess builds a success result.
func NewSuccess(outcome *Outcome) *Result {
	return &Result{
		Kind:    KindSuccess,
		Outcome: outcome,
	}
}

// NewDownloadError builds a download error result for a rejected outcome.
func NewDownloadError(outcome *Outcome, cause error) *Result {
	return &Result{
		Kind:    KindDownloadError,
		Outcome: outcome,
		Err:     cause,
	}
}

// NewFatal builds a fatal result.
func NewFatal(err error) *Result {
	return &Result{
		Kind: KindFatal,
		Err:  err,
	}
}

// Warn attaches a warning when err is not nil.
func (r *Result) Warn(kind WarningKind, err error) {
	if err == nil {
		return
	}

	r.Warnings = append(r.Warnings, Warning{Kind: kind, Err: err})
}

// HasWarning reports whether a warning of the given kind is attached.
func (r *Result) HasWarning(kind WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == kind {
			return true
		}
	}

	return false
}

// BytesWritten returns the number of bytes written, or zero without an outcome.
func (r *Result) BytesWritten() int64 {
	if r.Outcome == nil {
		return 0
	}

	return r.Outcome.BytesWritten
}

// StatusCode returns the HTTP status code, or zero without an outcome.
func (r *Result) StatusCode() int {
	if r.Outcome == nil {
		return 0
	}

	return r.Outcome.StatusCode
}

// Elapsed returns the transfer duration, or zero without an outcome.
func (r *Result) Elapsed() time.Duration {
	if r.Outcome == nil {
		return 0
	}

	return r.Outcome.Elapsed
}

// ExitCode maps the result to the process exit code.
// Warnings never change it.
func (r *Result) ExitCode() int {
	switch r.Kind {
	case KindSuccess:
		return ExitSuccess
	case KindDownloadError:
		return ExitDownloadError
	default:
		return ExitFatal
	}
}
