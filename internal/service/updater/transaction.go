package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	domain "github.com/oshokin/self-updater/internal/domain/update"
	"github.com/oshokin/self-updater/internal/lock"
	"github.com/oshokin/self-updater/internal/logger"
	"github.com/oshokin/self-updater/internal/repository/backup"
	"github.com/oshokin/self-updater/internal/service/download"
	"github.com/oshokin/self-updater/internal/service/process"
)

// DefaultFileMode is used for a target that did not exist before the update.
const DefaultFileMode os.FileMode = 0o755

var (
	// ErrSetup marks failures that stop the transaction before anything is written.
	ErrSetup = errors.New("update setup failed")
	// errRollbackFailed marks a fatal result whose previous content could not be restored.
	errRollbackFailed = errors.New("rollback failed")
)

// InstanceLock serializes transactions across processes.
type InstanceLock interface {
	Acquire(ctx context.Context) error
	Release() error
}

// BackupManager moves the target aside and back.
type BackupManager interface {
	Backup(targetPath string) (*domain.BackupRecord, error)
	Restore(record *domain.BackupRecord) error
	Discard(record *domain.BackupRecord, keep bool) error
}

// Downloader streams a URL into a writer.
type Downloader interface {
	Download(ctx context.Context, url string, destination io.Writer, bufferSize int) (*domain.Outcome, error)
}

// Launcher starts the updated executable.
type Launcher interface {
	Launch(executablePath string, args ...string) error
}

// ProcessFinder lists running copies of an executable.
type ProcessFinder func(executablePath string) ([]process.Instance, error)

// Option overrides a collaborator of the transaction.
type Option func(*transaction)

// WithLock replaces the single-instance lock.
func WithLock(l InstanceLock) Option {
	return func(t *transaction) {
		t.lock = l
	}
}

// WithBackupManager replaces the backup manager.
func WithBackupManager(m BackupManager) Option {
	return func(t *transaction) {
		t.backups = m
	}
}

// WithDownloader replaces the downloader.
func WithDownloader(d Downloader) Option {
	return func(t *transaction) {
		t.downloader = d
	}
}

// WithLauncher replaces the relauncher.
func WithLauncher(l Launcher) Option {
	return func(t *transaction) {
		t.launcher = l
	}
}

// WithProcessFinder replaces the running-instance lookup.
func WithProcessFinder(f ProcessFinder) Option {
	return func(t *transaction) {
		t.findRunning = f
	}
}

// WithStateObserver registers a callback invoked on every state change.
func WithStateObserver(observe func(State)) Option {
	return func(t *transaction) {
		t.observe = observe
	}
}

// transaction holds the collaborators and progress of one update.
// It is unexported; call Run.
type transaction struct {
	// req is the immutable input.
	req domain.Request
	// state is the current step.
	state State

	lock        InstanceLock
	backups     BackupManager
	downloader  Downloader
	launcher    Launcher
	findRunning ProcessFinder
	observe     func(State)
}

// Run executes one update transaction and returns its result. It never
// returns nil, and it writes a one-line summary of the result through the
// logger in ctx.
func Run(ctx context.Context, req domain.Request, opts ...Option) *domain.Result {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "updater")
	ctx = logger.WithKV(ctx, "target", filepath.Base(req.TargetPath))

	t := &transaction{
		req:         req,
		state:       StateIdle,
		lock:        lock.New(lock.Identifier),
		backups:     backup.NewManager(req.SkipBackup),
		downloader:  download.New(),
		launcher:    process.NewRelauncher(),
		findRunning: process.FindRunning,
	}

	for _, opt := range opts {
		opt(t)
	}

	result := t.run(ctx)
	Report(ctx, result)

	return result
}

// run walks the states. The lock is released by a deferred call so that
// every return, and a panic, leaves it unlocked.
func (t *transaction) run(ctx context.Context) *domain.Result {
	if err := t.req.Validate(); err != nil {
		return domain.NewFatal(fmt.Errorf("%w: %w", ErrSetup, err))
	}

	t.describe(ctx)

	if err := t.lock.Acquire(ctx); err != nil {
		return domain.NewFatal(fmt.Errorf("%w: acquire instance lock: %w", ErrSetup, err))
	}

	defer func() {
		t.transition(ctx, StateReleased)

		if err := t.lock.Release(); err != nil {
			logger.WarnKV(ctx, "Failed to release instance lock", "error", err)
		}
	}()

	t.transition(ctx, StateLocked)
	t.warnIfRunning(ctx)

	mode := targetMode(t.req.TargetPath)

	record, err := t.backups.Backup(t.req.TargetPath)
	if err != nil {
		return domain.NewFatal(fmt.Errorf("%w: %w", ErrSetup, err))
	}

	if record != nil {
		logger.InfoKV(ctx, "Created backup", "from", record.TargetPath, "to", record.BackupPath)
	}

	t.transition(ctx, StateBackedUp)

	outcome, err := t.download(ctx, mode)
	if errors.Is(err, ErrSetup) {
		return t.abortBeforeWrite(ctx, record, err)
	}

	t.transition(ctx, StateEvaluating)

	if err != nil {
		return t.failTransfer(ctx, record, outcome, err)
	}

	logStatus(ctx, outcome.StatusCode)

	if cause := domain.Cause(outcome); cause != nil {
		result := domain.NewDownloadError(outcome, cause)
		t.rollback(ctx, record, result)

		return result
	}

	return t.commit(ctx, record, outcome)
}

// download opens the target for writing and streams the body into it.
// Failing to open the target is a setup error.
func (t *transaction) download(ctx context.Context, mode os.FileMode) (*domain.Outcome, error) {
	file, err := os.OpenFile(t.req.TargetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open target for writing: %w", ErrSetup, err)
	}

	t.transition(ctx, StateDownloading)

	outcome, err := t.downloader.Download(ctx, t.req.URL, file, t.req.EffectiveBufferSize())

	closeErr := file.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("close target: %w", closeErr)
	}

	if outcome != nil {
		logger.InfoKV(ctx, "Download completed",
			"elapsed_ms", outcome.Elapsed.Milliseconds(),
			"bytes", outcome.BytesWritten)
	}

	return outcome, err
}

// abortBeforeWrite puts the backup back when the target could not even be opened.
func (t *transaction) abortBeforeWrite(
	ctx context.Context,
	record *domain.BackupRecord,
	cause error,
) *domain.Result {
	result := domain.NewFatal(cause)

	if record == nil {
		return result
	}

	if err := t.backups.Restore(record); err != nil {
		result.Warn(domain.WarningRestore, err)
		return result
	}

	result.RolledBack = true

	logger.InfoKV(ctx, "Restored backup", "from", record.BackupPath, "to", record.TargetPath)

	return result
}

// failTransfer handles a transfer that ended without a usable response.
// A network failure whose rollback succeeded is a download error (exit 2):
// the target is back in its pre-update state, which is the same situation
// as a rejected HTTP status. Only a network failure that could not be
// rolled back, or a local write failure, is fatal.
func (t *transaction) failTransfer(
	ctx context.Context,
	record *domain.BackupRecord,
	outcome *domain.Outcome,
	cause error,
) *domain.Result {
	logger.ErrorKV(ctx, "Transfer failed", "error", cause)

	result := domain.NewDownloadError(outcome, cause)
	restored := t.rollback(ctx, record, result)

	if restored && errors.Is(cause, download.ErrNetwork) {
		return result
	}

	if !restored {
		result.Err = fmt.Errorf("%w: %w", errRollbackFailed, cause)
	}

	result.Kind = domain.KindFatal

	return result
}

// rollback removes the partial target and restores the backup if there is one.
// Both steps are attempted; failures become warnings on result.
// It reports whether the target ended up in its pre-update state and
// records the same value in result.RolledBack.
func (t *transaction) rollback(ctx context.Context, record *domain.BackupRecord, result *domain.Result) bool {
	restored := t.restorePrevious(ctx, record, result)
	result.RolledBack = restored

	t.transition(ctx, StateRolledBack)

	return restored
}

// restorePrevious removes the partial target, then puts the backup back.
func (t *transaction) restorePrevious(ctx context.Context, record *domain.BackupRecord, result *domain.Result) bool {
	restored := true

	if err := os.Remove(t.req.TargetPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		result.Warn(domain.WarningCleanup, fmt.Errorf("remove corrupt target: %w", err))

		restored = record != nil
	}

	if record == nil {
		return restored
	}

	if err := t.backups.Restore(record); err != nil {
		result.Warn(domain.WarningRestore, err)
		return false
	}

	logger.InfoKV(ctx, "Restored backup", "from", record.BackupPath, "to", record.TargetPath)

	return true
}

// commit drops the backup unless it is kept and relaunches the target if asked.
func (t *transaction) commit(
	ctx context.Context,
	record *domain.BackupRecord,
	outcome *domain.Outcome,
) *domain.Result {
	result := domain.NewSuccess(outcome)

	logger.InfoKV(ctx, "Wrote update",
		"path", t.req.TargetPath,
		"bytes", outcome.BytesWritten,
		"size", humanize.Bytes(uint64(outcome.BytesWritten))) //nolint:gosec // BytesWritten is positive here.

	if record != nil && !t.req.KeepBackup {
		if err := t.backups.Discard(record, false); err != nil {
			result.Warn(domain.WarningCleanup, err)
		} else {
			logger.InfoKV(ctx, "Deleted backup", "path", record.BackupPath)
		}
	}

	t.transition(ctx, StateCommitted)

	if t.req.RestartAfter {
		t.relaunch(ctx, result)
	}

	return result
}

// relaunch starts the new executable; failure only adds a warning.
func (t *transaction) relaunch(ctx context.Context, result *domain.Result) {
	name := filepath.Base(t.req.TargetPath)

	if err := t.launcher.Launch(t.req.TargetPath, process.CleanupArg); err != nil {
		result.Warn(domain.WarningRelaunch, fmt.Errorf("failed to (re)start %s: %w", name, err))
		return
	}

	result.Relaunched = true

	logger.InfoKV(ctx, "(Re)started executable", "name", name)
}

// describe logs the inputs. A relative output path is also shown resolved
// against the program directory; the path itself is used as given.
func (t *transaction) describe(ctx context.Context) {
	logger.InfoKV(ctx, "Target URL", "url", t.req.URL)

	if filepath.IsAbs(t.req.TargetPath) {
		logger.InfoKV(ctx, "Output path", "path", t.req.TargetPath)
		return
	}

	logger.InfoKV(ctx, "Output path", "path", t.req.TargetPath, "resolved", DisplayPath(t.req.TargetPath))
}

// warnIfRunning logs running copies of the target; it never blocks the update.
func (t *transaction) warnIfRunning(ctx context.Context) {
	if t.findRunning == nil {
		return
	}

	instances, err := t.findRunning(t.req.TargetPath)
	if err != nil {
		logger.DebugKV(ctx, "Unable to inspect running processes", "error", err)
		return
	}

	for _, instance := range instances {
		logger.WarnKV(ctx, "Target executable is running",
			"pid", instance.PID,
			"executable", instance.Executable)
	}
}

// transition records and logs a state change.
func (t *transaction) transition(ctx context.Context, next State) {
	logger.DebugKV(ctx, "State changed", "from", t.state.String(), "to", next.String())

	t.state = next

	if t.observe != nil {
		t.observe(next)
	}
}

// DisplayPath resolves a relative path against the directory of the running
// program, for display only. It returns the path unchanged if that fails.
func DisplayPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	executable, err := os.Executable()
	if err != nil {
		return path
	}

	return filepath.Join(filepath.Dir(executable), path)
}

// targetMode returns the permission bits of an existing target, or DefaultFileMode.
func targetMode(path string) os.FileMode {
	info, err := os.Stat(path)
	if err != nil {
		return DefaultFileMode
	}

	return info.Mode().Perm()
}
