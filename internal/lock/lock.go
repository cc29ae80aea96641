package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	// Identifier is shared by every instance of the tool, whatever target it updates.
	Identifier = "self-updater-single-instance"

	// lockFileExtension is appended to the identifier to name the lock file.
	lockFileExtension = ".lock"

	// defaultRetryDelay is the polling interval while another instance holds the lock.
	defaultRetryDelay = 100 * time.Millisecond

	// directoryPermissions is used when the lock directory has to be created.
	directoryPermissions = 0o755
)

// errNotAcquired is returned when the wait ends without owning the lock.
var errNotAcquired = errors.New("instance lock was not acquired")

// FileLock is an exclusive lock on <directory>/<identifier>.lock.
// Acquire blocks until no other holder remains; Release is idempotent.
type FileLock struct {
	// flock is the underlying advisory lock.
	flock *flock.Flock
	// retryDelay is how often the lock is polled while waiting.
	retryDelay time.Duration

	// mu guards held.
	mu sync.Mutex
	// held is true between a successful Acquire and Release.
	held bool
}

// Option configures a FileLock.
type Option func(*options)

type options struct {
	directory  string
	retryDelay time.Duration
}

// WithDirectory places the lock file in dir instead of the system temp directory.
func WithDirectory(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.directory = dir
		}
	}
}

// WithRetryDelay sets the polling interval used while waiting.
func WithRetryDelay(delay time.Duration) Option {
	return func(o *options) {
		if delay > 0 {
			o.retryDelay = delay
		}
	}
}

// New returns an unacquired lock for the given identifier.
func New(identifier string, opts ...Option) *FileLock {
	o := &options{
		directory:  os.TempDir(),
		retryDelay: defaultRetryDelay,
	}

	for _, opt := range opts {
		opt(o)
	}

	return &FileLock{
		flock:      flock.New(filepath.Join(o.directory, identifier+lockFileExtension)),
		retryDelay: o.retryDelay,
	}
}

// Path returns the lock file location.
func (l *FileLock) Path() string {
	return l.flock.Path()
}

// Acquire blocks until the lock is owned. There is no timeout;
// the wait ends early only when ctx is canceled.
func (l *FileLock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), directoryPermissions); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	locked, err := l.flock.TryLockContext(ctx, l.retryDelay)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", l.flock.Path(), err)
	}

	if !locked {
		return errNotAcquired
	}

	l.held = true

	return nil
}

// Release unlocks and closes the lock file.
// Calling it twice, or without a completed Acquire, is a no-op.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return nil
	}

	l.held = false

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release %s: %w", l.flock.Path(), err)
	}

	return nil
}

// Held reports whether this instance currently owns the lock.
func (l *FileLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.held
}
