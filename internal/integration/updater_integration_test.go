package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/self-updater/internal/domain/update"
	"github.com/oshokin/self-updater/internal/lock"
	"github.com/oshokin/self-updater/internal/service/updater"
	"github.com/oshokin/self-updater/internal/version"
)

// relaunchScript writes a marker file next to itself with the arguments it was started with.
const relaunchScript = "#!/bin/sh\necho \"$@\" > \"$(dirname \"$0\")/relaunched.txt\"\n"

// TestUpdater_Run_ReplacesAndRelaunches serves a new executable over HTTP, replaces
// an old one and verifies the new one was started with --cleanup.
func TestUpdater_Run_ReplacesAndRelaunches(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("relaunch test uses a shell script")
	}

	var userAgent atomic.Value

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))

		_, _ = w.Write([]byte(relaunchScript))
	}))
	defer ts.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "app")
	require.NoError(t, os.WriteFile(target, []byte("#!/bin/sh\nexit 1\n"), 0o700))

	request := domain.Request{
		URL:          ts.URL + "/app",
		TargetPath:   target,
		BufferSize:   8,
		RestartAfter: true,
	}

	result := updater.Run(context.Background(), request,
		updater.WithLock(lock.New(lock.Identifier, lock.WithDirectory(dir))))

	require.Equal(t, domain.KindSuccess, result.Kind)
	require.True(t, result.Relaunched)
	require.Empty(t, result.Warnings)
	require.Equal(t, version.UserAgent(), userAgent.Load())

	contents, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, relaunchScript, string(contents))

	_, err = os.Stat(target + domain.BackupSuffix)
	require.ErrorIs(t, err, os.ErrNotExist)

	// Permissions of the replaced file are carried over.
	info, err := os.Stat(target)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	// The detached child writes its marker on its own schedule.
	marker := filepath.Join(dir, "relaunched.txt")

	require.Eventually(t, func() bool {
		data, readErr := os.ReadFile(marker)
		return readErr == nil && len(data) > 0
	}, 5*time.Second, 20*time.Millisecond)

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	require.Contains(t, string(data), "--cleanup")
}

// TestUpdater_Run_SecondInstanceWaits holds the lock from outside and checks the
// transaction starts only after it is released.
func TestUpdater_Run_SecondInstanceWaits(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("new"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "app.exe")

	holder := lock.New(lock.Identifier, lock.WithDirectory(dir))
	require.NoError(t, holder.Acquire(context.Background()))

	done := make(chan *domain.Result, 1)

	go func() {
		done <- updater.Run(context.Background(),
			domain.Request{URL: ts.URL, TargetPath: target},
			updater.WithLock(lock.New(lock.Identifier, lock.WithDirectory(dir), lock.WithRetryDelay(5*time.Millisecond))))
	}()

	select {
	case <-done:
		t.Fatal("transaction ran while another instance held the lock")
	case <-time.After(100 * time.Millisecond):
	}

	_, err := os.Stat(target)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, holder.Release())

	result := <-done
	require.Equal(t, domain.KindSuccess, result.Kind)
}
