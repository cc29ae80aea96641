package process

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
)

// CleanupArg tells the new instance that it may remove a leftover backup.
const CleanupArg = "--cleanup"

// errEmptyExecutable is returned when no executable path is given.
var errEmptyExecutable = errors.New("executable path is empty")

// Relauncher starts detached processes.
type Relauncher struct{}

// NewRelauncher returns a Relauncher.
func NewRelauncher() *Relauncher {
	return &Relauncher{}
}

// Launch starts executablePath with args in its own session and returns
// without waiting for it. The path is made absolute so a bare file name is
// not looked up in PATH.
func (r *Relauncher) Launch(executablePath string, args ...string) error {
	if executablePath == "" {
		return errEmptyExecutable
	}

	absolutePath, err := filepath.Abs(executablePath)
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	//nolint:gosec // Launching the downloaded executable is the whole point.
	cmd := exec.Command(absolutePath, args...)
	cmd.Dir = filepath.Dir(absolutePath)
	cmd.SysProcAttr = detachedAttributes()

	if err = cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", absolutePath, err)
	}

	// The child outlives us; drop our handle so it is not reaped here.
	if err = cmd.Process.Release(); err != nil {
		return fmt.Errorf("release %s: %w", absolutePath, err)
	}

	return nil
}
