package process

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"
)

// Instance is a running process whose executable matches a target.
type Instance struct {
	// PID is the process identifier.
	PID int
	// Executable is the executable name reported by the OS.
	Executable string
}

// FindRunning lists processes, other than this one, whose executable name
// equals the base name of executablePath. On Windows the comparison ignores case.
func FindRunning(executablePath string) ([]Instance, error) {
	name := filepath.Base(executablePath)

	processList, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	var found []Instance

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if !sameExecutable(process.Executable(), name) {
			continue
		}

		found = append(found, Instance{
			PID:        process.Pid(),
			Executable: process.Executable(),
		})
	}

	return found, nil
}

func sameExecutable(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}

	return a == b
}
