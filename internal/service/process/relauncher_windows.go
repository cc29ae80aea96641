//go:build windows

package process

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// detachedAttributes starts the child without our console and in its own
// process group so Ctrl+C in this console does not reach it.
func detachedAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
	}
}
