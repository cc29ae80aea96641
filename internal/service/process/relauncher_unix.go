//go:build !windows

package process

import "syscall"

// detachedAttributes puts the child in a new session so it survives our exit
// and does not receive signals aimed at our process group.
func detachedAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid: true,
	}
}
