//go:build !windows

package state

import "syscall"

// lockFile takes an exclusive advisory lock on fd, blocking until it is free.
func lockFile(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_EX)
}

// unlockFile releases a lock taken with lockFile.
func unlockFile(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_UN)
}
