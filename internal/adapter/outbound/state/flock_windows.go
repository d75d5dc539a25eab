//go:build windows

package state

import "golang.org/x/sys/windows"

// lockFile takes an exclusive lock on the first byte of fd with LockFileEx,
// blocking until it is free like flock(2) does.
func lockFile(fd uintptr) error {
	var ol windows.Overlapped
	return windows.LockFileEx(windows.Handle(fd), windows.LOCKFILE_EXCLUSIVE_LOCK, 0, 1, 0, &ol)
}

// unlockFile releases a lock taken with lockFile.
func unlockFile(fd uintptr) error {
	var ol windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(fd), 0, 1, 0, &ol)
}
