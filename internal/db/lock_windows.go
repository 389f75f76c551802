//go:build windows

package db

import (
	"golang.org/x/sys/windows"
)

// tryLock locks one byte at offset zero with LOCKFILE_FAIL_IMMEDIATELY;
// the whole-file semantics only need a single locked byte.
func (l *writeLocker) tryLock() error {
	ol := new(windows.Overlapped)
	return windows.LockFileEx(
		windows.Handle(l.lockFile.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ol,
	)
}

func (l *writeLocker) unlock() {
	if l.lockFile == nil {
		return
	}
	ol := new(windows.Overlapped)
	windows.UnlockFileEx(windows.Handle(l.lockFile.Fd()), 0, 1, 0, ol)
}

// isProcessAlive reports whether the pid maps to a running process. Exit
// code STILL_ACTIVE (259) means it has not terminated.
func isProcessAlive(pid int) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}
	return exitCode == 259
}
