package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	lockFileName   = "db.lock"
	defaultTimeout = 500 * time.Millisecond
	initialBackoff = 5 * time.Millisecond
	maxBackoff     = 50 * time.Millisecond
)

// writeLocker serializes writers across processes with an OS file lock on
// .cardbox/db.lock. The OS drops the lock when the holder exits, so a
// crashed process never wedges the store.
type writeLocker struct {
	lockPath string
	lockFile *os.File
}

func newWriteLocker(baseDir string) *writeLocker {
	return &writeLocker{
		lockPath: filepath.Join(baseDir, ".cardbox", lockFileName),
	}
}

// acquire polls for the exclusive lock with capped exponential backoff
// until timeout. The timeout error names the current holder when the lock
// file identifies one.
func (l *writeLocker) acquire(timeout time.Duration) error {
	f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	l.lockFile = f

	deadline := time.Now().Add(timeout)
	for backoff := initialBackoff; ; {
		if err := l.tryLock(); err == nil {
			l.stampHolder()
			return nil
		}

		if time.Now().After(deadline) {
			holder := l.describeHolder()
			l.lockFile.Close()
			l.lockFile = nil
			return fmt.Errorf("write lock held by %s, gave up after %v", holder, timeout)
		}

		time.Sleep(backoff)
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (l *writeLocker) release() error {
	if l.lockFile == nil {
		return nil
	}
	l.lockFile.Truncate(0)
	l.unlock()
	l.lockFile.Close()
	l.lockFile = nil
	return nil
}

// stampHolder records pid and acquire time in the lock file so a blocked
// process can report who holds the lock.
func (l *writeLocker) stampHolder() {
	if l.lockFile == nil {
		return
	}
	l.lockFile.Truncate(0)
	l.lockFile.Seek(0, 0)
	fmt.Fprintf(l.lockFile, "pid %d since %s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	l.lockFile.Sync()
}

// describeHolder reads the holder stamp and flags it when the recorded
// process is no longer alive.
func (l *writeLocker) describeHolder() string {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return "unknown process"
	}

	stamp := strings.TrimSpace(string(data))
	parts := strings.Fields(stamp)
	if len(parts) < 2 || parts[0] != "pid" {
		return "unknown process"
	}

	if pid, perr := strconv.Atoi(parts[1]); perr == nil && !isProcessAlive(pid) {
		return stamp + " (stale, process gone)"
	}
	return stamp
}

// tryLock, unlock, and isProcessAlive are per-platform:
// flock in lock_unix.go, LockFileEx in lock_windows.go.
