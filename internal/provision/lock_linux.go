// SPDX-License-Identifier: MPL-2.0

//go:build linux

package provision

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// runLock holds an exclusive flock on a well-known per-service file,
// serializing provisioning runs against the same host. The zero-byte lock
// file is harmless if orphaned: the kernel releases the flock when the fd
// closes, including on process crash.
type runLock struct {
	file *os.File
}

// acquireLock takes the per-service flock non-blockingly. A held lock means
// another operator is mid-run; interleaving package installs and service
// restarts with them would corrupt both runs, so the caller fails fast.
func acquireLock(serviceName string) (*runLock, error) {
	lockPath := lockFilePath(serviceName)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("%w (lock %s)", ErrLockHeld, lockPath)
		}
		return nil, fmt.Errorf("flock %s: %w", lockPath, err)
	}

	return &runLock{file: f}, nil
}

// Release unlocks the flock and closes the file descriptor. Safe to call
// multiple times; subsequent calls are no-ops.
func (l *runLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	// The kernel drops the flock on close regardless; explicit unlock just
	// shortens the window.
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}

// lockFilePath returns the per-service lock file location. Prefers
// /run/lock (tmpfs, root-writable, cleared on boot) with a TempDir
// fallback for unusual hosts.
func lockFilePath(serviceName string) string {
	dir := "/run/lock"
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "hostprep-"+serviceName+".lock")
}
