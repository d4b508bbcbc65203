// SPDX-License-Identifier: MPL-2.0

//go:build linux

package provision

import (
	"errors"
	"testing"
)

func TestAcquireLock(t *testing.T) {
	first, err := acquireLock("lock-test")
	if err != nil {
		t.Fatalf("acquireLock() error: %v", err)
	}
	defer first.Release()

	// A second acquisition in the same process still conflicts: flock is
	// per open file description, and each call opens its own.
	_, err = acquireLock("lock-test")
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second acquireLock() = %v, want ErrLockHeld", err)
	}

	first.Release()

	third, err := acquireLock("lock-test")
	if err != nil {
		t.Fatalf("acquireLock() after release: %v", err)
	}
	third.Release()
}

func TestRunLock_ReleaseIdempotent(t *testing.T) {
	lock, err := acquireLock("lock-release-test")
	if err != nil {
		t.Fatalf("acquireLock() error: %v", err)
	}
	lock.Release()
	lock.Release()

	var nilLock *runLock
	nilLock.Release()
}

func TestLockFilePath_PerService(t *testing.T) {
	t.Parallel()

	a := lockFilePath("ec2-api")
	b := lockFilePath("other-api")
	if a == b {
		t.Errorf("lock paths collide: %s", a)
	}
}
