// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package provision

// runLock is a no-op on non-Linux hosts. Provisioning targets Linux; this
// stub only keeps development builds working elsewhere.
type runLock struct{}

func acquireLock(string) (*runLock, error) {
	return &runLock{}, nil
}

// Release is a no-op.
func (l *runLock) Release() {}
