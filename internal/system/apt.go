// SPDX-License-Identifier: MPL-2.0

package system

import (
	"context"
)

// aptEnv keeps apt from prompting; provisioning runs unattended.
var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// AptManager installs OS packages through apt-get.
type AptManager struct {
	runner Runner
}

// NewAptManager returns an AptManager backed by the given runner.
func NewAptManager(r Runner) *AptManager {
	return &AptManager{runner: r}
}

// IsAvailable reports whether apt-get resolves on PATH.
func (m *AptManager) IsAvailable() bool {
	_, err := m.runner.LookPath("apt-get")
	return err == nil
}

// Update refreshes the package index.
func (m *AptManager) Update(ctx context.Context) error {
	return m.runner.RunEnv(ctx, aptEnv, "apt-get", "update", "-q")
}

// Install ensures the named packages are present. Already-installed packages
// are a no-op for apt, which is what makes the package stage re-runnable.
// Recommended/suggested extras are never pulled in.
func (m *AptManager) Install(ctx context.Context, packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	args := append([]string{"install", "-y", "-q", "--no-install-recommends"}, packages...)
	return m.runner.RunEnv(ctx, aptEnv, "apt-get", args...)
}
