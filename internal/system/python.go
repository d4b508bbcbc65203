// SPDX-License-Identifier: MPL-2.0

package system

import (
	"context"
)

// VenvManager builds and populates an isolated Python runtime environment.
type VenvManager struct {
	runner Runner
}

// NewVenvManager returns a VenvManager backed by the given runner.
func NewVenvManager(r Runner) *VenvManager {
	return &VenvManager{runner: r}
}

// PythonAvailable reports whether the interpreter exists.
func (m *VenvManager) PythonAvailable(python string) bool {
	_, err := m.runner.LookPath(python)
	return err == nil
}

// Create builds a fresh venv at dir using the system interpreter.
func (m *VenvManager) Create(ctx context.Context, python, dir string) error {
	return m.runner.Run(ctx, python, "-m", "venv", dir)
}

// UpgradeTooling unconditionally upgrades the environment's own package
// manager tooling. Runs on every provisioning pass.
func (m *VenvManager) UpgradeTooling(ctx context.Context, pip string) error {
	return m.runner.Run(ctx, pip, "install", "--quiet", "--upgrade", "pip", "setuptools", "wheel")
}

// InstallRequirements installs exactly what the dependency manifest lists.
func (m *VenvManager) InstallRequirements(ctx context.Context, pip, manifest string) error {
	return m.runner.Run(ctx, pip, "install", "--quiet", "-r", manifest)
}

// InstallPackages installs the given packages into the venv.
func (m *VenvManager) InstallPackages(ctx context.Context, pip string, packages ...string) error {
	args := append([]string{"install", "--quiet"}, packages...)
	return m.runner.Run(ctx, pip, args...)
}
