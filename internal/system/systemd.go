// SPDX-License-Identifier: MPL-2.0

package system

import (
	"context"
)

// Systemd drives the service manager through systemctl. Reload/enable/restart
// are idempotent at the systemd level: repeating an already-applied operation
// succeeds.
type Systemd struct {
	runner Runner
}

// NewSystemd returns a Systemd controller backed by the given runner.
func NewSystemd(r Runner) *Systemd {
	return &Systemd{runner: r}
}

// IsAvailable reports whether systemctl resolves on PATH.
func (s *Systemd) IsAvailable() bool {
	_, err := s.runner.LookPath("systemctl")
	return err == nil
}

// DaemonReload makes systemd re-read unit definitions. Must run before
// Restart so the restart picks up a freshly rendered unit.
func (s *Systemd) DaemonReload(ctx context.Context) error {
	return s.runner.Run(ctx, "systemctl", "daemon-reload")
}

// Enable marks the unit for boot-time start.
func (s *Systemd) Enable(ctx context.Context, unit string) error {
	return s.runner.Run(ctx, "systemctl", "enable", unit)
}

// Restart stops the unit if running, then starts it, so config and code
// changes always take effect on a re-run.
func (s *Systemd) Restart(ctx context.Context, unit string) error {
	return s.runner.Run(ctx, "systemctl", "restart", unit)
}

// Status returns a short status report for operator visibility. Callers
// treat errors as best-effort: a failed status query never aborts a run.
func (s *Systemd) Status(ctx context.Context, unit string) (string, error) {
	return s.runner.Output(ctx, "systemctl", "status", unit, "--no-pager", "--lines", "5")
}

// IsActive reports whether the unit is currently running.
func (s *Systemd) IsActive(ctx context.Context, unit string) bool {
	out, err := s.runner.Output(ctx, "systemctl", "is-active", unit)
	return err == nil && out == "active"
}
