// SPDX-License-Identifier: MPL-2.0

// Package provision implements the ordered, idempotent stage sequence that
// turns a bare Linux host into one running the configured web application as
// a hardened systemd service.
//
// The pipeline is strictly linear: packages, service account, runtime
// environment, env file, permissions, unit, logrotate, activation, optional
// post-provision hook, health probe. There is no rollback; a fatal stage
// aborts the run and leaves partial state on disk for the operator to
// inspect and re-run.
//
// Idempotence is deliberately asymmetric per artifact and must stay that way:
//
//   - account and venv: check first, create at most once
//   - env file: created once, never overwritten (operator edits persist);
//     ownership and mode are reasserted every run
//   - unit and logrotate policy: overwritten every run
//   - ownership of app/runtime/log dirs: reasserted every run
//
// All host interaction goes through injected interfaces so the sequence can
// be tested with fakes (and driven in --dry-run) without a real machine.
package provision
