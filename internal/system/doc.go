// SPDX-License-Identifier: MPL-2.0

// Package system wraps the external commands hostprep drives: apt-get,
// getent/groupadd/useradd, python/pip, and systemctl.
//
// Every manager takes a Runner, so provisioning logic can be exercised in
// tests (and in --dry-run) with a RecordingRunner instead of a real host.
// All managers are stateless; idempotence lives in the commands themselves
// (re-installing an installed package is a no-op) or in the caller's
// check-before-create logic.
package system
