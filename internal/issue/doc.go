// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error handling for hostprep.
//
// Two complementary mechanisms live here:
//
//   - ActionableError / ErrorContext: structured errors carrying the failed
//     operation, the resource involved, and fix suggestions. Provisioning
//     stages wrap the diagnostics of failing external commands with these.
//   - Issue registry: known environmental failure modes (not running as root,
//     systemd missing, python3 missing, ...) with markdown guidance rendered
//     to the terminal via glamour.
package issue
