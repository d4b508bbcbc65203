// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride allows tests to point the host-wide config directory
// somewhere writable instead of /etc/hostprep.
var configDirOverride string

// Reset clears test overrides. Call from test cleanup to restore defaults.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride sets a custom host-wide config directory path.
// Primarily intended for testing.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
