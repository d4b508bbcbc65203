// SPDX-License-Identifier: MPL-2.0

// Package config defines hostprep's provisioning configuration.
//
// Configuration is resolved in three layers, lowest precedence first:
//
//  1. Built-in defaults (DefaultConfig)
//  2. An optional CUE config file, validated against the embedded #Config
//     schema (/etc/hostprep/config.cue, ./hostprep.cue, or --config)
//  3. HOSTPREP_* environment variables
//
// Every filesystem path and account name the provisioner touches is a
// deterministic function of ServiceName and AppDir; the derivation methods
// (EnvFilePath, UnitPath, LogDir, ...) are the single source of truth for
// artifact locations.
package config
