// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared helpers for parsing and validating CUE
// configuration input: file size limits and user-facing error formatting
// with JSON-path prefixes.
package cueutil

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
)

// DefaultMaxFileSize is the maximum accepted config file size.
// Provisioner configs are a handful of scalars; anything near this
// limit is a mistake or an attack.
const DefaultMaxFileSize = 1 << 20 // 1 MiB

// FileTooLargeError is returned when a CUE file exceeds the size limit.
type FileTooLargeError struct {
	Path  string
	Size  int
	Limit int
}

// Error implements the error interface.
func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s: file size %d exceeds limit %d", e.Path, e.Size, e.Limit)
}

// CheckFileSize validates that data fits within limit bytes.
func CheckFileSize(data []byte, limit int, path string) error {
	if len(data) > limit {
		return &FileTooLargeError{Path: path, Size: len(data), Limit: limit}
	}
	return nil
}

// FormatError formats a CUE error with JSON path prefixes for clear
// user-facing messages.
//
// Error format: <file-path>: <json-path>: <message>
//
// Example:
//
//	config.cue: port: invalid value 70000 (out of bound <65536)
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	cueErrors := errors.Errors(err)
	if len(cueErrors) == 0 {
		// Not a CUE error, return with the file prefix only.
		return fmt.Errorf("%s: %w", filePath, err)
	}

	var lines []string
	for _, e := range cueErrors {
		pathStr := formatPath(errors.Path(e))
		msg := e.Error()

		// CUE sometimes includes the path in the message itself.
		if pathStr != "" && strings.HasPrefix(msg, pathStr) {
			msg = strings.TrimPrefix(msg, pathStr)
			msg = strings.TrimPrefix(msg, ":")
			msg = strings.TrimSpace(msg)
		}

		if pathStr != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", pathStr, msg))
		} else {
			lines = append(lines, msg)
		}
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filePath, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filePath, strings.Join(lines, "\n  "))
}

// formatPath converts a CUE error path to dotted notation for user-facing
// messages (e.g. ["hooks", "post_provision"] becomes "hooks.post_provision").
func formatPath(path []string) string {
	return strings.Join(path, ".")
}
