// SPDX-License-Identifier: MPL-2.0

// Package hooks runs operator-supplied shell snippets with the embedded
// mvdan/sh interpreter. No /bin/sh is involved, so hook behavior is the
// same on every host and the snippet can be syntax-checked at config load
// time, long before the provisioning run reaches it.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// scriptName labels the hook in parse and runtime error messages.
const scriptName = "post-provision"

// Options configures a hook invocation.
type Options struct {
	// Dir is the working directory for the script.
	Dir string

	// Env is exported to the script in addition to the process environment.
	Env map[string]string

	// Stdout and Stderr default to the process streams when nil.
	Stdout io.Writer
	Stderr io.Writer
}

// ExitError reports a hook that ran but exited non-zero.
type ExitError struct {
	Code int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("hook exited with status %d", e.Code)
}

// Validate parses the script and reports syntax errors without running it.
func Validate(script string) error {
	_, err := syntax.NewParser().Parse(strings.NewReader(script), scriptName)
	if err != nil {
		return fmt.Errorf("hook syntax error: %w", err)
	}
	return nil
}

// Run executes the script. The provided Env is appended to the inherited
// environment in sorted key order, so later runs see identical input.
func Run(ctx context.Context, script string, opts Options) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), scriptName)
	if err != nil {
		return fmt.Errorf("hook syntax error: %w", err)
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	runner, err := interp.New(
		interp.Dir(opts.Dir),
		interp.Env(expand.ListEnviron(environWith(opts.Env)...)),
		interp.StdIO(nil, stdout, stderr),
	)
	if err != nil {
		return fmt.Errorf("create hook interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &ExitError{Code: int(exitStatus)}
		}
		return fmt.Errorf("hook execution failed: %w", err)
	}

	return nil
}

// environWith appends extra KEY=VALUE entries, sorted by key, to the
// inherited environment.
func environWith(extra map[string]string) []string {
	env := os.Environ()

	keys := maps.Keys(extra)
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
