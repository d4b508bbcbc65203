// SPDX-License-Identifier: MPL-2.0

package system

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

type (
	// Runner executes external commands. The production implementation shells
	// out; tests and dry-run mode substitute a RecordingRunner.
	Runner interface {
		// Run executes a command, streaming stdout/stderr through.
		Run(ctx context.Context, name string, args ...string) error

		// RunEnv is Run with extra KEY=VALUE environment entries appended to
		// the inherited environment.
		RunEnv(ctx context.Context, extraEnv []string, name string, args ...string) error

		// Output executes a command and returns its trimmed combined output.
		Output(ctx context.Context, name string, args ...string) (string, error)

		// LookPath reports where a binary resolves on PATH.
		LookPath(name string) (string, error)
	}

	// ExecRunner runs commands on the host with exec.CommandContext.
	// Stdout/Stderr default to the process streams when nil.
	ExecRunner struct {
		Stdout io.Writer
		Stderr io.Writer
	}

	// Call records one command invocation seen by a RecordingRunner.
	Call struct {
		Name     string
		Args     []string
		ExtraEnv []string
	}

	// RecordingRunner records invocations without touching the host. It backs
	// both unit tests and --dry-run mode. FailOn injects failures keyed by
	// command name or by the full "name arg arg..." string; Outputs serves
	// canned Output() results keyed the same way.
	RecordingRunner struct {
		Calls   []Call
		FailOn  map[string]error
		Outputs map[string]string

		// Logger, when set, logs each call (dry-run mode).
		Logger *log.Logger

		// MissingBinaries makes LookPath fail for the named binaries.
		MissingBinaries map[string]bool
	}
)

// NewExecRunner returns a Runner wired to the process streams.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	return r.RunEnv(ctx, nil, name, args...)
}

// RunEnv implements Runner.
func (r *ExecRunner) RunEnv(ctx context.Context, extraEnv []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = r.stdout()
	cmd.Stderr = r.stderr()
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		return strings.TrimSpace(buf.String()), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// LookPath implements Runner.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (r *ExecRunner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *ExecRunner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

// NewRecordingRunner returns an empty RecordingRunner.
func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{
		FailOn:          map[string]error{},
		Outputs:         map[string]string{},
		MissingBinaries: map[string]bool{},
	}
}

// Run implements Runner.
func (r *RecordingRunner) Run(ctx context.Context, name string, args ...string) error {
	return r.RunEnv(ctx, nil, name, args...)
}

// RunEnv implements Runner.
func (r *RecordingRunner) RunEnv(_ context.Context, extraEnv []string, name string, args ...string) error {
	r.Calls = append(r.Calls, Call{Name: name, Args: args, ExtraEnv: extraEnv})
	if r.Logger != nil {
		r.Logger.Info("would run", "cmd", name+" "+strings.Join(args, " "))
	}
	return r.failure(name, args)
}

// Output implements Runner.
func (r *RecordingRunner) Output(_ context.Context, name string, args ...string) (string, error) {
	r.Calls = append(r.Calls, Call{Name: name, Args: args})
	if r.Logger != nil {
		r.Logger.Info("would run", "cmd", name+" "+strings.Join(args, " "))
	}
	if err := r.failure(name, args); err != nil {
		return "", err
	}
	key := commandKey(name, args)
	if out, ok := r.Outputs[key]; ok {
		return out, nil
	}
	return r.Outputs[name], nil
}

// LookPath implements Runner.
func (r *RecordingRunner) LookPath(name string) (string, error) {
	if r.MissingBinaries[name] {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	return "/usr/bin/" + name, nil
}

// CommandLines renders the recorded calls one per line, for assertions.
func (r *RecordingRunner) CommandLines() []string {
	lines := make([]string, 0, len(r.Calls))
	for _, c := range r.Calls {
		lines = append(lines, commandKey(c.Name, c.Args))
	}
	return lines
}

// Ran reports whether any recorded call starts with the given prefix.
func (r *RecordingRunner) Ran(prefix string) bool {
	for _, line := range r.CommandLines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func (r *RecordingRunner) failure(name string, args []string) error {
	if err, ok := r.FailOn[commandKey(name, args)]; ok {
		return err
	}
	if err, ok := r.FailOn[name]; ok {
		return err
	}
	return nil
}

func commandKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// IsRoot reports whether the process runs with root privileges.
func IsRoot() bool {
	return os.Geteuid() == 0
}
