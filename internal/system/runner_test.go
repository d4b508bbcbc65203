// SPDX-License-Identifier: MPL-2.0

package system

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExecRunner_Output(t *testing.T) {
	r := NewExecRunner()
	out, err := r.Output(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if out != "hello" {
		t.Errorf("Output() = %q, want hello", out)
	}
}

func TestExecRunner_RunFailure(t *testing.T) {
	r := &ExecRunner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	err := r.Run(context.Background(), "false")
	if err == nil {
		t.Fatal("Run(false) should fail")
	}
	if !strings.Contains(err.Error(), "false") {
		t.Errorf("error should name the command, got %v", err)
	}
}

func TestExecRunner_RunEnv(t *testing.T) {
	var buf bytes.Buffer
	r := &ExecRunner{Stdout: &buf, Stderr: &buf}
	err := r.RunEnv(context.Background(), []string{"HOSTPREP_TEST_VALUE=marker"}, "sh", "-c", "echo $HOSTPREP_TEST_VALUE")
	if err != nil {
		t.Fatalf("RunEnv() error = %v", err)
	}
	if !strings.Contains(buf.String(), "marker") {
		t.Errorf("extra env not visible to command, got %q", buf.String())
	}
}

func TestRecordingRunner_RecordsAndFails(t *testing.T) {
	r := NewRecordingRunner()
	boom := errors.New("boom")
	r.FailOn["apt-get"] = boom

	if err := r.Run(context.Background(), "systemctl", "daemon-reload"); err != nil {
		t.Errorf("unexpected failure: %v", err)
	}
	if err := r.RunEnv(context.Background(), []string{"A=b"}, "apt-get", "update"); !errors.Is(err, boom) {
		t.Errorf("expected injected failure, got %v", err)
	}

	if len(r.Calls) != 2 {
		t.Fatalf("recorded %d calls, want 2", len(r.Calls))
	}
	if !r.Ran("systemctl daemon-reload") {
		t.Error("Ran() should match recorded call")
	}
	if r.Calls[1].ExtraEnv[0] != "A=b" {
		t.Errorf("ExtraEnv not recorded: %+v", r.Calls[1])
	}
}

func TestRecordingRunner_Outputs(t *testing.T) {
	r := NewRecordingRunner()
	r.Outputs["getent group ec2-api"] = "ec2-api:x:990:"
	r.Outputs["systemctl"] = "inactive"

	out, err := r.Output(context.Background(), "getent", "group", "ec2-api")
	if err != nil || out != "ec2-api:x:990:" {
		t.Errorf("Output() = %q, %v", out, err)
	}

	// Falls back to the bare command name.
	out, _ = r.Output(context.Background(), "systemctl", "is-active", "ec2-api")
	if out != "inactive" {
		t.Errorf("Output() fallback = %q", out)
	}
}

func TestRecordingRunner_LookPath(t *testing.T) {
	r := NewRecordingRunner()
	r.MissingBinaries["systemctl"] = true

	if _, err := r.LookPath("apt-get"); err != nil {
		t.Errorf("LookPath(apt-get) error = %v", err)
	}
	if _, err := r.LookPath("systemctl"); err == nil {
		t.Error("LookPath(systemctl) should fail when marked missing")
	}
}
