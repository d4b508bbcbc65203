// SPDX-License-Identifier: MPL-2.0

package system

import (
	"context"
	"testing"
)

func TestAptManager_Install(t *testing.T) {
	r := NewRecordingRunner()
	m := NewAptManager(r)

	if err := m.Install(context.Background(), "python3", "python3-venv"); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	want := "apt-get install -y -q --no-install-recommends python3 python3-venv"
	if !r.Ran(want) {
		t.Errorf("recorded %v, want %q", r.CommandLines(), want)
	}
	if r.Calls[0].ExtraEnv[0] != "DEBIAN_FRONTEND=noninteractive" {
		t.Errorf("apt must run noninteractively, env = %v", r.Calls[0].ExtraEnv)
	}
}

func TestAptManager_InstallNothing(t *testing.T) {
	r := NewRecordingRunner()
	if err := NewAptManager(r).Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if len(r.Calls) != 0 {
		t.Errorf("empty install should not invoke apt, got %v", r.CommandLines())
	}
}

func TestAptManager_Update(t *testing.T) {
	r := NewRecordingRunner()
	if err := NewAptManager(r).Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !r.Ran("apt-get update") {
		t.Errorf("recorded %v", r.CommandLines())
	}
}

func TestAptManager_IsAvailable(t *testing.T) {
	r := NewRecordingRunner()
	m := NewAptManager(r)
	if !m.IsAvailable() {
		t.Error("IsAvailable() = false with apt-get on PATH")
	}

	r.MissingBinaries["apt-get"] = true
	if m.IsAvailable() {
		t.Error("IsAvailable() = true with apt-get missing")
	}
}
