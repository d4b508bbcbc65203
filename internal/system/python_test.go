// SPDX-License-Identifier: MPL-2.0

package system

import (
	"context"
	"testing"
)

func TestVenvManager_Create(t *testing.T) {
	r := NewRecordingRunner()
	err := NewVenvManager(r).Create(context.Background(), "/usr/bin/python3", "/home/ubuntu/app/venv")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !r.Ran("/usr/bin/python3 -m venv /home/ubuntu/app/venv") {
		t.Errorf("recorded %v", r.CommandLines())
	}
}

func TestVenvManager_UpgradeTooling(t *testing.T) {
	r := NewRecordingRunner()
	err := NewVenvManager(r).UpgradeTooling(context.Background(), "/home/ubuntu/app/venv/bin/pip")
	if err != nil {
		t.Fatalf("UpgradeTooling() error = %v", err)
	}
	if !r.Ran("/home/ubuntu/app/venv/bin/pip install --quiet --upgrade pip setuptools wheel") {
		t.Errorf("recorded %v", r.CommandLines())
	}
}

func TestVenvManager_InstallRequirements(t *testing.T) {
	r := NewRecordingRunner()
	err := NewVenvManager(r).InstallRequirements(context.Background(), "/v/bin/pip", "/app/requirements.txt")
	if err != nil {
		t.Fatalf("InstallRequirements() error = %v", err)
	}
	if !r.Ran("/v/bin/pip install --quiet -r /app/requirements.txt") {
		t.Errorf("recorded %v", r.CommandLines())
	}
}

func TestVenvManager_InstallPackages(t *testing.T) {
	r := NewRecordingRunner()
	err := NewVenvManager(r).InstallPackages(context.Background(), "/v/bin/pip", "fastapi", "uvicorn", "gunicorn", "httpx")
	if err != nil {
		t.Fatalf("InstallPackages() error = %v", err)
	}
	if !r.Ran("/v/bin/pip install --quiet fastapi uvicorn gunicorn httpx") {
		t.Errorf("recorded %v", r.CommandLines())
	}
}
