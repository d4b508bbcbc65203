// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"strings"
	"testing"

	"hostprep/internal/config"
)

func TestRenderUnit(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	unit, err := RenderUnit(cfg)
	if err != nil {
		t.Fatalf("RenderUnit() error: %v", err)
	}

	if strings.Contains(unit, "{{") || strings.Contains(unit, "}}") {
		t.Errorf("unresolved template fields:\n%s", unit)
	}

	for _, want := range []string{
		"Description=ec2-api web application",
		"User=ec2-api",
		"Group=ec2-api",
		"WorkingDirectory=/home/ubuntu/app",
		"EnvironmentFile=/etc/ec2-api.env",
		"ExecStart=/home/ubuntu/app/venv/bin/gunicorn ${APP_MODULE}",
		"--worker-class uvicorn.workers.UvicornWorker",
		"--bind 0.0.0.0:${PORT}",
		"--workers ${WORKERS}",
		"--timeout ${TIMEOUT}",
		"--graceful-timeout ${GRACEFUL_TIMEOUT}",
		"--access-logfile /var/log/ec2-api/access.log",
		"--error-logfile /var/log/ec2-api/error.log",
		"Restart=always",
		"KillSignal=SIGQUIT",
		"TimeoutStopSec=35",
		"ReadWritePaths=/home/ubuntu/app /var/log/ec2-api",
		"WantedBy=multi-user.target",
	} {
		if !strings.Contains(unit, want) {
			t.Errorf("unit missing %q", want)
		}
	}
}

// Runtime knobs stay as ${VAR} references so systemd expands them from the
// env file at start time; an operator editing PORT there must not need a
// re-render.
func TestRenderUnit_EnvFileDrivenKnobs(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Port = 9090
	cfg.Workers = 16

	unit, err := RenderUnit(cfg)
	if err != nil {
		t.Fatalf("RenderUnit() error: %v", err)
	}

	if strings.Contains(unit, "9090") || strings.Contains(unit, "--workers 16") {
		t.Errorf("config values baked into the unit instead of ${VAR} references:\n%s", unit)
	}
	if !strings.Contains(unit, "--bind 0.0.0.0:${PORT}") {
		t.Error("bind address does not reference ${PORT}")
	}
}

func TestRenderUnit_ProtectHome(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig() // app under /home
	unit, err := RenderUnit(cfg)
	if err != nil {
		t.Fatalf("RenderUnit() error: %v", err)
	}
	if !strings.Contains(unit, "ProtectHome=false") {
		t.Errorf("app under /home must disable ProtectHome:\n%s", unit)
	}

	cfg.AppDir = "/srv/ec2-api"
	unit, err = RenderUnit(cfg)
	if err != nil {
		t.Fatalf("RenderUnit() error: %v", err)
	}
	if !strings.Contains(unit, "ProtectHome=read-only") {
		t.Errorf("app outside /home should keep ProtectHome=read-only:\n%s", unit)
	}
}

func TestRenderUnit_TimeoutStopTracksGraceful(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.GracefulTimeoutSecs = 60

	unit, err := RenderUnit(cfg)
	if err != nil {
		t.Fatalf("RenderUnit() error: %v", err)
	}
	if !strings.Contains(unit, "TimeoutStopSec=65") {
		t.Errorf("TimeoutStopSec should be graceful timeout plus slack:\n%s", unit)
	}
}

func TestRenderLogrotate(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	policy := RenderLogrotate(cfg)

	if !strings.HasPrefix(policy, "/var/log/ec2-api/*.log {") {
		t.Errorf("policy glob = %q", policy)
	}
	for _, want := range []string{"daily", "rotate 14", "compress", "delaycompress", "missingok", "notifempty", "copytruncate"} {
		if !strings.Contains(policy, want) {
			t.Errorf("policy missing %q", want)
		}
	}
}
