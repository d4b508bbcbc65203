// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceName != "ec2-api" {
		t.Errorf("ServiceName = %q, want ec2-api", cfg.ServiceName)
	}
	if cfg.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Port)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.TimeoutSecs != 90 {
		t.Errorf("TimeoutSecs = %d, want 90", cfg.TimeoutSecs)
	}
	if cfg.GracefulTimeoutSecs != 30 {
		t.Errorf("GracefulTimeoutSecs = %d, want 30", cfg.GracefulTimeoutSecs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}

	for _, dep := range []string{"fastapi", "uvicorn", "gunicorn", "httpx"} {
		found := false
		for _, d := range cfg.FallbackDeps {
			if d == dep {
				found = true
			}
		}
		if !found {
			t.Errorf("FallbackDeps missing %q", dep)
		}
	}
}

func TestConfig_DerivedPaths(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"User", cfg.User(), "ec2-api"},
		{"Group", cfg.Group(), "ec2-api"},
		{"VenvDir", cfg.VenvDir(), "/home/ubuntu/app/venv"},
		{"GunicornBin", cfg.GunicornBin(), "/home/ubuntu/app/venv/bin/gunicorn"},
		{"PipBin", cfg.PipBin(), "/home/ubuntu/app/venv/bin/pip"},
		{"RequirementsPath", cfg.RequirementsPath(), "/home/ubuntu/app/requirements.txt"},
		{"EnvFilePath", cfg.EnvFilePath(), "/etc/ec2-api.env"},
		{"UnitPath", cfg.UnitPath(), "/etc/systemd/system/ec2-api.service"},
		{"LogrotatePath", cfg.LogrotatePath(), "/etc/logrotate.d/ec2-api"},
		{"LogDir", cfg.LogDir(), "/var/log/ec2-api"},
		{"AccessLogPath", cfg.AccessLogPath(), "/var/log/ec2-api/access.log"},
		{"ErrorLogPath", cfg.ErrorLogPath(), "/var/log/ec2-api/error.log"},
		{"HealthURL", cfg.HealthURL(9090), "http://127.0.0.1:9090/healthz"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestConfig_AppUnderHome(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.AppUnderHome() {
		t.Error("AppUnderHome() = false for /home/ubuntu/app")
	}

	cfg.AppDir = "/opt/ec2-api"
	if cfg.AppUnderHome() {
		t.Error("AppUnderHome() = true for /opt/ec2-api")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"uppercase service name", func(c *Config) { c.ServiceName = "EC2-API" }, ErrInvalidServiceName},
		{"empty service name", func(c *Config) { c.ServiceName = "" }, ErrInvalidServiceName},
		{"relative app dir", func(c *Config) { c.AppDir = "app" }, ErrInvalidAppDir},
		{"port zero", func(c *Config) { c.Port = 0 }, ErrInvalidPort},
		{"port too large", func(c *Config) { c.Port = 70000 }, ErrInvalidPort},
		{"zero workers", func(c *Config) { c.Workers = 0 }, ErrInvalidWorkers},
		{"zero timeout", func(c *Config) { c.TimeoutSecs = 0 }, ErrInvalidTimeout},
		{"zero graceful timeout", func(c *Config) { c.GracefulTimeoutSecs = 0 }, ErrInvalidTimeout},
		{"module without attribute", func(c *Config) { c.AppModule = "app.main" }, ErrInvalidAppModule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_HookSyntax(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Hooks.PostProvision = "if true; then echo broken"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want hook syntax error")
	}
	if !strings.Contains(err.Error(), "hooks.post_provision") {
		t.Errorf("Validate() = %v, want hooks.post_provision prefix", err)
	}

	cfg = DefaultConfig()
	cfg.Hooks.PostProvision = "curl -fsS http://127.0.0.1:8000/healthz"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with valid hook = %v, want nil", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	SetConfigDirOverride(t.TempDir()) // empty dir: no config file
	defer Reset()

	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServiceName != "ec2-api" || cfg.Port != 8000 {
		t.Errorf("Load() without config file should return defaults, got %+v", cfg)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	defer Reset()

	content := `
service_name: "probe-api"
app_dir:      "/srv/probe"
port:         9090
workers:      2
`
	if err := os.WriteFile(filepath.Join(dir, "config.cue"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServiceName != "probe-api" {
		t.Errorf("ServiceName = %q, want probe-api", cfg.ServiceName)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	// Unset fields keep their defaults.
	if cfg.TimeoutSecs != 90 {
		t.Errorf("TimeoutSecs = %d, want default 90", cfg.TimeoutSecs)
	}
	// Derivations follow the overridden identity.
	if got := cfg.EnvFilePath(); got != "/etc/probe-api.env" {
		t.Errorf("EnvFilePath() = %q", got)
	}
	if got := cfg.VenvDir(); got != "/srv/probe/venv" {
		t.Errorf("VenvDir() = %q", got)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	defer Reset()

	// port violates the schema bound
	if err := os.WriteFile(filepath.Join(dir, "config.cue"), []byte(`port: 99999`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(LoadOptions{})
	if err == nil {
		t.Fatal("Load() with invalid config should fail")
	}
	if !strings.Contains(err.Error(), "config.cue") {
		t.Errorf("error should name the offending file, got: %v", err)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(LoadOptions{ConfigFilePath: "/nonexistent/hostprep.cue"})
	if err == nil {
		t.Fatal("Load() with missing explicit config should fail")
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.cue")
	if err := os.WriteFile(path, []byte(`service_name: "lb-probe"`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServiceName != "lb-probe" {
		t.Errorf("ServiceName = %q, want lb-probe", cfg.ServiceName)
	}
}
