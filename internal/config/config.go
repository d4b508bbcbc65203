// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"hostprep/internal/cueutil"
	"hostprep/internal/hooks"
	"hostprep/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "hostprep"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// SystemConfigDir is where a host-wide config file lives.
	SystemConfigDir = "/etc/hostprep"
)

//go:embed config_schema.cue
var configSchema string

var (
	// ErrInvalidServiceName is returned when the service name is not a valid unit name.
	ErrInvalidServiceName = errors.New("invalid service name")
	// ErrInvalidAppDir is returned when the app directory is not an absolute path.
	ErrInvalidAppDir = errors.New("invalid app directory")
	// ErrInvalidPort is returned when the port is outside 1-65535.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count")
	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidAppModule is returned when the ASGI entry point is malformed.
	ErrInvalidAppModule = errors.New("invalid app module")
)

// serviceNameRe matches names safe for unit files, account names, and paths.
var serviceNameRe = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

type (
	// Config is the immutable set of provisioning parameters. Everything the
	// provisioner writes or runs derives from these values.
	Config struct {
		// ServiceName names the systemd unit, the service account, and the
		// group. It also keys the logrotate policy and the env file path.
		ServiceName string `mapstructure:"service_name"`

		// AppDir is the directory holding the application source.
		AppDir string `mapstructure:"app_dir"`

		// PythonBin is the system interpreter used to create the venv.
		PythonBin string `mapstructure:"python_bin"`

		// AppModule is the ASGI entry point (module:attribute).
		AppModule string `mapstructure:"app_module"`

		// Env is the deployment environment name written to the env file.
		Env string `mapstructure:"env"`

		// Port is the default bind port, used when the env file is created
		// and as the probe fallback.
		Port int `mapstructure:"port"`

		// Workers is the default app server worker count.
		Workers int `mapstructure:"workers"`

		// TimeoutSecs is the per-request timeout written to the env file.
		TimeoutSecs int `mapstructure:"timeout"`

		// GracefulTimeoutSecs is the graceful shutdown window.
		GracefulTimeoutSecs int `mapstructure:"graceful_timeout"`

		// Packages is the OS package list ensured by the package stage.
		Packages []string `mapstructure:"packages"`

		// FallbackDeps is installed into the venv when the app ships no
		// requirements.txt.
		FallbackDeps []string `mapstructure:"fallback_deps"`

		// Hooks configures optional operator shell snippets.
		Hooks HooksConfig `mapstructure:"hooks"`
	}

	// HooksConfig holds operator-supplied shell snippets run by hostprep.
	HooksConfig struct {
		// PostProvision runs after service activation, before the health
		// probe. Failures are fatal.
		PostProvision string `mapstructure:"post_provision"`
	}

	// LoadOptions controls config resolution.
	LoadOptions struct {
		// ConfigFilePath is an explicit --config value. When set, it is used
		// exclusively; a missing file is an error.
		ConfigFilePath string
	}
)

// DefaultConfig returns the built-in configuration for the ec2-api service.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:         "ec2-api",
		AppDir:              "/home/ubuntu/app",
		PythonBin:           "/usr/bin/python3",
		AppModule:           "app.main:app",
		Env:                 "production",
		Port:                8000,
		Workers:             4,
		TimeoutSecs:         90,
		GracefulTimeoutSecs: 30,
		Packages: []string{
			"python3",
			"python3-venv",
			"python3-pip",
			"curl",
		},
		FallbackDeps: []string{
			"fastapi",
			"uvicorn",
			"gunicorn",
			"httpx",
		},
	}
}

// --- Derived artifact locations ---
// All derivations are deterministic functions of ServiceName and AppDir.

// User returns the OS account the service runs as.
func (c *Config) User() string { return c.ServiceName }

// Group returns the OS group the service runs as.
func (c *Config) Group() string { return c.ServiceName }

// VenvDir returns the isolated runtime environment directory.
func (c *Config) VenvDir() string { return filepath.Join(c.AppDir, "venv") }

// GunicornBin returns the app server binary inside the venv.
func (c *Config) GunicornBin() string { return filepath.Join(c.VenvDir(), "bin", "gunicorn") }

// PipBin returns the pip binary inside the venv.
func (c *Config) PipBin() string { return filepath.Join(c.VenvDir(), "bin", "pip") }

// RequirementsPath returns the optional dependency manifest location.
func (c *Config) RequirementsPath() string { return filepath.Join(c.AppDir, "requirements.txt") }

// EnvFilePath returns the service environment file location.
func (c *Config) EnvFilePath() string { return "/etc/" + c.ServiceName + ".env" }

// UnitPath returns the systemd unit file location.
func (c *Config) UnitPath() string {
	return "/etc/systemd/system/" + c.ServiceName + ".service"
}

// LogrotatePath returns the logrotate policy file location.
func (c *Config) LogrotatePath() string { return "/etc/logrotate.d/" + c.ServiceName }

// LogDir returns the service log directory.
func (c *Config) LogDir() string { return "/var/log/" + c.ServiceName }

// AccessLogPath returns the app server access log file.
func (c *Config) AccessLogPath() string { return filepath.Join(c.LogDir(), "access.log") }

// ErrorLogPath returns the app server error log file.
func (c *Config) ErrorLogPath() string { return filepath.Join(c.LogDir(), "error.log") }

// AppUnderHome reports whether the application lives under a user home
// directory, in which case the unit must not mount /home read-only.
func (c *Config) AppUnderHome() bool {
	return strings.HasPrefix(c.AppDir, "/home/")
}

// HealthURL returns the loopback health endpoint for the given port.
func (c *Config) HealthURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
}

// Validate checks constraints the CUE schema cannot express for values
// arriving via environment overrides, plus cross-field sanity.
func (c *Config) Validate() error {
	if !serviceNameRe.MatchString(c.ServiceName) {
		return fmt.Errorf("%w: %q (want lowercase letters, digits, hyphens)", ErrInvalidServiceName, c.ServiceName)
	}
	if !filepath.IsAbs(c.AppDir) {
		return fmt.Errorf("%w: %q (must be absolute)", ErrInvalidAppDir, c.AppDir)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}
	if c.TimeoutSecs < 1 || c.GracefulTimeoutSecs < 1 {
		return fmt.Errorf("%w: timeout=%d graceful_timeout=%d", ErrInvalidTimeout, c.TimeoutSecs, c.GracefulTimeoutSecs)
	}
	if !strings.Contains(c.AppModule, ":") {
		return fmt.Errorf("%w: %q (want module:attribute)", ErrInvalidAppModule, c.AppModule)
	}
	if c.Hooks.PostProvision != "" {
		if err := hooks.Validate(c.Hooks.PostProvision); err != nil {
			return fmt.Errorf("hooks.post_provision: %w", err)
		}
	}
	return nil
}

// Load resolves the effective configuration: defaults, then an optional CUE
// config file validated against the embedded schema, then HOSTPREP_* env vars.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("service_name", defaults.ServiceName)
	v.SetDefault("app_dir", defaults.AppDir)
	v.SetDefault("python_bin", defaults.PythonBin)
	v.SetDefault("app_module", defaults.AppModule)
	v.SetDefault("env", defaults.Env)
	v.SetDefault("port", defaults.Port)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("timeout", defaults.TimeoutSecs)
	v.SetDefault("graceful_timeout", defaults.GracefulTimeoutSecs)
	v.SetDefault("packages", defaults.Packages)
	v.SetDefault("fallback_deps", defaults.FallbackDeps)
	v.SetDefault("hooks.post_provision", "")

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// If a custom config file path is set via --config, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run without --config to use built-in defaults").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, wrapConfigParseError(err, opts.ConfigFilePath)
		}
	} else {
		for _, candidate := range defaultConfigPaths() {
			if !fileExists(candidate) {
				continue
			}
			if err := loadCUEIntoViper(v, candidate); err != nil {
				return nil, wrapConfigParseError(err, candidate)
			}
			break
		}
		// No config file found: defaults plus env overrides.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Run 'hostprep config show' to inspect the effective values").
			Wrap(err).
			BuildError()
	}

	return &cfg, nil
}

// defaultConfigPaths returns the config file search order: the host-wide
// directory first, then the invocation directory.
func defaultConfigPaths() []string {
	dir := SystemConfigDir
	if configDirOverride != "" {
		dir = configDirOverride
	}
	return []string{
		filepath.Join(dir, ConfigFileName+"."+ConfigFileExt),
		AppName + "." + ConfigFileExt,
	}
}

func wrapConfigParseError(err error, path string) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the values match the expected schema (see 'hostprep config show')").
		Wrap(err).
		BuildError()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config
// schema, and merges its contents into Viper. Config fields are optional,
// so validation runs with Concrete(false).
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	return v.MergeConfigMap(configMap)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
