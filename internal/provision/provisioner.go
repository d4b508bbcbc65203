// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"hostprep/internal/config"
	"hostprep/internal/envfile"
	"hostprep/internal/hooks"
	"hostprep/internal/issue"
	"hostprep/internal/system"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

var (
	// ErrAptUnavailable means apt-get is not on PATH.
	ErrAptUnavailable = errors.New("apt-get not available")
	// ErrSystemdUnavailable means systemctl is not on PATH.
	ErrSystemdUnavailable = errors.New("systemctl not available")
	// ErrPythonUnavailable means the configured interpreter does not resolve.
	ErrPythonUnavailable = errors.New("python interpreter not found")
	// ErrLockHeld means another provisioning run holds the host lock.
	ErrLockHeld = errors.New("another provisioning run is in progress")
)

type (
	// PackageInstaller ensures OS packages are present.
	PackageInstaller interface {
		IsAvailable() bool
		Update(ctx context.Context) error
		Install(ctx context.Context, packages ...string) error
	}

	// AccountManager creates and inspects the service account.
	AccountManager interface {
		GroupExists(ctx context.Context, name string) bool
		UserExists(ctx context.Context, name string) bool
		CreateGroup(ctx context.Context, name string) error
		CreateUser(ctx context.Context, name, group, home string) error
		UserInfo(ctx context.Context, name string) (*system.UserInfo, error)
		GroupGID(ctx context.Context, name string) (string, error)
	}

	// RuntimeBuilder creates and populates the isolated runtime environment.
	RuntimeBuilder interface {
		PythonAvailable(python string) bool
		Create(ctx context.Context, python, dir string) error
		UpgradeTooling(ctx context.Context, pip string) error
		InstallRequirements(ctx context.Context, pip, manifest string) error
		InstallPackages(ctx context.Context, pip string, packages ...string) error
	}

	// Supervisor drives the service manager.
	Supervisor interface {
		IsAvailable() bool
		DaemonReload(ctx context.Context) error
		Enable(ctx context.Context, unit string) error
		Restart(ctx context.Context, unit string) error
		Status(ctx context.Context, unit string) (string, error)
	}

	// Deps are the injection points for building a Provisioner. Nil fields
	// are replaced with production defaults by New; tests supply fakes.
	Deps struct {
		FS         afero.Fs
		Runner     system.Runner
		Packages   PackageInstaller
		Accounts   AccountManager
		Runtime    RuntimeBuilder
		Supervisor Supervisor
		HTTPClient *http.Client
		Logger     *log.Logger

		// SkipProbe disables the final health probe.
		SkipProbe bool
		// DryRun logs every external command instead of executing it and
		// diverts all file writes to an in-memory overlay.
		DryRun bool
	}

	// Summary reports what a run created or observed, for operator output.
	Summary struct {
		// Artifacts lists the filesystem artifacts the run ensured.
		Artifacts []Artifact
		// EnvFileCreated is true when this run generated the env file.
		EnvFileCreated bool
		// Port is the effective service port (env file wins over defaults).
		Port int
		// AccountWarnings lists detected service-account drift.
		AccountWarnings []string
		// StatusOutput is the best-effort systemctl status capture.
		StatusOutput string
		// ProbeErr holds the advisory health probe failure, if any.
		ProbeErr error
		// ProbeDone is true when the probe was attempted.
		ProbeDone bool
	}

	// Artifact is one provisioned filesystem artifact.
	Artifact struct {
		Path string
		Note string
	}

	// Provisioner runs the stage sequence for one configuration.
	Provisioner struct {
		cfg        *config.Config
		fs         afero.Fs
		run        system.Runner
		pkgs       PackageInstaller
		accounts   AccountManager
		runtime    RuntimeBuilder
		supervisor Supervisor
		httpClient *http.Client
		logger     *log.Logger
		skipProbe  bool
		dryRun     bool

		// effectiveEnv is the parsed env file; populated by the env stage.
		effectiveEnv map[string]string

		summary *Summary
	}
)

// New builds a Provisioner, filling nil dependencies with production
// defaults. In dry-run mode the runner is replaced with a recording runner
// and file writes land in a copy-on-write overlay over the real filesystem.
func New(cfg *config.Config, deps Deps) *Provisioner {
	logger := deps.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "provision"})
	}

	runner := deps.Runner
	fs := deps.FS
	if deps.DryRun {
		rec := system.NewRecordingRunner()
		rec.Logger = logger
		runner = rec
		base := fs
		if base == nil {
			base = afero.NewOsFs()
		}
		fs = afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(base), afero.NewMemMapFs())
	}
	if runner == nil {
		runner = system.NewExecRunner()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}

	pkgs := deps.Packages
	if pkgs == nil {
		pkgs = system.NewAptManager(runner)
	}
	accounts := deps.Accounts
	if accounts == nil {
		accounts = system.NewAccountManager(runner)
	}
	rt := deps.Runtime
	if rt == nil {
		rt = system.NewVenvManager(runner)
	}
	sup := deps.Supervisor
	if sup == nil {
		sup = system.NewSystemd(runner)
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: probeTimeout}
	}

	return &Provisioner{
		cfg:        cfg,
		fs:         fs,
		run:        runner,
		pkgs:       pkgs,
		accounts:   accounts,
		runtime:    rt,
		supervisor: sup,
		httpClient: httpClient,
		logger:     logger,
		skipProbe:  deps.SkipProbe,
		dryRun:     deps.DryRun,
	}
}

// Run executes the full stage sequence. The returned Summary is valid only
// when err is nil; on error, partial state remains on the host by design.
func (p *Provisioner) Run(ctx context.Context) (*Summary, error) {
	if !p.dryRun {
		lock, err := acquireLock(p.cfg.ServiceName)
		if err != nil {
			return nil, err
		}
		defer lock.Release()
	}

	p.summary = &Summary{Port: p.cfg.Port}

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"packages", p.ensurePackages},
		{"account", p.ensureAccount},
		{"runtime", p.ensureRuntime},
		{"env-file", p.ensureEnvFile},
		{"permissions", p.fixPermissions},
		{"unit", p.installUnit},
		{"logrotate", p.installLogrotate},
		{"activate", p.activate},
		{"hook", p.runPostProvisionHook},
		{"probe", p.probeHealth},
	}

	for _, stage := range stages {
		p.logger.Info("stage", "name", stage.name)
		if err := stage.fn(ctx); err != nil {
			return nil, err
		}
	}

	return p.summary, nil
}

// --- stages ---

func (p *Provisioner) ensurePackages(ctx context.Context) error {
	if !p.pkgs.IsAvailable() {
		return ErrAptUnavailable
	}
	if err := p.pkgs.Update(ctx); err != nil {
		return issue.NewErrorContext().
			WithOperation("refresh package index").
			WithSuggestion("Check network connectivity to the package mirrors").
			Wrap(err).
			BuildError()
	}
	if err := p.pkgs.Install(ctx, p.cfg.Packages...); err != nil {
		return issue.NewErrorContext().
			WithOperation("install packages").
			WithResource(fmt.Sprintf("%v", p.cfg.Packages)).
			WithSuggestion("Check network connectivity to the package mirrors").
			WithSuggestion("Run 'apt-get update' manually and inspect its output").
			Wrap(err).
			BuildError()
	}
	return nil
}

func (p *Provisioner) ensureAccount(ctx context.Context) error {
	group := p.cfg.Group()
	user := p.cfg.User()

	if p.accounts.GroupExists(ctx, group) {
		p.logger.Debug("group exists", "group", group)
	} else if err := p.accounts.CreateGroup(ctx, group); err != nil {
		return issue.NewErrorContext().
			WithOperation("create service group").
			WithResource(group).
			Wrap(err).
			BuildError()
	}

	if p.accounts.UserExists(ctx, user) {
		p.logger.Debug("user exists", "user", user)
		p.checkAccountDrift(ctx, user, group)
	} else if err := p.accounts.CreateUser(ctx, user, group, p.cfg.AppDir); err != nil {
		return issue.NewErrorContext().
			WithOperation("create service account").
			WithResource(user).
			Wrap(err).
			BuildError()
	}

	return nil
}

// checkAccountDrift reports (but never corrects) a pre-existing account
// whose shell or primary group differs from what hostprep would create.
func (p *Provisioner) checkAccountDrift(ctx context.Context, user, group string) {
	info, err := p.accounts.UserInfo(ctx, user)
	if err != nil {
		p.logger.Warn("could not inspect existing account", "user", user, "error", err)
		return
	}

	if info.Shell != system.NologinShell {
		w := fmt.Sprintf("account %s has login shell %s (expected %s); left unchanged", user, info.Shell, system.NologinShell)
		p.logger.Warn(w)
		p.summary.AccountWarnings = append(p.summary.AccountWarnings, w)
	}

	gid, err := p.accounts.GroupGID(ctx, group)
	if err == nil && gid != info.GID {
		w := fmt.Sprintf("account %s has primary gid %s, not group %s (gid %s); left unchanged", user, info.GID, group, gid)
		p.logger.Warn(w)
		p.summary.AccountWarnings = append(p.summary.AccountWarnings, w)
	}
}

func (p *Provisioner) ensureRuntime(ctx context.Context) error {
	if !p.runtime.PythonAvailable(p.cfg.PythonBin) {
		return fmt.Errorf("%w: %s", ErrPythonUnavailable, p.cfg.PythonBin)
	}

	venv := p.cfg.VenvDir()
	exists, err := afero.DirExists(p.fs, venv)
	if err != nil {
		return issue.WrapWithOperation(err, "inspect runtime environment")
	}
	if !exists {
		if err := p.runtime.Create(ctx, p.cfg.PythonBin, venv); err != nil {
			return issue.NewErrorContext().
				WithOperation("create runtime environment").
				WithResource(venv).
				WithSuggestion("Ensure the python3-venv package is installed").
				Wrap(err).
				BuildError()
		}
	}

	pip := p.cfg.PipBin()
	if err := p.runtime.UpgradeTooling(ctx, pip); err != nil {
		return issue.WrapWithOperation(err, "upgrade pip tooling")
	}

	manifest := p.cfg.RequirementsPath()
	hasManifest, err := afero.Exists(p.fs, manifest)
	if err != nil {
		return issue.WrapWithOperation(err, "inspect dependency manifest")
	}
	if hasManifest {
		// Manifest contents are authoritative; the fallback set is not mixed in.
		if err := p.runtime.InstallRequirements(ctx, pip, manifest); err != nil {
			return issue.NewErrorContext().
				WithOperation("install dependencies").
				WithResource(manifest).
				WithSuggestion("Check the manifest for unresolvable pins").
				Wrap(err).
				BuildError()
		}
	} else {
		p.logger.Debug("no dependency manifest, installing fallback set", "packages", p.cfg.FallbackDeps)
		if err := p.runtime.InstallPackages(ctx, pip, p.cfg.FallbackDeps...); err != nil {
			return issue.WrapWithOperation(err, "install fallback dependencies")
		}
	}

	p.addArtifact(venv, "isolated runtime environment")
	return nil
}

func (p *Provisioner) ensureEnvFile(ctx context.Context) error {
	path := p.cfg.EnvFilePath()

	exists, err := afero.Exists(p.fs, path)
	if err != nil {
		return issue.WrapWithOperation(err, "inspect environment file")
	}

	if !exists {
		content := envfile.Render(
			p.cfg.ServiceName, p.cfg.Env, p.cfg.AppModule,
			p.cfg.Port, p.cfg.Workers, p.cfg.TimeoutSecs, p.cfg.GracefulTimeoutSecs,
		)
		if err := afero.WriteFile(p.fs, path, []byte(content), 0o640); err != nil {
			return issue.NewErrorContext().
				WithOperation("write environment file").
				WithResource(path).
				Wrap(err).
				BuildError()
		}
		p.summary.EnvFileCreated = true
	}

	// Ownership and mode are reasserted every run, created or not.
	if err := p.fs.Chmod(path, 0o640); err != nil {
		return issue.WrapWithOperation(err, "set environment file mode")
	}
	if err := p.run.Run(ctx, "chown", "root:"+p.cfg.Group(), path); err != nil {
		return issue.WrapWithOperation(err, "set environment file ownership")
	}

	// Parse the effective values so operator edits (PORT in particular)
	// drive the rest of the run.
	content, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return issue.WrapWithOperation(err, "read environment file")
	}
	env, err := envfile.Parse(content, path)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("parse environment file").
			WithResource(path).
			WithSuggestion("Fix the malformed line; the service would fail to start with it").
			Wrap(err).
			BuildError()
	}
	p.effectiveEnv = env
	p.summary.Port = envfile.Int(env, "PORT", p.cfg.Port)

	p.addArtifact(path, "service environment (root:"+p.cfg.Group()+" 0640, preserved on re-runs)")
	return nil
}

func (p *Provisioner) fixPermissions(ctx context.Context) error {
	owner := p.cfg.User() + ":" + p.cfg.Group()

	logDir := p.cfg.LogDir()
	if err := p.fs.MkdirAll(logDir, 0o755); err != nil {
		return issue.WrapWithOperation(err, "create log directory")
	}
	// Mode goes through the runner, not the fs layer: the dry-run overlay
	// cannot chmod a directory that only exists beneath it.
	if err := p.run.Run(ctx, "chmod", "0755", logDir); err != nil {
		return issue.WrapWithOperation(err, "set log directory mode")
	}
	for _, logFile := range []string{p.cfg.AccessLogPath(), p.cfg.ErrorLogPath()} {
		exists, err := afero.Exists(p.fs, logFile)
		if err != nil {
			return issue.WrapWithOperation(err, "inspect log file")
		}
		if !exists {
			if err := afero.WriteFile(p.fs, logFile, nil, 0o644); err != nil {
				return issue.WrapWithOperation(err, "pre-create log file")
			}
		}
	}

	// Ownership is always reasserted, never checked first.
	for _, dir := range []string{p.cfg.AppDir, p.cfg.VenvDir(), logDir} {
		if err := p.run.Run(ctx, "chown", "-R", owner, dir); err != nil {
			return issue.NewErrorContext().
				WithOperation("set ownership").
				WithResource(dir).
				Wrap(err).
				BuildError()
		}
	}

	p.addArtifact(logDir, "log directory (owned by "+owner+")")
	return nil
}

func (p *Provisioner) installUnit(context.Context) error {
	content, err := RenderUnit(p.cfg)
	if err != nil {
		return issue.WrapWithOperation(err, "render unit file")
	}

	path := p.cfg.UnitPath()
	// Overwritten on every run so template changes always land.
	if err := afero.WriteFile(p.fs, path, []byte(content), 0o644); err != nil {
		return issue.NewErrorContext().
			WithOperation("write unit file").
			WithResource(path).
			Wrap(err).
			BuildError()
	}

	p.addArtifact(path, "systemd unit (overwritten each run)")
	return nil
}

func (p *Provisioner) installLogrotate(context.Context) error {
	path := p.cfg.LogrotatePath()
	// Overwritten on every run; operator customization belongs in the env
	// file, not here.
	if err := afero.WriteFile(p.fs, path, []byte(RenderLogrotate(p.cfg)), 0o644); err != nil {
		return issue.NewErrorContext().
			WithOperation("write logrotate policy").
			WithResource(path).
			Wrap(err).
			BuildError()
	}

	p.addArtifact(path, "logrotate policy (daily, 14 kept, copytruncate)")
	return nil
}

func (p *Provisioner) activate(ctx context.Context) error {
	if !p.supervisor.IsAvailable() {
		return ErrSystemdUnavailable
	}

	unit := p.cfg.ServiceName

	// Reload before restart so the restart picks up the freshly rendered unit.
	if err := p.supervisor.DaemonReload(ctx); err != nil {
		return issue.WrapWithOperation(err, "reload systemd units")
	}
	if err := p.supervisor.Enable(ctx, unit); err != nil {
		return issue.WrapWithOperation(err, "enable service")
	}
	if err := p.supervisor.Restart(ctx, unit); err != nil {
		return issue.NewErrorContext().
			WithOperation("restart service").
			WithResource(unit).
			WithSuggestion("Inspect logs with: journalctl -u " + unit + " -n 50").
			Wrap(err).
			BuildError()
	}

	// Status is operator visibility only; a failed query never aborts.
	status, err := p.supervisor.Status(ctx, unit)
	if err != nil {
		p.logger.Warn("status query failed", "unit", unit, "error", err)
	}
	p.summary.StatusOutput = status

	return nil
}

func (p *Provisioner) runPostProvisionHook(ctx context.Context) error {
	script := p.cfg.Hooks.PostProvision
	if script == "" {
		return nil
	}
	if p.dryRun {
		p.logger.Info("would run post-provision hook")
		return nil
	}

	p.logger.Info("running post-provision hook")
	if err := hooks.Run(ctx, script, hooks.Options{
		Dir: p.cfg.AppDir,
		Env: p.effectiveEnv,
	}); err != nil {
		return issue.NewErrorContext().
			WithOperation("run post-provision hook").
			WithSuggestion("Fix the hook script in your config, or remove it").
			Wrap(err).
			BuildError()
	}
	return nil
}

func (p *Provisioner) probeHealth(ctx context.Context) error {
	if p.skipProbe || p.dryRun {
		return nil
	}

	// Purely advisory: any failure is recorded, never returned.
	p.summary.ProbeDone = true
	url := p.cfg.HealthURL(p.summary.Port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.summary.ProbeErr = err
		return nil
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("health probe failed", "url", url, "error", err)
		p.summary.ProbeErr = err
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("health endpoint returned %s", resp.Status)
		p.logger.Warn("health probe failed", "url", url, "error", err)
		p.summary.ProbeErr = err
		return nil
	}

	p.logger.Info("health probe ok", "url", url)
	return nil
}

func (p *Provisioner) addArtifact(path, note string) {
	p.summary.Artifacts = append(p.summary.Artifacts, Artifact{Path: path, Note: note})
}

// probeTimeout bounds the advisory health check.
const probeTimeout = 2 * time.Second
