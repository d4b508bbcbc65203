// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"fmt"
	"strings"
	"text/template"

	"hostprep/internal/config"
)

// unitTemplate is the systemd unit rendered for the service. Rendering uses
// named template fields rather than positional token substitution, so path
// content can never collide with a placeholder. ${PORT} and friends are left
// for systemd to expand from the EnvironmentFile at start time, which is how
// operator edits to the env file take effect without re-provisioning.
var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description={{.ServiceName}} web application
Wants=network-online.target
After=network-online.target

[Service]
Type=simple
User={{.User}}
Group={{.Group}}
WorkingDirectory={{.AppDir}}
EnvironmentFile={{.EnvFile}}
ExecStart={{.Gunicorn}} ${APP_MODULE} \
  --worker-class uvicorn.workers.UvicornWorker \
  --bind 0.0.0.0:${PORT} \
  --workers ${WORKERS} \
  --timeout ${TIMEOUT} \
  --graceful-timeout ${GRACEFUL_TIMEOUT} \
  --access-logfile {{.AccessLog}} \
  --error-logfile {{.ErrorLog}}
Restart=always
RestartSec=3
KillSignal=SIGQUIT
TimeoutStopSec={{.TimeoutStopSecs}}
LimitNOFILE=65536

NoNewPrivileges=yes
PrivateTmp=yes
ProtectSystem=full
ProtectHome={{.ProtectHome}}
ReadWritePaths={{.AppDir}} {{.LogDir}}
ProtectControlGroups=yes
ProtectKernelModules=yes
ProtectKernelTunables=yes
LockPersonality=yes

[Install]
WantedBy=multi-user.target
`))

// unitParams are the named substitution points of the unit template.
type unitParams struct {
	ServiceName     string
	User            string
	Group           string
	AppDir          string
	Gunicorn        string
	EnvFile         string
	AccessLog       string
	ErrorLog        string
	LogDir          string
	ProtectHome     string
	TimeoutStopSecs int
}

// RenderUnit renders the systemd unit for the given configuration.
func RenderUnit(cfg *config.Config) (string, error) {
	// ProtectHome would make an app under /home unreadable to the service.
	protectHome := "read-only"
	if cfg.AppUnderHome() {
		protectHome = "false"
	}

	params := unitParams{
		ServiceName:     cfg.ServiceName,
		User:            cfg.User(),
		Group:           cfg.Group(),
		AppDir:          cfg.AppDir,
		Gunicorn:        cfg.GunicornBin(),
		EnvFile:         cfg.EnvFilePath(),
		AccessLog:       cfg.AccessLogPath(),
		ErrorLog:        cfg.ErrorLogPath(),
		LogDir:          cfg.LogDir(),
		ProtectHome:     protectHome,
		TimeoutStopSecs: cfg.GracefulTimeoutSecs + 5,
	}

	var sb strings.Builder
	if err := unitTemplate.Execute(&sb, params); err != nil {
		return "", fmt.Errorf("render unit template: %w", err)
	}
	return sb.String(), nil
}
