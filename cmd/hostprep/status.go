// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"hostprep/internal/envfile"
	"hostprep/internal/issue"
	"hostprep/internal/system"

	"github.com/spf13/cobra"
)

// statusProbeTimeout bounds the health check issued by `hostprep status`.
const statusProbeTimeout = 2 * time.Second

// statusCmd reports the service's systemd state and health endpoint
// response. It never changes anything, so it needs no root.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service state and health",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		runner := system.NewExecRunner()
		systemd := system.NewSystemd(runner)
		if !systemd.IsAvailable() {
			renderIssue(issue.SystemdNotFoundId)
			return &ExitError{Code: 1}
		}

		ctx := cmd.Context()
		unit := cfg.ServiceName

		active := systemd.IsActive(ctx, unit)
		if active {
			fmt.Println(SuccessStyle.Render("● "+unit) + " is active")
		} else {
			fmt.Println(ErrorStyle.Render("● "+unit) + " is not active")
		}

		if out, err := systemd.Status(ctx, unit); err == nil && out != "" {
			fmt.Println(VerboseStyle.Render(strings.TrimRight(out, "\n")))
		}

		// The installed env file is authoritative for the port; the config
		// default only applies when no file exists yet.
		port := cfg.Port
		if content, err := os.ReadFile(cfg.EnvFilePath()); err == nil {
			if env, err := envfile.Parse(content, cfg.EnvFilePath()); err == nil {
				port = envfile.Int(env, "PORT", cfg.Port)
			}
		}

		url := cfg.HealthURL(port)
		client := &http.Client{Timeout: statusProbeTimeout}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			fmt.Println(WarningStyle.Render("Health check failed: ") + err.Error())
			return &ExitError{Code: 1}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Println(WarningStyle.Render("Health check failed: ") + resp.Status)
			return &ExitError{Code: 1}
		}
		fmt.Println(SuccessStyle.Render("Health check passed ") + SubtitleStyle.Render("("+url+")"))

		if !active {
			return &ExitError{Code: 1}
		}
		return nil
	},
}
