// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for hostprep.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"hostprep/internal/config"
	"hostprep/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command. Running it without a subcommand
	// provisions the host, so `hostprep` alone does the whole job.
	rootCmd = &cobra.Command{
		Use:   "hostprep",
		Short: "Provision a host to run a Python web application as a systemd service",
		Long: TitleStyle.Render("hostprep") + SubtitleStyle.Render(" - single-host web app provisioner") + `

hostprep takes a bare Ubuntu/Debian host and makes it run a Python
ASGI application under systemd: OS packages, a locked-down service
account, an isolated virtualenv, an environment file, the unit, and
log rotation. Every step is idempotent, so re-running after a config
change or a partial failure is always safe.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Put your application (with requirements.txt) in /home/ubuntu/app
  2. Run: sudo hostprep
  3. Check: curl http://127.0.0.1:8000/healthz

` + SubtitleStyle.Render("Examples:") + `
  hostprep                  Provision with built-in defaults
  hostprep --dry-run        Show what would change, touch nothing
  hostprep render unit      Print the systemd unit that would be installed
  hostprep status           Show service state and health
  hostprep config show      Show the effective configuration`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/hostprep/config.cue)")

	addProvisionFlags(rootCmd)

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// fang.Execute provides styled help/errors; version goes through
	// fang.WithVersion since fang overrides rootCmd.Version.
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration, honoring --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		rendered, renderErr := issue.Get(issue.ConfigLoadFailedId).Render("dark")
		if renderErr == nil {
			fmt.Fprint(os.Stderr, rendered)
		}
		return nil, err
	}
	return cfg, nil
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
