// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"hostprep/internal/config"

	"github.com/spf13/cobra"
)

// configCmd is the `hostprep config` command tree.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage hostprep configuration",
	Long: `Manage hostprep configuration.

Configuration is resolved from, in order:
  1. Built-in defaults
  2. /etc/hostprep/config.cue (or the --config file)
  3. ./hostprep.cue in the invocation directory
  4. HOSTPREP_* environment variables`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file search path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				fmt.Println(cfgFile)
				return nil
			}
			fmt.Println(config.SystemConfigDir + "/" + config.ConfigFileName + "." + config.ConfigFileExt)
			fmt.Println("./" + config.AppName + "." + config.ConfigFileExt)
			return nil
		},
	})
}

func showConfig() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	keyStyle := PathStyle
	valueStyle := SuccessStyle

	fmt.Println(TitleStyle.Render("Effective Configuration"))
	fmt.Println()

	if cfgFile != "" {
		fmt.Printf("%s: %s\n", keyStyle.Render("Config file"), cfgFile)
	} else {
		fmt.Printf("%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(defaults + HOSTPREP_* env)"))
	}
	fmt.Println()

	show := func(key, value string) {
		fmt.Printf("%s: %s\n", keyStyle.Render(key), valueStyle.Render(value))
	}

	show("service_name", cfg.ServiceName)
	show("app_dir", cfg.AppDir)
	show("python_bin", cfg.PythonBin)
	show("app_module", cfg.AppModule)
	show("env", cfg.Env)
	show("port", strconv.Itoa(cfg.Port))
	show("workers", strconv.Itoa(cfg.Workers))
	show("timeout", strconv.Itoa(cfg.TimeoutSecs))
	show("graceful_timeout", strconv.Itoa(cfg.GracefulTimeoutSecs))
	show("packages", strings.Join(cfg.Packages, ", "))
	show("fallback_deps", strings.Join(cfg.FallbackDeps, ", "))
	if cfg.Hooks.PostProvision != "" {
		show("hooks.post_provision", cfg.Hooks.PostProvision)
	}

	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Derived paths:"))
	show("unit", cfg.UnitPath())
	show("env file", cfg.EnvFilePath())
	show("logrotate", cfg.LogrotatePath())
	show("venv", cfg.VenvDir())
	show("logs", cfg.LogDir())

	if !cfg.AppUnderHome() {
		fmt.Fprintln(os.Stderr, SubtitleStyle.Render("note: app_dir outside /home keeps ProtectHome=read-only in the unit"))
	}
	return nil
}
