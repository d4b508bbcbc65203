// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"hostprep/internal/envfile"
	"hostprep/internal/provision"

	"github.com/spf13/cobra"
)

// renderCmd prints provisioning artifacts without installing them, so an
// operator can review (or diff against the installed copy) before a run.
var renderCmd = &cobra.Command{
	Use:       "render <unit|logrotate|env>",
	Short:     "Print a provisioning artifact to stdout without installing it",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"unit", "logrotate", "env"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		switch args[0] {
		case "unit":
			unit, err := provision.RenderUnit(cfg)
			if err != nil {
				return err
			}
			fmt.Print(unit)
		case "logrotate":
			fmt.Print(provision.RenderLogrotate(cfg))
		case "env":
			fmt.Print(envfile.Render(
				cfg.ServiceName, cfg.Env, cfg.AppModule,
				cfg.Port, cfg.Workers, cfg.TimeoutSecs, cfg.GracefulTimeoutSecs,
			))
		default:
			return fmt.Errorf("unknown artifact %q (want unit, logrotate, or env)", args[0])
		}
		return nil
	},
}
