// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"hostprep/internal/issue"
	"hostprep/internal/provision"
	"hostprep/internal/system"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// dryRun logs intended actions without touching the host.
	dryRun bool
	// skipProbe disables the final health check.
	skipProbe bool

	provisionCmd = &cobra.Command{
		Use:   "provision",
		Short: "Provision the host (same as running hostprep with no subcommand)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd)
		},
	}
)

func init() {
	addProvisionFlags(provisionCmd)
}

// addProvisionFlags registers the provisioning flags. The root command runs
// provisioning by default, so it carries the same flags as the subcommand.
func addProvisionFlags(c *cobra.Command) {
	c.Flags().BoolVar(&dryRun, "dry-run", false, "log intended actions without changing the host")
	c.Flags().BoolVar(&skipProbe, "skip-probe", false, "skip the final health check")
}

// sentinelIssues maps known provisioning failures to their issue cards.
var sentinelIssues = []struct {
	err error
	id  issue.Id
}{
	{provision.ErrAptUnavailable, issue.AptNotFoundId},
	{provision.ErrSystemdUnavailable, issue.SystemdNotFoundId},
	{provision.ErrPythonUnavailable, issue.PythonNotFoundId},
	{provision.ErrLockHeld, issue.LockHeldId},
}

func runProvision(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Everything past this point shells out to system tools that demand
	// root. A dry run only records what it would do, so it may run as
	// anyone.
	if !dryRun && !system.IsRoot() {
		renderIssue(issue.RootRequiredId)
		return &ExitError{Code: 1, Err: errors.New("root privileges required; re-run with sudo")}
	}

	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "provision",
		Level:  level,
	})

	p := provision.New(cfg, provision.Deps{
		Logger:    logger,
		SkipProbe: skipProbe,
		DryRun:    dryRun,
	})

	summary, err := p.Run(cmd.Context())
	if err != nil {
		for _, s := range sentinelIssues {
			if errors.Is(err, s.err) {
				renderIssue(s.id)
				break
			}
		}
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}

	printSummary(summary)
	return nil
}

// renderIssue prints the markdown card for a known issue to stderr.
// Rendering failures are swallowed; the plain error still follows.
func renderIssue(id issue.Id) {
	rendered, err := issue.Get(id).Render("dark")
	if err != nil {
		return
	}
	fmt.Fprint(os.Stderr, rendered)
}

func printSummary(s *provision.Summary) {
	fmt.Println()
	if dryRun {
		fmt.Println(TitleStyle.Render("Dry run complete") + SubtitleStyle.Render(" (no changes were made)"))
	} else {
		fmt.Println(TitleStyle.Render("Provisioning complete"))
	}
	fmt.Println()

	for _, a := range s.Artifacts {
		fmt.Printf("  %s %s %s\n",
			SuccessStyle.Render("✓"),
			PathStyle.Render(a.Path),
			SubtitleStyle.Render(a.Note))
	}
	fmt.Println()

	if s.EnvFileCreated {
		fmt.Println(SubtitleStyle.Render("A fresh environment file was generated; edit it and re-run to apply changes."))
	} else {
		fmt.Println(SubtitleStyle.Render("Existing environment file preserved."))
	}
	fmt.Printf("%s %d\n", SubtitleStyle.Render("Service port:"), s.Port)

	if len(s.AccountWarnings) > 0 {
		for _, w := range s.AccountWarnings {
			fmt.Println(WarningStyle.Render("Warning: ") + w)
		}
		renderIssue(issue.AccountDriftId)
	}

	if s.ProbeDone {
		if s.ProbeErr == nil {
			fmt.Println(SuccessStyle.Render("Health check passed."))
		} else {
			fmt.Println(WarningStyle.Render("Health check failed: ") + s.ProbeErr.Error())
			fmt.Println(SubtitleStyle.Render("The service may still be starting; check again with: hostprep status"))
		}
	}

	if verbose && s.StatusOutput != "" {
		fmt.Println()
		fmt.Println(VerboseStyle.Render(strings.TrimRight(s.StatusOutput, "\n")))
	}
}
