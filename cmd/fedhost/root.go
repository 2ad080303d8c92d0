// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

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
)

// NewRootCommand builds the fedhost command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "fedhost",
		Short: "Resolve and diagnose remotely hosted modules",
		Long: TitleStyle.Render("fedhost") + SubtitleStyle.Render(" - Resolve and diagnose remotely hosted modules") + `

fedhost fetches the entry script of a remote, discovers the container it
publishes, initializes it with the shared scope and resolves an exposed
module. Remotes, shared libraries and chunk rewrite rules are declared in
a CUE configuration file.

` + SubtitleStyle.Render("Examples:") + `
  fedhost resolve workflow              Resolve the 'workflow' remote
  fedhost resolve workflow --smart      Fall back to fetch_eval on failure
  fedhost inspect http://host/remoteEntry.lua
  fedhost check http://localhost:3001/  Check that a remote is served
  fedhost probe                         Probe every configured remote
  fedhost config show                   Show current configuration`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/fedhost/config.cue)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	pf.StringVar(&f.logFormat, "log-format", "", "log format: text, json or logfmt (overrides config)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&f.style, "style", "auto", "glamour style for rendered guidance (auto, dark, light, notty)")

	root.AddCommand(
		newResolveCommand(app, f),
		newInspectCommand(app, f),
		newCheckCommand(app, f),
		newProbeCommand(app, f),
		newConfigCommand(app, f),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the command's exit code.
// This is called by main.main().
func Execute() {
	root := NewRootCommand(NewApp(Dependencies{}))
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitFailure)
	}
}
