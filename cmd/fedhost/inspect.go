// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"fedhost/internal/config"
	"fedhost/internal/diagnose"
	"fedhost/internal/logging"
)

func newInspectCommand(app *App, f *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <url>",
		Short: "Analyze a remote entry script",
		Long: `Inspect fetches an entry script and reports whether it looks like a module
container: the container name it publishes, the modules it exposes and
whether it defines init and get. The analysis is heuristic and advisory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, inspector, err := app.inspector(cmd, f)
			if err != nil {
				return err
			}
			report := inspector.InspectEntry(cmd.Context(), args[0])

			if asJSON {
				if err := app.printJSON(report); err != nil {
					return app.fail(cmd, f, err, "encode report", args[0])
				}
			} else if err := app.printMarkdown(report.Render, f.style); err != nil {
				return app.fail(cmd, f, err, "render report", args[0])
			}

			if !report.Reachable {
				return unhealthy(cmd, fmt.Errorf("entry %s is not reachable", args[0]))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

// inspector loads the configuration and builds an Inspector with its HTTP
// timeout and logger.
func (a *App) inspector(cmd *cobra.Command, f *rootFlags) (*config.Config, *diagnose.Inspector, error) {
	cfg, err := a.loadConfig(cmd.Context(), f)
	if err != nil {
		return nil, nil, a.fail(cmd, f, err, "load configuration", f.configPath)
	}
	l, err := a.logger(cfg)
	if err != nil {
		return nil, nil, a.fail(cmd, f, err, "configure logging", cfg.Log.Level)
	}
	return cfg, diagnose.NewInspector(a.client(cfg), diagnose.WithLogger(logging.Component(l, "diagnose"))), nil
}

func (a *App) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, string(data))
	return nil
}

func (a *App) printMarkdown(render func(string) (string, error), style string) error {
	out, err := render(style)
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, out)
	return nil
}

// unhealthy returns the exit error of a diagnostic command whose report has
// already been printed.
func unhealthy(cmd *cobra.Command, err error) error {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: ExitUnhealthy, Err: err}
}
