// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fedhost/internal/config"
	"fedhost/internal/diagnose"
	"fedhost/internal/issue"
)

func newProbeCommand(app *App, f *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe [remote...]",
		Short: "Probe the entries of configured remotes",
		Long: `Probe sends a HEAD request to the entry of every configured remote, or of
the named ones, and reports availability and response time. It exits
with status 2 when any entry is unavailable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, inspector, err := app.inspector(cmd, f)
			if err != nil {
				return err
			}
			targets, err := probeTargets(cfg, args)
			if err != nil {
				return app.fail(cmd, f, err, "select remotes", strings.Join(args, ", "))
			}
			if len(targets) == 0 {
				fmt.Fprintln(app.stdout, WarningStyle.Render("No remotes configured."))
				return nil
			}

			results := inspector.ProbeAll(cmd.Context(), targets)
			if asJSON {
				if err := app.printJSON(results); err != nil {
					return app.fail(cmd, f, err, "encode probe results", "")
				}
			} else {
				fmt.Fprint(app.stdout, renderProbeResults(results))
			}

			var down []string
			for _, r := range results {
				if !r.Available {
					down = append(down, r.Name)
				}
			}
			if len(down) > 0 {
				err := issue.NewErrorContext().
					WithOperation("probe remotes").
					WithResource(strings.Join(down, ", ")).
					WithIssue(issue.RemoteUnreachableId).
					Wrap(errors.New("entry unavailable")).
					BuildError()
				return unhealthy(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the results as JSON")
	return cmd
}

// probeTargets returns the entries of the named remotes, or of every remote
// when names is empty.
func probeTargets(cfg *config.Config, names []string) ([]diagnose.Target, error) {
	if len(names) == 0 {
		targets := make([]diagnose.Target, 0, len(cfg.Remotes))
		for _, r := range cfg.Remotes {
			targets = append(targets, diagnose.Target{Name: r.Name, URL: r.Entry})
		}
		return targets, nil
	}
	targets := make([]diagnose.Target, 0, len(names))
	for _, name := range names {
		r, err := cfg.Remote(name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, diagnose.Target{Name: r.Name, URL: r.Entry})
	}
	return targets, nil
}

func renderProbeResults(results []diagnose.ProbeResult) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Remote probe") + "\n\n")
	for _, r := range results {
		status := SuccessStyle.Render("up")
		detail := r.ResponseTime.Round(1e6).String()
		if !r.Available {
			status = ErrorStyle.Render("down")
			detail = r.Error
		}
		fmt.Fprintf(&b, "  %s %s %s %s\n",
			statusColumn.Render(status),
			nameColumnStyle.Render(KeyStyle.Render(r.Name)),
			SubtitleStyle.Render(r.URL),
			detail,
		)
	}
	return b.String()
}
