// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCommand(app *App, f *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check <base-url>",
		Short: "Check that a remote application and its entry are served",
		Long: `Check requests the entry and the index page of a remote, reports whether
the index page loads the entry and, when the entry is served, analyzes it
and lists likely fixes.

The argument may be the remote's root URL or the entry URL itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, inspector, err := app.inspector(cmd, f)
			if err != nil {
				return err
			}
			d := inspector.Diagnose(cmd.Context(), args[0])

			if asJSON {
				if err := app.printJSON(d); err != nil {
					return app.fail(cmd, f, err, "encode diagnosis", args[0])
				}
			} else if err := app.printMarkdown(d.Render, f.style); err != nil {
				return app.fail(cmd, f, err, "render diagnosis", args[0])
			}

			if !d.Status.EntryOK {
				return unhealthy(cmd, fmt.Errorf("entry %s is not served", d.Status.EntryURL))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the diagnosis as JSON")
	return cmd
}
