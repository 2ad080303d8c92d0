// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fedhost/internal/config"
	"fedhost/internal/container"
	"fedhost/internal/fetch"
	"fedhost/internal/issue"
	"fedhost/internal/loader"
	"fedhost/internal/sharedscope"
)

// classifyError maps a failure onto the issue catalog and attaches the
// suggestions shown under the error message.
func classifyError(err error, operation, resource string) *issue.ActionableError {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	ctx := issue.NewErrorContext().WithOperation(operation).WithResource(resource).Wrap(err)
	var fetchErr *fetch.FetchFailedError
	switch {
	case errors.Is(err, config.ErrUnknownRemote):
		ctx.WithIssue(issue.RemoteNotConfiguredId).
			WithSuggestion("run 'fedhost config show' to list the configured remotes")
	case errors.Is(err, fetch.ErrExecution):
		ctx.WithIssue(issue.ScriptExecutionFailedId).
			WithSuggestion("run 'fedhost inspect' on the entry URL to check its content")
	case errors.As(err, &fetchErr):
		ctx.WithIssue(issue.FetchFailedId)
		if fetchErr.Status != 0 {
			ctx.WithSuggestion(fmt.Sprintf("the server answered HTTP %d for %s", fetchErr.Status, fetchErr.URL))
		}
		ctx.WithSuggestion("run 'fedhost check' against the remote base URL")
	case errors.Is(err, container.ErrContainerNotFound):
		ctx.WithIssue(issue.ContainerNotFoundId).
			WithSuggestion("add the name the entry publishes to the remote's candidates").
			WithSuggestion("retry with --smart to fall back to fetch_eval")
	case errors.Is(err, container.ErrModuleNotExposed):
		ctx.WithIssue(issue.ModuleNotExposedId)
	case errors.Is(err, loader.ErrNoExportFound):
		ctx.WithIssue(issue.NoExportFoundId)
	case errors.Is(err, loader.ErrAlreadyLoading):
		ctx.WithIssue(issue.AlreadyLoadingId)
	case errors.Is(err, sharedscope.ErrUnsatisfiedVersion):
		ctx.WithIssue(issue.SharedVersionUnsatisfiedId)
	case loader.PhaseOf(err) == loader.PhaseInitializing:
		ctx.WithIssue(issue.ContainerInitFailedId)
	}
	return ctx.Build()
}

// fail writes err to stderr, styled and with catalog guidance when the
// error is classified, and returns the ExitError the command should return.
func (a *App) fail(cmd *cobra.Command, f *rootFlags, err error, operation, resource string) error {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	ae := classifyError(err, operation, resource)
	out, rerr := ae.Render(f.verbose, f.style)
	if rerr != nil {
		out = ae.Format(f.verbose)
	}
	fmt.Fprintf(a.stderr, "\n%s %s\n", ErrorStyle.Render("Error:"), out)
	return &ExitError{Code: ExitFailure, Err: ae}
}
