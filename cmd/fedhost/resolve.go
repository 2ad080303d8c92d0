// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fedhost/internal/fetch"
	"fedhost/internal/loader"
	"fedhost/internal/runtime"
	"fedhost/internal/telemetry"
)

type (
	resolveFlags struct {
		strategy string
		smart    bool
		timeout  time.Duration
	}

	// resolveOutput is the JSON document printed by resolve.
	resolveOutput struct {
		Remote    string `json:"remote"`
		Method    string `json:"method"`
		Container string `json:"container,omitempty"`
		Export    any    `json:"export"`
	}
)

func newResolveCommand(app *App, f *rootFlags) *cobra.Command {
	rf := &resolveFlags{}
	cmd := &cobra.Command{
		Use:   "resolve <remote>",
		Short: "Resolve a configured remote and print its export",
		Long: `Resolve fetches the entry of a configured remote, initializes its container
with the shared scope and prints the exposed module as JSON.

Lua functions in the export are printed as descriptions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runResolve(cmd, f, rf, args[0])
		},
	}
	cmd.Flags().StringVar(&rf.strategy, "strategy", "", "fetch strategy: "+strings.Join(strategyNames(), " or ")+" (overrides config)")
	cmd.Flags().BoolVar(&rf.smart, "smart", false, "try script_tag and fall back to fetch_eval when the entry or container is missing")
	cmd.Flags().DurationVar(&rf.timeout, "timeout", 0, "overall time limit for the resolve (0 for none)")
	cmd.MarkFlagsMutuallyExclusive("strategy", "smart")
	return cmd
}

func (a *App) runResolve(cmd *cobra.Command, f *rootFlags, rf *resolveFlags, name string) error {
	ctx := cmd.Context()
	cfg, err := a.loadConfig(ctx, f)
	if err != nil {
		return a.fail(cmd, f, err, "load configuration", f.configPath)
	}
	l, err := a.logger(cfg)
	if err != nil {
		return a.fail(cmd, f, err, "configure logging", cfg.Log.Level)
	}

	var extra []loader.ResolveOption
	if rf.strategy != "" {
		s, err := fetch.ParseStrategy(rf.strategy)
		if err != nil {
			return a.fail(cmd, f, err, "parse strategy", rf.strategy)
		}
		extra = append(extra, loader.WithStrategy(s))
	}

	shutdown, err := telemetry.Setup(ctx, "fedhost", Version)
	if err != nil {
		l.Warn("tracing disabled", "err", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			l.Warn("flush traces", "err", err)
		}
	}()

	if rf.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rf.timeout)
		defer cancel()
	}

	h, err := a.NewHost(ctx, cfg, a.hostOptions(l)...)
	if err != nil {
		return a.fail(cmd, f, err, "start host", cfg.Host.BaseURL)
	}
	defer func() {
		if err := h.Close(context.WithoutCancel(ctx)); err != nil {
			l.Warn("close host", "err", err)
		}
	}()

	var res loader.LoadResult
	if rf.smart {
		res = h.SmartLoad(ctx, name)
	} else {
		res = h.Load(ctx, name, extra...)
	}
	if !res.Success {
		return a.fail(cmd, f, res.Err, "resolve remote", name)
	}

	out := resolveOutput{Remote: name, Method: res.Method, Export: printable(res.Export)}
	if info, ok := h.Loader().Info(name); ok {
		out.Container = info.Container
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return a.fail(cmd, f, err, "encode export", name)
	}
	fmt.Fprintln(a.stdout, string(data))
	return nil
}

// printable replaces values JSON cannot encode, such as pinned Lua
// functions, with their descriptions.
func printable(v any) any {
	switch t := v.(type) {
	case *runtime.Ref:
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = printable(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = printable(e)
		}
		return out
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}

func strategyNames() []string {
	var names []string
	for _, s := range fetch.Strategies() {
		names = append(names, string(s))
	}
	return names
}
