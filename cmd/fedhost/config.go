// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"fedhost/internal/config"
)

// newConfigCommand creates the `fedhost config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App, f *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect fedhost configuration",
		Long: `Inspect fedhost configuration.

Configuration is read from the --config file, then from
$XDG_CONFIG_HOME/fedhost/config.cue, then from ./config.cue.
Defaults apply when none exists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), f)
			if err != nil {
				return app.fail(cmd, f, err, "load configuration", f.configPath)
			}
			showConfig(app.stdout, cfg)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return app.fail(cmd, f, err, "locate config directory", "")
			}
			path, err := config.ResolvePath(config.LoadOptions{ConfigFilePath: f.configPath, BaseDir: "."})
			if err != nil {
				return app.fail(cmd, f, err, "locate config file", f.configPath)
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", dir)
			if path == "" {
				fmt.Fprintf(app.stdout, "Config file: %s\n", SubtitleStyle.Render("(using defaults)"))
			} else {
				fmt.Fprintf(app.stdout, "Config file: %s\n", path)
			}
			return nil
		},
	})

	var format string
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE or TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), f)
			if err != nil {
				return app.fail(cmd, f, err, "load configuration", f.configPath)
			}
			out, err := config.Dump(cfg, config.DumpFormat(format))
			if err != nil {
				return app.fail(cmd, f, err, "dump configuration", format)
			}
			fmt.Fprint(app.stdout, out)
			return nil
		},
	}
	dumpCmd.Flags().StringVar(&format, "format", string(config.FormatCUE), "output format: cue or toml")
	cfgCmd.AddCommand(dumpCmd)

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config) {
	valueStyle := SuccessStyle

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if cfg.Source != "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), cfg.Source)
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("host"))
	fmt.Fprintf(w, "  base_url: %s\n", valueStyle.Render(cfg.Host.BaseURL))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("loader"))
	fmt.Fprintf(w, "  strategy: %s\n", valueStyle.Render(cfg.Loader.Strategy))
	fmt.Fprintf(w, "  discovery_timeout: %s\n", valueStyle.Render(cfg.Loader.DiscoveryTimeout.String()))
	fmt.Fprintf(w, "  poll_interval: %s\n", valueStyle.Render(cfg.Loader.PollInterval.String()))
	fmt.Fprintf(w, "  http_timeout: %s\n", valueStyle.Render(cfg.Loader.HTTPTimeout.String()))
	if len(cfg.Loader.FallbackCandidates) > 0 {
		fmt.Fprintf(w, "  fallback_candidates: %s\n", valueStyle.Render(strings.Join(cfg.Loader.FallbackCandidates, ", ")))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("remotes"))
	if len(cfg.Remotes) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, r := range cfg.Remotes {
		fmt.Fprintf(w, "  - %s %s %s\n", valueStyle.Render(r.Name), r.Entry, SubtitleStyle.Render(r.Expose))
		if r.Strategy != "" {
			fmt.Fprintf(w, "    strategy: %s\n", r.Strategy)
		}
		if len(r.Candidates) > 0 {
			fmt.Fprintf(w, "    candidates: %s\n", strings.Join(r.Candidates, ", "))
		}
		for _, rw := range r.Rewrite {
			fmt.Fprintf(w, "    rewrite: %s -> %s%s\n", strings.Join(rw.Match, ", "), rw.Origin, rw.BasePath)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("shared"))
	if len(cfg.Shared) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, s := range cfg.Shared {
		fmt.Fprintf(w, "  - %s@%s", valueStyle.Render(s.Name), s.Version)
		if s.Singleton {
			fmt.Fprint(w, " singleton")
		}
		if s.Eager {
			fmt.Fprint(w, " eager")
		}
		if s.RequiredVersion != "" {
			fmt.Fprintf(w, " requires %s", s.RequiredVersion)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("log"))
	fmt.Fprintf(w, "  level: %s\n", valueStyle.Render(cfg.Log.Level))
	fmt.Fprintf(w, "  format: %s\n", valueStyle.Render(cfg.Log.Format))
}
