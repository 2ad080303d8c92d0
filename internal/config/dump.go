// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// FormatCUE renders the configuration in the native file format.
	FormatCUE DumpFormat = "cue"
	// FormatTOML renders the configuration as TOML.
	FormatTOML DumpFormat = "toml"
)

// ErrInvalidDumpFormat is returned for unknown dump formats.
var ErrInvalidDumpFormat = errors.New("invalid dump format")

type (
	// DumpFormat selects the output of Dump.
	DumpFormat string

	tomlConfig struct {
		Host    HostConfig     `toml:"host"`
		Loader  tomlLoader     `toml:"loader"`
		Remotes []RemoteConfig `toml:"remotes,omitempty"`
		Shared  []SharedConfig `toml:"shared,omitempty"`
		Log     LogConfig      `toml:"log"`
	}

	tomlLoader struct {
		Strategy           string   `toml:"strategy"`
		DiscoveryTimeout   string   `toml:"discovery_timeout"`
		PollInterval       string   `toml:"poll_interval"`
		HTTPTimeout        string   `toml:"http_timeout"`
		FallbackCandidates []string `toml:"fallback_candidates"`
	}
)

// Dump renders cfg in the requested format.
func Dump(cfg *Config, format DumpFormat) (string, error) {
	switch format {
	case FormatCUE, "":
		return GenerateCUE(cfg), nil
	case FormatTOML:
		return GenerateTOML(cfg)
	default:
		return "", fmt.Errorf("%w: %q (valid: cue, toml)", ErrInvalidDumpFormat, string(format))
	}
}

// GenerateTOML renders cfg as TOML with durations as strings.
func GenerateTOML(cfg *Config) (string, error) {
	view := tomlConfig{
		Host: cfg.Host,
		Loader: tomlLoader{
			Strategy:           cfg.Loader.Strategy,
			DiscoveryTimeout:   cfg.Loader.DiscoveryTimeout.String(),
			PollInterval:       cfg.Loader.PollInterval.String(),
			HTTPTimeout:        cfg.Loader.HTTPTimeout.String(),
			FallbackCandidates: cfg.Loader.FallbackCandidates,
		},
		Remotes: cfg.Remotes,
		Shared:  cfg.Shared,
		Log:     cfg.Log,
	}
	if view.Loader.FallbackCandidates == nil {
		view.Loader.FallbackCandidates = []string{}
	}
	out, err := toml.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("marshal toml: %w", err)
	}
	return string(out), nil
}

// GenerateCUE generates a CUE representation of the configuration that
// validates against the embedded schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// fedhost configuration\n\n")

	sb.WriteString("host: {\n")
	fmt.Fprintf(&sb, "\tbase_url: %q\n", cfg.Host.BaseURL)
	sb.WriteString("}\n")

	sb.WriteString("\nloader: {\n")
	fmt.Fprintf(&sb, "\tstrategy: %q\n", cfg.Loader.Strategy)
	fmt.Fprintf(&sb, "\tdiscovery_timeout: %q\n", cfg.Loader.DiscoveryTimeout.String())
	fmt.Fprintf(&sb, "\tpoll_interval: %q\n", cfg.Loader.PollInterval.String())
	fmt.Fprintf(&sb, "\thttp_timeout: %q\n", cfg.Loader.HTTPTimeout.String())
	if len(cfg.Loader.FallbackCandidates) > 0 {
		fmt.Fprintf(&sb, "\tfallback_candidates: %s\n", cueList(cfg.Loader.FallbackCandidates))
	}
	sb.WriteString("}\n")

	if len(cfg.Remotes) > 0 {
		sb.WriteString("\nremotes: [\n")
		for _, r := range cfg.Remotes {
			sb.WriteString("\t{\n")
			fmt.Fprintf(&sb, "\t\tname: %q\n", r.Name)
			fmt.Fprintf(&sb, "\t\tentry: %q\n", r.Entry)
			fmt.Fprintf(&sb, "\t\texpose: %q\n", r.Expose)
			if len(r.Candidates) > 0 {
				fmt.Fprintf(&sb, "\t\tcandidates: %s\n", cueList(r.Candidates))
			}
			if r.Strategy != "" {
				fmt.Fprintf(&sb, "\t\tstrategy: %q\n", r.Strategy)
			}
			if len(r.Rewrite) > 0 {
				sb.WriteString("\t\trewrite: [\n")
				for _, rw := range r.Rewrite {
					fmt.Fprintf(&sb, "\t\t\t{origin: %q", rw.Origin)
					if len(rw.Match) > 0 {
						fmt.Fprintf(&sb, ", match: %s", cueList(rw.Match))
					}
					if rw.BasePath != "" {
						fmt.Fprintf(&sb, ", base_path: %q", rw.BasePath)
					}
					if rw.ChunkDir != "" {
						fmt.Fprintf(&sb, ", chunk_dir: %q", rw.ChunkDir)
					}
					sb.WriteString("},\n")
				}
				sb.WriteString("\t\t]\n")
			}
			sb.WriteString("\t},\n")
		}
		sb.WriteString("]\n")
	}

	if len(cfg.Shared) > 0 {
		sb.WriteString("\nshared: [\n")
		for _, s := range cfg.Shared {
			fmt.Fprintf(&sb, "\t{name: %q, version: %q", s.Name, s.Version)
			if s.Singleton {
				sb.WriteString(", singleton: true")
			}
			if s.StrictVersion {
				sb.WriteString(", strict_version: true")
			}
			if s.RequiredVersion != "" {
				fmt.Fprintf(&sb, ", required_version: %q", s.RequiredVersion)
			}
			if s.Eager {
				sb.WriteString(", eager: true")
			}
			if s.Source != "" {
				fmt.Fprintf(&sb, ", source: %q", s.Source)
			}
			sb.WriteString("},\n")
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Log.Format)
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
