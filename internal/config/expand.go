// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"

	"mvdan.cc/sh/v3/shell"
)

// Expand substitutes ${VAR} and ${VAR:-default} references in the URL fields
// of cfg using getenv, or os.Getenv when getenv is nil.
func Expand(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	expand := func(field string, s *string) error {
		if *s == "" {
			return nil
		}
		out, err := shell.Expand(*s, getenv)
		if err != nil {
			return fmt.Errorf("%s: expand %q: %w", field, *s, err)
		}
		*s = out
		return nil
	}

	if err := expand("host.base_url", &cfg.Host.BaseURL); err != nil {
		return err
	}
	for i := range cfg.Remotes {
		r := &cfg.Remotes[i]
		if err := expand(fmt.Sprintf("remotes[%d].entry", i), &r.Entry); err != nil {
			return err
		}
		for j := range r.Rewrite {
			if err := expand(fmt.Sprintf("remotes[%d].rewrite[%d].origin", i, j), &r.Rewrite[j].Origin); err != nil {
				return err
			}
		}
	}
	for i := range cfg.Shared {
		if err := expand(fmt.Sprintf("shared[%d].source", i), &cfg.Shared[i].Source); err != nil {
			return err
		}
	}
	return nil
}
