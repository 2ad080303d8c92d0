// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"fedhost/internal/chunk"
	"fedhost/internal/container"
	"fedhost/internal/fetch"
	"fedhost/internal/logging"
	"fedhost/internal/sharedscope"
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrDuplicateRemote is returned when two remotes share a name.
	ErrDuplicateRemote = errors.New("duplicate remote name")
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid URL")
	// ErrUnknownRemote is returned by Config.Remote for unconfigured names.
	ErrUnknownRemote = errors.New("remote not configured")
)

type (
	// InvalidConfigError collects field-level validation errors. It wraps
	// ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Host    HostConfig     `json:"host" mapstructure:"host" toml:"host"`
		Loader  LoaderConfig   `json:"loader" mapstructure:"loader" toml:"loader"`
		Remotes []RemoteConfig `json:"remotes" mapstructure:"remotes" toml:"remotes"`
		Shared  []SharedConfig `json:"shared" mapstructure:"shared" toml:"shared"`
		Log     LogConfig      `json:"log" mapstructure:"log" toml:"log"`

		// Source is the file the configuration was read from, empty for defaults.
		Source string `json:"-" mapstructure:"-" toml:"-"`
	}

	// HostConfig describes the page that hosts remotes.
	HostConfig struct {
		// BaseURL resolves relative chunk URLs requested by remotes.
		BaseURL string `json:"base_url" mapstructure:"base_url" toml:"base_url"`
	}

	// LoaderConfig tunes the resolver.
	LoaderConfig struct {
		// Strategy is the default fetch strategy ("script_tag" or "fetch_eval").
		Strategy string `json:"strategy" mapstructure:"strategy" toml:"strategy"`
		// DiscoveryTimeout bounds the wait for a container to be published.
		DiscoveryTimeout time.Duration `json:"discovery_timeout" mapstructure:"discovery_timeout" toml:"-"`
		// PollInterval is the discovery polling period.
		PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval" toml:"-"`
		// HTTPTimeout bounds a single HTTP request.
		HTTPTimeout time.Duration `json:"http_timeout" mapstructure:"http_timeout" toml:"-"`
		// FallbackCandidates are tried after a remote's own candidate names.
		FallbackCandidates []string `json:"fallback_candidates" mapstructure:"fallback_candidates" toml:"fallback_candidates"`
	}

	// RemoteConfig declares one remote.
	RemoteConfig struct {
		Name       string          `json:"name" mapstructure:"name" toml:"name"`
		Entry      string          `json:"entry" mapstructure:"entry" toml:"entry"`
		Expose     string          `json:"expose" mapstructure:"expose" toml:"expose"`
		Candidates []string        `json:"candidates,omitempty" mapstructure:"candidates" toml:"candidates,omitempty"`
		Strategy   string          `json:"strategy,omitempty" mapstructure:"strategy" toml:"strategy,omitempty"`
		Rewrite    []RewriteConfig `json:"rewrite,omitempty" mapstructure:"rewrite" toml:"rewrite,omitempty"`
	}

	// RewriteConfig relocates the chunks a remote requests.
	RewriteConfig struct {
		Match    []string `json:"match,omitempty" mapstructure:"match" toml:"match,omitempty"`
		Origin   string   `json:"origin" mapstructure:"origin" toml:"origin"`
		BasePath string   `json:"base_path,omitempty" mapstructure:"base_path" toml:"base_path,omitempty"`
		ChunkDir string   `json:"chunk_dir,omitempty" mapstructure:"chunk_dir" toml:"chunk_dir,omitempty"`
	}

	// SharedConfig declares a library the host provides to remotes.
	SharedConfig struct {
		Name            string `json:"name" mapstructure:"name" toml:"name"`
		Version         string `json:"version" mapstructure:"version" toml:"version"`
		Singleton       bool   `json:"singleton,omitempty" mapstructure:"singleton" toml:"singleton,omitempty"`
		StrictVersion   bool   `json:"strict_version,omitempty" mapstructure:"strict_version" toml:"strict_version,omitempty"`
		RequiredVersion string `json:"required_version,omitempty" mapstructure:"required_version" toml:"required_version,omitempty"`
		Eager           bool   `json:"eager,omitempty" mapstructure:"eager" toml:"eager,omitempty"`
		// Source is the URL of a script that defines a global named after the
		// share. Empty shares resolve to a table describing the library.
		Source string `json:"source,omitempty" mapstructure:"source" toml:"source,omitempty"`
	}

	// LogConfig selects the log level and format.
	LogConfig struct {
		Level  string `json:"level" mapstructure:"level" toml:"level"`
		Format string `json:"format" mapstructure:"format" toml:"format"`
	}
)

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Host: HostConfig{BaseURL: fetch.DefaultBaseURL},
		Loader: LoaderConfig{
			Strategy:         string(fetch.StrategyScriptTag),
			DiscoveryTimeout: container.DefaultTimeout,
			PollInterval:     container.DefaultPollInterval,
			HTTPTimeout:      fetch.DefaultTimeout,
		},
		Log: LogConfig{Level: "info", Format: string(logging.FormatText)},
	}
}

// Validate checks the constraints CUE cannot express: unique remote names,
// absolute URLs after expansion, positive durations and valid versions.
func (c *Config) Validate() error {
	var errs []error

	if err := absoluteURL("host.base_url", c.Host.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if _, err := fetch.ParseStrategy(c.Loader.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("loader.strategy: %w", err))
	}
	for key, d := range map[string]time.Duration{
		"loader.discovery_timeout": c.Loader.DiscoveryTimeout,
		"loader.poll_interval":     c.Loader.PollInterval,
		"loader.http_timeout":      c.Loader.HTTPTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %s", key, d))
		}
	}
	if c.Loader.PollInterval > c.Loader.DiscoveryTimeout && c.Loader.DiscoveryTimeout > 0 {
		errs = append(errs, fmt.Errorf("loader.poll_interval: %s exceeds discovery_timeout %s", c.Loader.PollInterval, c.Loader.DiscoveryTimeout))
	}
	if err := logging.Format(c.Log.Format).Validate(); err != nil && c.Log.Format != "" {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}

	seen := make(map[string]int)
	for i, r := range c.Remotes {
		field := fmt.Sprintf("remotes[%d]", i)
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name: must not be empty", field))
		} else if first, dup := seen[r.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: %w %q (same as remotes[%d])", field, ErrDuplicateRemote, r.Name, first))
		} else {
			seen[r.Name] = i
		}
		if err := absoluteURL(field+".entry", r.Entry); err != nil {
			errs = append(errs, err)
		}
		if strings.TrimSpace(r.Expose) == "" {
			errs = append(errs, fmt.Errorf("%s.expose: must not be empty", field))
		}
		if r.Strategy != "" {
			if _, err := fetch.ParseStrategy(r.Strategy); err != nil {
				errs = append(errs, fmt.Errorf("%s.strategy: %w", field, err))
			}
		}
		for j, rw := range r.Rewrite {
			if err := absoluteURL(fmt.Sprintf("%s.rewrite[%d].origin", field, j), rw.Origin); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for i, s := range c.Shared {
		field := fmt.Sprintf("shared[%d]", i)
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name: must not be empty", field))
		}
		if _, err := sharedscope.Satisfies(s.Version, s.RequiredVersion); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
		if s.Source != "" {
			if err := absoluteURL(field+".source", s.Source); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Remote returns the remote named name.
func (c *Config) Remote(name string) (RemoteConfig, error) {
	for _, r := range c.Remotes {
		if r.Name == name {
			return r, nil
		}
	}
	return RemoteConfig{}, fmt.Errorf("%w: %q", ErrUnknownRemote, name)
}

// RemoteNames lists the configured remotes in file order.
func (c *Config) RemoteNames() []string {
	out := make([]string, len(c.Remotes))
	for i, r := range c.Remotes {
		out[i] = r.Name
	}
	return out
}

// Rules converts the remote's rewrite entries into chunk rules.
func (r RemoteConfig) Rules() []chunk.Rule {
	if len(r.Rewrite) == 0 {
		return nil
	}
	out := make([]chunk.Rule, len(r.Rewrite))
	for i, rw := range r.Rewrite {
		out[i] = chunk.Rule{Match: rw.Match, Origin: rw.Origin, BasePath: rw.BasePath, ChunkDir: rw.ChunkDir}
	}
	return out
}

// Share converts the declaration into a shared scope entry without a value.
func (s SharedConfig) Share() sharedscope.Share {
	return sharedscope.Share{
		Name:            s.Name,
		Version:         s.Version,
		From:            "host",
		Singleton:       s.Singleton,
		StrictVersion:   s.StrictVersion,
		RequiredVersion: s.RequiredVersion,
		Eager:           s.Eager,
	}
}

func absoluteURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: %w: %q must be an absolute http(s) URL", field, ErrInvalidURL, raw)
	}
	return nil
}
