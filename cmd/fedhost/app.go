// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"fedhost/internal/config"
	"fedhost/internal/fetch"
	"fedhost/internal/host"
	"fedhost/internal/logging"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: every Cobra handler receives an App and reaches configuration,
	// hosts and HTTP through it.
	App struct {
		Config     ConfigProvider
		NewHost    HostFactory
		HTTPClient *http.Client
		stdout     io.Writer
		stderr     io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config     ConfigProvider
		NewHost    HostFactory
		HTTPClient *http.Client
		Stdout     io.Writer
		Stderr     io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// HostFactory builds the host a command resolves remotes with.
	HostFactory func(ctx context.Context, cfg *config.Config, opts ...host.Option) (*host.Host, error)

	// rootFlags holds the persistent flags shared by every command.
	rootFlags struct {
		configPath string
		logLevel   string
		logFormat  string
		verbose    bool
		style      string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.NewHost == nil {
		deps.NewHost = host.New
	}
	return &App{
		Config:     deps.Config,
		NewHost:    deps.NewHost,
		HTTPClient: deps.HTTPClient,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
	}
}

// loadConfig loads the configuration selected by the persistent flags and
// applies the log flag overrides.
func (a *App) loadConfig(ctx context.Context, f *rootFlags) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: f.configPath, BaseDir: "."})
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.verbose && f.logLevel == "" {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// logger builds the stderr logger for cfg.
func (a *App) logger(cfg *config.Config) (*log.Logger, error) {
	return logging.New(a.stderr, cfg.Log.Level, logging.Format(cfg.Log.Format))
}

// client returns the fetch client used by the diagnostic commands.
func (a *App) client(cfg *config.Config) *fetch.Client {
	if a.HTTPClient != nil {
		return fetch.NewClientFrom(a.HTTPClient)
	}
	return fetch.NewClient(cfg.Loader.HTTPTimeout)
}

// hostOptions returns the options every host built by the CLI shares.
func (a *App) hostOptions(l *log.Logger) []host.Option {
	opts := []host.Option{host.WithLogger(l)}
	if a.HTTPClient != nil {
		opts = append(opts, host.WithHTTPClient(a.HTTPClient))
	}
	return opts
}
