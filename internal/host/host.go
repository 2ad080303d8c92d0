// SPDX-License-Identifier: MPL-2.0

package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"

	"fedhost/internal/chunk"
	"fedhost/internal/config"
	"fedhost/internal/container"
	"fedhost/internal/fetch"
	"fedhost/internal/loader"
	"fedhost/internal/logging"
	"fedhost/internal/runtime"
	"fedhost/internal/sharedscope"
)

// MethodSmart is the LoadResult method reported when every SmartLoad attempt failed.
const MethodSmart = "smart"

type (
	// Host wires the runtime, fetchers, registry and loader for one configuration.
	Host struct {
		cfg       *config.Config
		logger    *log.Logger
		env       *runtime.Env
		client    *fetch.Client
		doc       *fetch.Document
		chain     *chunk.Chain
		namespace *container.Namespace
		registry  *container.Registry
		loader    *loader.Loader
		evaluator fetch.Fetcher
	}

	// Option configures New.
	Option func(*options)

	options struct {
		logger     *log.Logger
		httpClient *http.Client
		tracer     trace.TracerProvider
	}
)

// WithLogger sets the logger shared by every component.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTracerProvider sets the provider resolve spans are recorded with.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// New builds a Host from cfg. Eager shared libraries are materialized before
// it returns.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Host, error) {
	o := options{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Host{cfg: cfg, logger: o.logger, doc: fetch.NewDocument(), namespace: container.NewNamespace()}
	if o.httpClient != nil {
		h.client = fetch.NewClientFrom(o.httpClient)
	} else {
		h.client = fetch.NewClient(cfg.Loader.HTTPTimeout)
	}

	h.env = runtime.New(runtime.WithLogger(o.logger))
	base, err := fetch.NewChunkLoader(h.client, h.env, h.doc, cfg.Host.BaseURL, fetch.WithLogger(o.logger))
	if err != nil {
		_ = h.env.Close()
		return nil, err
	}
	h.chain = chunk.NewChain(base, chunk.WithChainLogger(o.logger))
	h.env.SetChunkLoader(h.chain)

	h.registry = container.NewRegistry(
		container.Chain(h.env, h.namespace),
		container.WithPollInterval(cfg.Loader.PollInterval),
		container.WithLogger(o.logger),
	)

	strategy, err := fetch.ParseStrategy(cfg.Loader.Strategy)
	if err != nil {
		_ = h.env.Close()
		return nil, err
	}
	h.evaluator = fetch.NewFetchEval(h.client, h.env, h.doc, fetch.WithLogger(o.logger))

	scope, err := h.buildScope(cfg.Shared)
	if err != nil {
		_ = h.env.Close()
		return nil, err
	}
	holder := sharedscope.NewHolder(sharedscope.WithLogger(o.logger))
	holder.Adopt(scope)

	lopts := []loader.Option{
		loader.WithFetcher(fetch.StrategyScriptTag, fetch.NewScriptTag(h.client, h.env, h.doc, fetch.WithLogger(o.logger))),
		loader.WithFetcher(fetch.StrategyFetchEval, h.evaluator),
		loader.WithDefaultStrategy(strategy),
		loader.WithScopeHolder(holder),
		loader.WithChunkChain(h.chain),
		loader.WithDocument(h.doc),
		loader.WithFallbackCandidates(cfg.Loader.FallbackCandidates...),
		loader.WithDiscoveryTimeout(cfg.Loader.DiscoveryTimeout),
		loader.WithLogger(o.logger),
	}
	if o.tracer != nil {
		lopts = append(lopts, loader.WithTracerProvider(o.tracer))
	}
	h.loader = loader.New(h.registry, lopts...)

	if err := scope.Materialize(ctx); err != nil {
		_ = h.env.Close()
		return nil, fmt.Errorf("materialize eager shares: %w", err)
	}
	return h, nil
}

// buildScope registers the configured shared libraries. A share with a
// source evaluates that script on first use and takes the global named after
// the share; other shares resolve to a table describing the library.
func (h *Host) buildScope(shared []config.SharedConfig) (*sharedscope.Scope, error) {
	scope := sharedscope.New(sharedscope.DefaultName, sharedscope.WithLogger(h.logger))
	for _, sc := range shared {
		share := sc.Share()
		if sc.Source == "" {
			share.Value = map[string]any{"name": sc.Name, "version": sc.Version, "from": share.From}
		} else {
			share.Factory = h.sourceFactory(sc.Name, sc.Source)
		}
		if _, err := scope.Provide(share); err != nil {
			return nil, fmt.Errorf("shared %s@%s: %w", sc.Name, sc.Version, err)
		}
	}
	return scope, nil
}

func (h *Host) sourceFactory(name, source string) sharedscope.Factory {
	return func(ctx context.Context) (any, error) {
		if err := h.evaluator.Fetch(ctx, source); err != nil {
			return nil, err
		}
		v, err := h.env.Global(ctx, name)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, fmt.Errorf("%s did not define global %q", source, name)
		}
		return v, nil
	}
}

// Descriptor returns the descriptor and resolve options of the configured remote name.
func (h *Host) Descriptor(name string) (loader.Descriptor, []loader.ResolveOption, error) {
	rc, err := h.cfg.Remote(name)
	if err != nil {
		return loader.Descriptor{}, nil, err
	}
	d, err := loader.NewDescriptor(rc.Name, rc.Entry, rc.Expose, rc.Candidates...)
	if err != nil {
		return loader.Descriptor{}, nil, err
	}
	var opts []loader.ResolveOption
	if rc.Strategy != "" {
		s, err := fetch.ParseStrategy(rc.Strategy)
		if err != nil {
			return loader.Descriptor{}, nil, err
		}
		opts = append(opts, loader.WithStrategy(s))
	}
	if rules := rc.Rules(); len(rules) > 0 {
		opts = append(opts, loader.WithRules(rules...))
	}
	return d, opts, nil
}

// Resolve resolves the configured remote name. Extra options are applied
// after the configured ones.
func (h *Host) Resolve(ctx context.Context, name string, extra ...loader.ResolveOption) (any, error) {
	d, opts, err := h.Descriptor(name)
	if err != nil {
		return nil, err
	}
	return h.loader.Resolve(ctx, d, append(opts, extra...)...)
}

// Load is Resolve reporting a LoadResult.
func (h *Host) Load(ctx context.Context, name string, extra ...loader.ResolveOption) loader.LoadResult {
	d, opts, err := h.Descriptor(name)
	if err != nil {
		return loader.LoadResult{Method: h.cfg.Loader.Strategy, Error: err.Error(), Err: err}
	}
	return h.loader.Load(ctx, d, append(opts, extra...)...)
}

// SmartLoad tries script_tag first and falls back to fetch_eval when the
// entry could not be fetched or its container was not found. When both fail
// the result method is MethodSmart and Err joins both failures.
func (h *Host) SmartLoad(ctx context.Context, name string) loader.LoadResult {
	first := h.Load(ctx, name, loader.WithStrategy(fetch.StrategyScriptTag))
	if first.Success || !retryable(first.Err) {
		return first
	}
	h.logger.Warn("script_tag load failed, retrying with fetch_eval", "name", name, "err", first.Err)

	if d, _, err := h.Descriptor(name); err == nil {
		// The entry may have executed without publishing; run it again.
		h.doc.Remove(d.EntryURL())
	}
	second := h.Load(ctx, name, loader.WithStrategy(fetch.StrategyFetchEval))
	if second.Success {
		return second
	}

	err := errors.Join(
		fmt.Errorf("%s: %w", fetch.StrategyScriptTag, first.Err),
		fmt.Errorf("%s: %w", fetch.StrategyFetchEval, second.Err),
	)
	return loader.LoadResult{Method: MethodSmart, Error: err.Error(), Err: err}
}

func retryable(err error) bool {
	return errors.Is(err, loader.ErrFetchFailed) || errors.Is(err, loader.ErrContainerNotFound)
}

// Publish makes a Go-native container discoverable under name.
func (h *Host) Publish(name string, c container.Container) {
	h.namespace.Publish(name, c)
}

// Loader returns the underlying loader.
func (h *Host) Loader() *loader.Loader { return h.loader }

// Env returns the script environment.
func (h *Host) Env() *runtime.Env { return h.env }

// Document returns the record of executed scripts.
func (h *Host) Document() *fetch.Document { return h.doc }

// Client returns the HTTP client used for every fetch.
func (h *Host) Client() *fetch.Client { return h.client }

// Chain returns the chunk loader chain.
func (h *Host) Chain() *chunk.Chain { return h.chain }

// Config returns the configuration the host was built from.
func (h *Host) Config() *config.Config { return h.cfg }

// Close unloads every remote and closes the script environment.
func (h *Host) Close(ctx context.Context) error {
	return errors.Join(h.loader.Cleanup(ctx), h.env.Close())
}
