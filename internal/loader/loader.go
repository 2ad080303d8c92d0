// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fedhost/internal/chunk"
	"fedhost/internal/container"
	"fedhost/internal/fetch"
	"fedhost/internal/logging"
	"fedhost/internal/sharedscope"
)

const tracerName = "fedhost/internal/loader"

type (
	// Loader resolves remotes and keeps the exports it produced.
	Loader struct {
		registry  *container.Registry
		fetchers  map[fetch.Strategy]fetch.Fetcher
		strategy  fetch.Strategy
		scopes    *sharedscope.Holder
		chain     *chunk.Chain
		doc       *fetch.Document
		fallbacks []string
		timeout   time.Duration
		logger    *log.Logger
		tracer    trace.Tracer

		mu      sync.Mutex
		loading map[string]struct{}
		loaded  map[string]*record
	}

	// Info describes a loaded remote.
	Info struct {
		Descriptor Descriptor
		Method     fetch.Strategy
		Container  string
		LoadedAt   time.Time
	}

	// LoadResult is the outcome of one Load attempt.
	LoadResult struct {
		Success bool
		Export  any
		Method  string
		Error   string
		Err     error
	}

	record struct {
		info   Info
		export any
	}
)

// New creates a Loader discovering containers through registry.
func New(registry *container.Registry, opts ...Option) *Loader {
	l := &Loader{
		registry: registry,
		fetchers: make(map[fetch.Strategy]fetch.Fetcher),
		strategy: fetch.StrategyScriptTag,
		scopes:   sharedscope.NewHolder(),
		timeout:  container.DefaultTimeout,
		logger:   logging.Discard(),
		tracer:   otel.Tracer(tracerName),
		loading:  make(map[string]struct{}),
		loaded:   make(map[string]*record),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Scope returns the shared scope containers are initialized with.
func (l *Loader) Scope() *sharedscope.Scope {
	return l.scopes.Ensure()
}

// Resolve returns the export of d, fetching and initializing the remote when
// it has not loaded yet.
func (l *Loader) Resolve(ctx context.Context, d Descriptor, opts ...ResolveOption) (any, error) {
	if d.IsZero() {
		return nil, &ResolveError{Phase: PhaseIdle, Err: ErrInvalidDescriptor}
	}
	ro := resolveOptions{strategy: l.strategy}
	for _, opt := range opts {
		opt(&ro)
	}

	l.mu.Lock()
	if _, busy := l.loading[d.name]; busy {
		l.mu.Unlock()
		return nil, &ResolveError{Name: d.name, Phase: PhaseIdle, Err: ErrAlreadyLoading}
	}
	if rec, ok := l.loaded[d.name]; ok {
		l.mu.Unlock()
		l.logger.Warn("remote already loaded, returning cached export", "name", d.name)
		return rec.export, nil
	}
	l.loading[d.name] = struct{}{}
	l.mu.Unlock()

	ctx, span := l.tracer.Start(ctx, "loader.Resolve", trace.WithAttributes(
		attribute.String("remote.name", d.name),
		attribute.String("remote.entry", d.entryURL),
		attribute.String("remote.exposed_path", d.exposedPath),
		attribute.String("fetch.strategy", ro.strategy.String()),
	))
	defer span.End()

	start := time.Now()
	rec, err := l.attemptWithRewrite(ctx, d, ro)

	l.mu.Lock()
	delete(l.loading, d.name)
	if err == nil {
		l.loaded[d.name] = rec
	}
	l.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Error("resolve failed", "name", d.name, "phase", PhaseOf(err), "err", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("container.name", rec.info.Container))
	l.logger.Info("remote resolved", "name", d.name, "container", rec.info.Container, "method", ro.strategy, "took", time.Since(start).Round(time.Millisecond))
	return rec.export, nil
}

// Load is Resolve reporting its outcome as a LoadResult.
func (l *Loader) Load(ctx context.Context, d Descriptor, opts ...ResolveOption) LoadResult {
	ro := resolveOptions{strategy: l.strategy}
	for _, opt := range opts {
		opt(&ro)
	}
	export, err := l.Resolve(ctx, d, opts...)
	if err != nil {
		return LoadResult{Method: ro.strategy.String(), Error: err.Error(), Err: err}
	}
	return LoadResult{Success: true, Export: export, Method: ro.strategy.String()}
}

func (l *Loader) attemptWithRewrite(ctx context.Context, d Descriptor, ro resolveOptions) (*record, error) {
	if l.chain == nil || ro.predicate == nil || ro.transform == nil {
		return l.attempt(ctx, d, ro)
	}
	return chunk.WithRewrite(ctx, l.chain, ro.predicate, ro.transform, func(ctx context.Context) (*record, error) {
		return l.attempt(ctx, d, ro)
	})
}

func (l *Loader) attempt(ctx context.Context, d Descriptor, ro resolveOptions) (*record, error) {
	span := trace.SpanFromContext(ctx)
	fail := func(p Phase, err error) (*record, error) {
		return nil, &ResolveError{Name: d.name, Phase: p, Err: err}
	}

	span.AddEvent(PhaseFetching.String())
	fetcher, ok := l.fetchers[ro.strategy]
	if !ok {
		return fail(PhaseFetching, fmt.Errorf("%w: %s", ErrNoFetcher, ro.strategy))
	}
	l.logger.Debug("fetching entry", "name", d.name, "url", d.entryURL, "strategy", ro.strategy)
	if err := fetcher.Fetch(ctx, d.entryURL); err != nil {
		return fail(PhaseFetching, err)
	}

	span.AddEvent(PhaseContainerDiscovery.String())
	candidates := d.candidateNames(l.fallbacks)
	c, found, err := l.registry.Find(ctx, candidates, l.timeout)
	if err != nil {
		return fail(PhaseContainerDiscovery, err)
	}

	span.AddEvent(PhaseInitializing.String())
	ran, err := l.registry.EnsureInitialized(ctx, c, l.scopes.Ensure())
	if err != nil {
		return fail(PhaseInitializing, err)
	}
	if !ran {
		l.logger.Debug("container already initialized", "name", d.name, "container", found)
	}

	span.AddEvent(PhaseExtracting.String())
	factory, err := container.SafeGet(ctx, c, d.exposedPath)
	if err != nil {
		return fail(PhaseExtracting, err)
	}
	if factory == nil {
		return fail(PhaseExtracting, fmt.Errorf("%w: get(%q) returned nil", ErrInvalidFactory, d.exposedPath))
	}
	module, err := container.SafeCall(ctx, factory)
	if err != nil {
		return fail(PhaseExtracting, err)
	}
	export, err := Extract(module, d.exposedPath)
	if err != nil {
		return fail(PhaseExtracting, err)
	}

	return &record{
		info: Info{
			Descriptor: d,
			Method:     ro.strategy,
			Container:  found,
			LoadedAt:   time.Now(),
		},
		export: export,
	}, nil
}

// IsLoaded reports whether name resolved successfully.
func (l *Loader) IsLoaded(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loaded[name]
	return ok
}

// IsLoading reports whether a Resolve for name is in progress.
func (l *Loader) IsLoading(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loading[name]
	return ok
}

// Loaded returns the names of loaded remotes, sorted.
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.loaded))
	for name := range l.loaded {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Export returns the cached export of name.
func (l *Loader) Export(name string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.loaded[name]
	if !ok {
		return nil, false
	}
	return rec.export, true
}

// Info returns what is known about a loaded remote.
func (l *Loader) Info(name string) (Info, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.loaded[name]
	if !ok {
		return Info{}, false
	}
	return rec.info, true
}
