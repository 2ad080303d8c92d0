// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"

	"fedhost/internal/chunk"
	"fedhost/internal/fetch"
	"fedhost/internal/logging"
	"fedhost/internal/sharedscope"
)

type (
	// Option configures a Loader.
	Option func(*Loader)

	// ResolveOption configures a single Resolve call.
	ResolveOption func(*resolveOptions)

	resolveOptions struct {
		strategy  fetch.Strategy
		predicate chunk.Predicate
		transform chunk.Transform
	}
)

// WithFetcher registers the fetcher used for strategy.
func WithFetcher(strategy fetch.Strategy, f fetch.Fetcher) Option {
	return func(l *Loader) {
		l.fetchers[strategy] = f
	}
}

// WithDefaultStrategy sets the strategy used when Resolve is not given one.
func WithDefaultStrategy(s fetch.Strategy) Option {
	return func(l *Loader) {
		if s != "" {
			l.strategy = s
		}
	}
}

// WithScopeHolder sets the holder of the shared scope passed to init.
func WithScopeHolder(h *sharedscope.Holder) Option {
	return func(l *Loader) {
		if h != nil {
			l.scopes = h
		}
	}
}

// WithChunkChain sets the chain chunk rewrites are installed on.
func WithChunkChain(c *chunk.Chain) Option {
	return func(l *Loader) {
		l.chain = c
	}
}

// WithDocument sets the document Reload clears entries from.
func WithDocument(d *fetch.Document) Option {
	return func(l *Loader) {
		l.doc = d
	}
}

// WithFallbackCandidates sets container names tried after a remote's own.
func WithFallbackCandidates(names ...string) Option {
	return func(l *Loader) {
		l.fallbacks = append([]string(nil), names...)
	}
}

// WithDiscoveryTimeout bounds container discovery.
func WithDiscoveryTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLogger sets the loader logger.
func WithLogger(lg *log.Logger) Option {
	return func(l *Loader) {
		l.logger = logging.Component(lg, "loader")
	}
}

// WithTracerProvider sets the provider resolve spans are created with.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Loader) {
		if tp != nil {
			l.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithStrategy selects the fetch strategy for one Resolve call.
func WithStrategy(s fetch.Strategy) ResolveOption {
	return func(o *resolveOptions) {
		if s != "" {
			o.strategy = s
		}
	}
}

// WithChunkRewrite installs a chunk rewrite for the duration of one Resolve
// call. It has no effect when the loader has no chunk chain.
//
// The rewrite sits on the host-wide chunk chain, so chunks requested by
// other remotes resolving at the same time also pass through it while the
// call runs. Keep pred narrow enough that it only selects this remote's
// chunks.
func WithChunkRewrite(pred chunk.Predicate, transform chunk.Transform) ResolveOption {
	return func(o *resolveOptions) {
		o.predicate = pred
		o.transform = transform
	}
}

// WithRules installs every rule for the duration of one Resolve call. The
// rules are host-wide while installed; see WithChunkRewrite.
func WithRules(rules ...chunk.Rule) ResolveOption {
	if len(rules) == 0 {
		return func(*resolveOptions) {}
	}
	return WithChunkRewrite(
		func(u string) bool {
			for _, r := range rules {
				if r.Matches(u) {
					return true
				}
			}
			return false
		},
		func(u string) string {
			for _, r := range rules {
				if r.Matches(u) {
					return r.Rewrite(u)
				}
			}
			return u
		},
	)
}
