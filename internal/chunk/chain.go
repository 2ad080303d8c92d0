// SPDX-License-Identifier: MPL-2.0

package chunk

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"fedhost/internal/logging"
)

type (
	// Loader loads one secondary asset.
	Loader interface {
		LoadChunk(ctx context.Context, url string) error
	}

	// LoaderFunc adapts a function into a Loader.
	LoaderFunc func(ctx context.Context, url string) error

	// Interceptor sits in front of the next loader in the chain. It may
	// change the URL, short-circuit, or pass the request on unchanged.
	Interceptor interface {
		Intercept(ctx context.Context, url string, next Loader) error
	}

	// InterceptorFunc adapts a function into an Interceptor.
	InterceptorFunc func(ctx context.Context, url string, next Loader) error

	// Chain is a Loader that runs installed interceptors, in install order,
	// in front of a base loader.
	Chain struct {
		base   Loader
		logger *log.Logger

		mu    sync.Mutex
		slots []*slot
	}

	// ChainOption configures a Chain.
	ChainOption func(*Chain)

	slot struct {
		ic Interceptor
	}

	step struct {
		ic   Interceptor
		next Loader
	}
)

// LoadChunk calls f.
func (f LoaderFunc) LoadChunk(ctx context.Context, url string) error {
	return f(ctx, url)
}

// Intercept calls f.
func (f InterceptorFunc) Intercept(ctx context.Context, url string, next Loader) error {
	return f(ctx, url, next)
}

// WithChainLogger sets the logger that traces every chunk request.
func WithChainLogger(l *log.Logger) ChainOption {
	return func(c *Chain) {
		c.logger = logging.Component(l, "chunk")
	}
}

// NewChain creates a chain in front of base.
func NewChain(base Loader, opts ...ChainOption) *Chain {
	c := &Chain{base: base, logger: logging.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Install adds ic to the end of the chain. The returned release removes
// exactly this installation; calling it more than once is a no-op.
func (c *Chain) Install(ic Interceptor) (release func()) {
	s := &slot{ic: ic}
	c.mu.Lock()
	c.slots = append(c.slots, s)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.slots = slices.DeleteFunc(c.slots, func(other *slot) bool { return other == s })
		})
	}
}

// Len returns the number of installed interceptors.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// LoadChunk runs url through the interceptors installed at call time and
// hands the result to the base loader.
func (c *Chain) LoadChunk(ctx context.Context, url string) error {
	c.mu.Lock()
	snapshot := slices.Clone(c.slots)
	c.mu.Unlock()

	c.logger.Debug("chunk requested", "url", url, "interceptors", len(snapshot))

	var next Loader = c.base
	for i := len(snapshot) - 1; i >= 0; i-- {
		next = step{ic: snapshot[i].ic, next: next}
	}
	return next.LoadChunk(ctx, url)
}

func (s step) LoadChunk(ctx context.Context, url string) error {
	return s.ic.Intercept(ctx, url, s.next)
}
