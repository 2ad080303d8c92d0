// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Shopify/go-lua"
	"github.com/charmbracelet/log"

	"fedhost/internal/chunk"
	"fedhost/internal/logging"
)

var (
	// ErrClosed is returned by calls into a closed Env.
	ErrClosed = errors.New("script environment closed")
	// ErrScript wraps errors raised by Lua code.
	ErrScript = errors.New("script error")
)

type (
	// Env is a Lua environment shared by every remote loaded into the host.
	Env struct {
		logger *log.Logger
		chunks chunk.Loader

		mu      sync.Mutex
		l       *lua.State
		current context.Context
		closed  bool
		nextRef int
		timers  map[int]*timer
		nextID  int
		tracked []*luaContainer
	}

	// Option configures an Env.
	Option func(*Env)

	timer struct {
		t   *time.Timer
		ref *Ref
	}

	vmKey struct{}
)

// WithLogger sets the logger print and timer failures write to.
func WithLogger(l *log.Logger) Option {
	return func(e *Env) {
		e.logger = logging.Component(l, "runtime")
	}
}

// WithChunkLoader sets the loader behind load_chunk.
func WithChunkLoader(c chunk.Loader) Option {
	return func(e *Env) {
		e.chunks = c
	}
}

// New creates an environment with the standard Lua libraries and the host
// functions loaded.
func New(opts ...Option) *Env {
	e := &Env{
		logger: logging.Discard(),
		l:      lua.NewState(),
		timers: make(map[int]*timer),
	}
	for _, opt := range opts {
		opt(e)
	}
	lua.OpenLibraries(e.l)
	e.registerScopeType()
	e.registerHostFunctions()
	return e
}

// SetChunkLoader replaces the loader behind load_chunk. It exists for hosts
// whose chunk loader itself depends on the Env.
func (e *Env) SetChunkLoader(c chunk.Loader) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chunks = c
}

// Exec runs src as a chunk named name.
func (e *Env) Exec(ctx context.Context, name string, src []byte) error {
	return e.do(ctx, func(_ context.Context, l *lua.State) error {
		if err := lua.LoadBuffer(l, string(src), "@"+name, "t"); err != nil {
			return fmt.Errorf("%w: load %s: %s", ErrScript, name, popError(l, err))
		}
		if err := l.ProtectedCall(0, 0, 0); err != nil {
			return fmt.Errorf("%w: run %s: %s", ErrScript, name, popError(l, err))
		}
		return nil
	})
}

// Global returns the Go form of the named global. Functions and cyclic
// tables in the result are pinned; release them when done.
func (e *Env) Global(ctx context.Context, name string) (any, error) {
	var v any
	err := e.do(ctx, func(_ context.Context, l *lua.State) error {
		l.Global(name)
		v = e.toGo(l, -1)
		return nil
	})
	return v, err
}

// SetGlobal publishes v to Lua under name.
func (e *Env) SetGlobal(ctx context.Context, name string, v any) error {
	return e.do(ctx, func(_ context.Context, l *lua.State) error {
		e.push(l, v, 0)
		l.SetGlobal(name)
		return nil
	})
}

// Close stops pending timers and rejects further calls.
func (e *Env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	for id, t := range e.timers {
		t.t.Stop()
		delete(e.timers, id)
	}
	return nil
}

// PendingTimers returns the number of scheduled set_timeout callbacks.
func (e *Env) PendingTimers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

// do runs fn with exclusive access to the Lua state. Calls made while the
// state is already held by ctx run directly.
func (e *Env) do(ctx context.Context, fn func(ctx context.Context, l *lua.State) error) error {
	if owner, _ := ctx.Value(vmKey{}).(*Env); owner == e {
		return e.run(ctx, fn)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.run(context.WithValue(ctx, vmKey{}, e), fn)
}

func (e *Env) run(ctx context.Context, fn func(ctx context.Context, l *lua.State) error) (err error) {
	prev := e.current
	top := e.l.Top()
	e.current = ctx
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrScript, p)
		}
		e.l.SetTop(top)
		e.current = prev
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, e.l)
}

// ctx returns the context of the call currently holding the state.
func (e *Env) ctx() context.Context {
	if e.current == nil {
		return context.Background()
	}
	return e.current
}

func popError(l *lua.State, err error) string {
	msg := err.Error()
	if s, ok := l.ToString(-1); ok && s != "" {
		msg = s
	}
	l.Pop(1)
	return msg
}
