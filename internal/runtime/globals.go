// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shopify/go-lua"

	"fedhost/internal/container"
	"fedhost/internal/sharedscope"
)

type (
	// Foreign describes a global that is not a container.
	Foreign struct {
		Name string
		Type string
	}

	// luaContainer is a Lua table exposing init and get.
	luaContainer struct {
		env  *Env
		name string
		ref  *Ref
	}
)

var _ container.FailingGlobals = (*Env)(nil)

// Err returns ErrClosed once the Env is closed.
func (e *Env) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// Lookup implements container.Globals. A global table with init and get
// functions is returned as a container.Container; the same table always
// yields the same Container value. Other globals are returned as Foreign.
func (e *Env) Lookup(name string) (any, bool) {
	var (
		v  any
		ok bool
	)
	err := e.do(context.Background(), func(_ context.Context, l *lua.State) error {
		l.Global(name)
		if l.IsNil(-1) {
			return nil
		}
		ok = true
		if !isContainerTable(l, -1) {
			v = Foreign{Name: name, Type: lua.TypeNameOf(l, -1)}
			return nil
		}
		v = e.trackContainer(l, name, -1)
		return nil
	})
	if err != nil {
		e.logger.Debug("global lookup failed", "name", name, "err", err)
		return nil, false
	}
	return v, ok
}

func isContainerTable(l *lua.State, index int) bool {
	if !l.IsTable(index) {
		return false
	}
	index = l.AbsIndex(index)
	l.Field(index, "init")
	hasInit := l.IsFunction(-1)
	l.Field(index, "get")
	hasGet := l.IsFunction(-1)
	l.Pop(2)
	return hasInit && hasGet
}

// trackContainer returns the container already pinned for the table at
// index, or pins a new one.
func (e *Env) trackContainer(l *lua.State, name string, index int) *luaContainer {
	index = l.AbsIndex(index)
	for _, c := range e.tracked {
		c.ref.push(l)
		same := l.RawEqual(-1, index)
		l.Pop(1)
		if same {
			return c
		}
	}
	c := &luaContainer{env: e, name: name, ref: e.ref(l, index)}
	e.tracked = append(e.tracked, c)
	return c
}

// Init calls the table's init function with the scope userdata.
func (c *luaContainer) Init(ctx context.Context, scope *sharedscope.Scope) error {
	return c.env.do(ctx, func(_ context.Context, l *lua.State) error {
		c.ref.push(l)
		l.Field(-1, "init")
		if !l.IsFunction(-1) {
			return fmt.Errorf("%w: %s.init is not a function", ErrScript, c.name)
		}
		c.env.pushScope(l, scope)
		if err := l.ProtectedCall(1, 0, 0); err != nil {
			return fmt.Errorf("%w: %s.init: %s", ErrScript, c.name, popError(l, err))
		}
		return nil
	})
}

// Get calls the table's get function and wraps the returned factory. The
// factory stays pinned until its first call; later calls ask get again.
func (c *luaContainer) Get(ctx context.Context, exposedPath string) (container.Factory, error) {
	pinned, err := c.factory(ctx, exposedPath)
	if err != nil {
		return nil, err
	}
	var mu sync.Mutex
	return func(ctx context.Context) (any, error) {
		mu.Lock()
		f := pinned
		pinned = nil
		mu.Unlock()
		if f == nil {
			var err error
			if f, err = c.factory(ctx, exposedPath); err != nil {
				return nil, err
			}
		}
		defer func() {
			if err := f.Release(context.WithoutCancel(ctx)); err != nil {
				c.env.logger.Debug("factory release failed", "container", c.name, "err", err)
			}
		}()
		out, err := f.Call(ctx)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out[0], nil
	}, nil
}

func (c *luaContainer) factory(ctx context.Context, exposedPath string) (*Ref, error) {
	var factory *Ref
	err := c.env.do(ctx, func(_ context.Context, l *lua.State) error {
		c.ref.push(l)
		l.Field(-1, "get")
		l.PushString(exposedPath)
		if err := l.ProtectedCall(1, 1, 0); err != nil {
			return fmt.Errorf("%w: %s.get(%q): %s", ErrScript, c.name, exposedPath, popError(l, err))
		}
		switch l.TypeOf(-1) {
		case lua.TypeNil:
			return &container.ModuleNotExposedError{Path: exposedPath}
		case lua.TypeFunction:
			factory = c.env.ref(l, -1)
			return nil
		default:
			return fmt.Errorf("%w: %s.get(%q) returned a %s", container.ErrInvalidFactory, c.name, exposedPath, lua.TypeNameOf(l, -1))
		}
	})
	return factory, err
}

func (c *luaContainer) String() string {
	return "lua container " + c.name
}
