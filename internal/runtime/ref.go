// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Shopify/go-lua"
)

const refPrefix = "fedhost.ref."

// Ref pins a Lua table or function so Go code can hold on to it. Refs
// returned by Call, Env.Global and module exports stay pinned until Release
// is called or the Env is garbage collected.
type Ref struct {
	env  *Env
	key  string
	kind lua.Type
}

// ref pins the value at index. The state must be held.
func (e *Env) ref(l *lua.State, index int) *Ref {
	index = l.AbsIndex(index)
	e.nextRef++
	r := &Ref{env: e, key: refPrefix + strconv.Itoa(e.nextRef), kind: l.TypeOf(index)}
	l.PushValue(index)
	l.SetField(lua.RegistryIndex, r.key)
	return r
}

// push pushes the pinned value. The state must be held.
func (r *Ref) push(l *lua.State) {
	l.Field(lua.RegistryIndex, r.key)
}

// IsFunction reports whether the pinned value is a function.
func (r *Ref) IsFunction() bool {
	return r.kind == lua.TypeFunction
}

// String describes the pinned value.
func (r *Ref) String() string {
	kind := "value"
	switch r.kind {
	case lua.TypeFunction:
		kind = "function"
	case lua.TypeTable:
		kind = "table"
	}
	return fmt.Sprintf("lua %s (%s)", kind, r.key)
}

// Call invokes the pinned function with args and returns its results.
func (r *Ref) Call(ctx context.Context, args ...any) ([]any, error) {
	var out []any
	err := r.env.do(ctx, func(_ context.Context, l *lua.State) error {
		if r.kind != lua.TypeFunction {
			return fmt.Errorf("%w: %s is not callable", ErrScript, r.key)
		}
		top := l.Top()
		r.push(l)
		for _, a := range args {
			r.env.push(l, a, 0)
		}
		if err := l.ProtectedCall(len(args), lua.MultipleReturns, 0); err != nil {
			return fmt.Errorf("%w: %s", ErrScript, popError(l, err))
		}
		for i := top + 1; i <= l.Top(); i++ {
			out = append(out, r.env.toGo(l, i))
		}
		return nil
	})
	return out, err
}

// Release unpins the value. The Ref must not be used afterwards.
func (r *Ref) Release(ctx context.Context) error {
	return r.env.do(ctx, func(_ context.Context, l *lua.State) error {
		l.PushNil()
		l.SetField(lua.RegistryIndex, r.key)
		return nil
	})
}
