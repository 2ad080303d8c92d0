// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/Shopify/go-lua"
)

// maxDepth bounds table conversion; deeper tables stay pinned as *Ref.
const maxDepth = 32

// Func is a Go function callable from Lua. Arguments and results use the
// same conversions as Env.Global and Env.SetGlobal.
type Func func(ctx context.Context, args []any) ([]any, error)

// toGo converts the value at index. Tables become map[string]any or []any,
// functions become *Ref. A table reached again below itself stays pinned as
// *Ref; a table shared by several fields converts once and the result is
// reused. The state must be held.
func (e *Env) toGo(l *lua.State, index int) any {
	c := converter{env: e, done: make(map[any]any), active: make(map[any]bool)}
	return c.value(l, index, 0)
}

// converter tracks table identities across one toGo call.
type converter struct {
	env    *Env
	done   map[any]any
	active map[any]bool
}

func (c *converter) value(l *lua.State, index, depth int) any {
	switch l.TypeOf(index) {
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return normalizeNumber(n)
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s
	case lua.TypeTable:
		id := l.ToValue(index)
		if v, ok := c.done[id]; ok {
			return v
		}
		if depth >= maxDepth || c.active[id] {
			return c.env.ref(l, index)
		}
		c.active[id] = true
		v := c.table(l, index, depth)
		delete(c.active, id)
		c.done[id] = v
		return v
	case lua.TypeFunction:
		return c.env.ref(l, index)
	case lua.TypeUserData:
		if h, ok := l.ToUserData(index).(*scopeHandle); ok {
			return h.scope
		}
		return l.ToUserData(index)
	default:
		return nil
	}
}

func (c *converter) table(l *lua.State, index, depth int) any {
	index = l.AbsIndex(index)

	isArray := true
	maxIndex, count := 0, 0
	l.PushNil()
	for l.Next(index) {
		count++
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := l.ToInteger(-2); ok && idx > 0 {
				maxIndex = max(maxIndex, idx)
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		out := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			out = append(out, c.value(l, -1, depth+1))
			l.Pop(1)
		}
		return out
	}

	out := make(map[string]any, count)
	l.PushNil()
	for l.Next(index) {
		var key string
		switch l.TypeOf(-2) {
		case lua.TypeString:
			key, _ = l.ToString(-2)
		case lua.TypeNumber:
			n, _ := l.ToNumber(-2)
			key = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			l.Pop(1)
			continue
		}
		out[key] = c.value(l, -1, depth+1)
		l.Pop(1)
	}
	return out
}

// push pushes the Lua form of v. The state must be held.
func (e *Env) push(l *lua.State, v any, depth int) {
	if depth >= maxDepth {
		l.PushNil()
		return
	}
	switch v := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(v)
	case string:
		l.PushString(v)
	case int:
		l.PushInteger(v)
	case int32:
		l.PushInteger(int(v))
	case int64:
		l.PushNumber(float64(v))
	case uint:
		l.PushNumber(float64(v))
	case float32:
		l.PushNumber(float64(v))
	case float64:
		l.PushNumber(v)
	case error:
		l.PushString(v.Error())
	case *Ref:
		if v.env != e {
			l.PushNil()
			return
		}
		v.push(l)
	case Func:
		e.pushFunc(l, v)
	case []string:
		l.CreateTable(len(v), 0)
		for i, s := range v {
			l.PushString(s)
			l.RawSetInt(-2, i+1)
		}
	case []any:
		l.CreateTable(len(v), 0)
		for i, item := range v {
			e.push(l, item, depth+1)
			l.RawSetInt(-2, i+1)
		}
	case map[string]string:
		l.CreateTable(0, len(v))
		for _, k := range sortedStringKeys(v) {
			l.PushString(v[k])
			l.SetField(-2, k)
		}
	case map[string]any:
		l.CreateTable(0, len(v))
		for _, k := range sortedStringKeys(v) {
			e.push(l, v[k], depth+1)
			l.SetField(-2, k)
		}
	default:
		l.PushUserData(v)
	}
}

func (e *Env) pushFunc(l *lua.State, f Func) {
	l.PushGoFunction(func(l *lua.State) int {
		args := make([]any, 0, l.Top())
		for i := 1; i <= l.Top(); i++ {
			args = append(args, e.toGo(l, i))
		}
		results, err := f(e.ctx(), args)
		if err != nil {
			lua.Errorf(l, "%s", err.Error())
			return 0
		}
		for _, r := range results {
			e.push(l, r, 0)
		}
		return len(results)
	})
}

func normalizeNumber(n float64) any {
	if n == math.Trunc(n) && n >= math.MinInt32 && n <= math.MaxInt32 {
		return int(n)
	}
	return n
}

func sortedStringKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
