// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"strings"
	"time"

	"github.com/Shopify/go-lua"
)

func (e *Env) registerHostFunctions() {
	e.l.Register("print", e.hostPrint)
	e.l.Register("load_chunk", e.hostLoadChunk)
	e.l.Register("set_timeout", e.hostSetTimeout)
	e.l.Register("clear_timeout", e.hostClearTimeout)
}

// print(...) writes its arguments to the logger.
func (e *Env) hostPrint(l *lua.State) int {
	parts := make([]string, 0, l.Top())
	for i := 1; i <= l.Top(); i++ {
		switch l.TypeOf(i) {
		case lua.TypeString, lua.TypeNumber:
			s, _ := l.ToString(i)
			parts = append(parts, s)
		case lua.TypeBoolean:
			if l.ToBoolean(i) {
				parts = append(parts, "true")
			} else {
				parts = append(parts, "false")
			}
		case lua.TypeNil:
			parts = append(parts, "nil")
		default:
			parts = append(parts, lua.TypeNameOf(l, i))
		}
	}
	e.logger.Info(strings.Join(parts, " "))
	return 0
}

// load_chunk(url) loads a secondary asset through the chunk chain.
func (e *Env) hostLoadChunk(l *lua.State) int {
	url := lua.CheckString(l, 1)
	if e.chunks == nil {
		lua.Errorf(l, "load_chunk(%s): no chunk loader configured", url)
		return 0
	}
	if err := e.chunks.LoadChunk(e.ctx(), url); err != nil {
		lua.Errorf(l, "load_chunk(%s): %s", url, err.Error())
		return 0
	}
	return 0
}

// set_timeout(fn [, ms]) schedules fn and returns a timer id.
func (e *Env) hostSetTimeout(l *lua.State) int {
	lua.CheckType(l, 1, lua.TypeFunction)
	ms := lua.OptInteger(l, 2, 0)
	ref := e.ref(l, 1)

	e.nextID++
	id := e.nextID
	e.timers[id] = &timer{
		ref: ref,
		t:   time.AfterFunc(time.Duration(ms)*time.Millisecond, func() { e.fire(id) }),
	}
	l.PushInteger(id)
	return 1
}

// clear_timeout(id) cancels a pending timer.
func (e *Env) hostClearTimeout(l *lua.State) int {
	id := lua.CheckInteger(l, 1)
	if t, ok := e.timers[id]; ok {
		t.t.Stop()
		delete(e.timers, id)
		l.PushNil()
		l.SetField(lua.RegistryIndex, t.ref.key)
	}
	return 0
}

func (e *Env) fire(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.timers[id]
	if !ok || e.closed {
		return
	}
	delete(e.timers, id)

	ctx := context.WithValue(context.Background(), vmKey{}, e)
	_ = e.run(ctx, func(_ context.Context, l *lua.State) error {
		t.ref.push(l)
		if err := l.ProtectedCall(0, 0, 0); err != nil {
			e.logger.Warn("timer callback failed", "id", id, "err", popError(l, err))
		}
		l.PushNil()
		l.SetField(lua.RegistryIndex, t.ref.key)
		return nil
	})
}
