// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"github.com/Shopify/go-lua"

	"fedhost/internal/sharedscope"
)

const scopeTypeName = "fedhost.scope"

type scopeHandle struct {
	scope *sharedscope.Scope
}

func (e *Env) registerScopeType() {
	methods := []lua.RegistryFunction{
		{Name: "get", Function: e.scopeGet},
		{Name: "provide", Function: e.scopeProvide},
		{Name: "has", Function: e.scopeHas},
		{Name: "versions", Function: e.scopeVersions},
	}
	lua.NewMetaTable(e.l, scopeTypeName)
	e.l.NewTable()
	lua.SetFunctions(e.l, methods, 0)
	e.l.SetField(-2, "__index")
	e.l.Pop(1)
}

func (e *Env) pushScope(l *lua.State, scope *sharedscope.Scope) {
	if scope == nil {
		l.PushNil()
		return
	}
	l.PushUserData(&scopeHandle{scope: scope})
	lua.SetMetaTableNamed(l, scopeTypeName)
}

func checkScope(l *lua.State) *sharedscope.Scope {
	ud := lua.CheckUserData(l, 1, scopeTypeName)
	if h, ok := ud.(*scopeHandle); ok && h.scope != nil {
		return h.scope
	}
	lua.ArgumentError(l, 1, "shared scope expected")
	return nil
}

// scope:get(name [, range]) returns the shared instance.
func (e *Env) scopeGet(l *lua.State) int {
	scope := checkScope(l)
	name := lua.CheckString(l, 2)
	rng := lua.OptString(l, 3, "")
	v, err := scope.Get(e.ctx(), name, rng)
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
		return 0
	}
	e.push(l, v, 0)
	return 1
}

// scope:provide(name, version, value [, options]) registers a share and
// returns whether it was added. Tables and functions keep their identity.
func (e *Env) scopeProvide(l *lua.State) int {
	scope := checkScope(l)
	share := sharedscope.Share{
		Name:    lua.CheckString(l, 2),
		Version: lua.CheckString(l, 3),
		From:    "lua",
	}
	lua.CheckAny(l, 4)
	switch l.TypeOf(4) {
	case lua.TypeTable, lua.TypeFunction:
		share.Value = e.ref(l, 4)
	default:
		share.Value = e.toGo(l, 4)
	}
	if l.IsTable(5) {
		l.Field(5, "singleton")
		share.Singleton = l.ToBoolean(-1)
		l.Field(5, "strict_version")
		share.StrictVersion = l.ToBoolean(-1)
		l.Field(5, "required_version")
		share.RequiredVersion, _ = l.ToString(-1)
		l.Pop(3)
	}
	added, err := scope.Provide(share)
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
		return 0
	}
	l.PushBoolean(added)
	return 1
}

// scope:has(name)
func (e *Env) scopeHas(l *lua.State) int {
	scope := checkScope(l)
	l.PushBoolean(scope.Has(lua.CheckString(l, 2)))
	return 1
}

// scope:versions(name)
func (e *Env) scopeVersions(l *lua.State) int {
	scope := checkScope(l)
	e.push(l, scope.Versions(lua.CheckString(l, 2)), 0)
	return 1
}
