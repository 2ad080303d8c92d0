// SPDX-License-Identifier: MPL-2.0

// Package runtime is the script environment remote entries execute in.
//
// Remote entries are Lua scripts. Executing one publishes a container table
// under a global name:
//
//	workflow = {
//	  init = function(scope) ... end,
//	  get = function(path) return function() return { default = App } end end,
//	}
//
// Env wraps a single Lua state. Every call into it (script execution,
// container init and get, factories, timers) is serialized on one mutex,
// giving remote code the single logical thread it expects. Host callbacks
// invoked from Lua receive a context that marks the VM as already held, so a
// shared-scope factory that calls back into Lua does not deadlock. Such a
// context must not be handed to another goroutine.
//
// Env implements container.Globals, so a Registry can discover Lua
// containers, and fetch.Executor, so a Fetcher can run entries in it. The
// shared scope is exposed to Lua as a userdata with get, provide, has and
// versions methods. Entries may also call load_chunk(url) to request a
// secondary asset through the chunk chain, set_timeout(fn, ms) to defer
// work, and print(...) which writes to the environment logger.
package runtime
