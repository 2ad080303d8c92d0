// SPDX-License-Identifier: MPL-2.0

package sharedscope

import "sync"

// Holder owns the single Scope of a process.
type Holder struct {
	mu    sync.Mutex
	scope *Scope
	opts  []Option
}

var defaultHolder = &Holder{}

// NewHolder creates a Holder whose lazily created scope uses opts.
func NewHolder(opts ...Option) *Holder {
	return &Holder{opts: opts}
}

// Ensure returns the held scope, creating an empty one on first use.
func (h *Holder) Ensure() *Scope {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.scope == nil {
		h.scope = New(DefaultName, h.opts...)
	}
	return h.scope
}

// Adopt installs s when no scope exists yet and reports whether it did.
// The returned scope is always the one in effect afterwards.
func (h *Holder) Adopt(s *Scope) (*Scope, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.scope != nil || s == nil {
		if h.scope == nil {
			h.scope = New(DefaultName, h.opts...)
		}
		return h.scope, false
	}
	h.scope = s
	return s, true
}

// Initialized reports whether a scope exists.
func (h *Holder) Initialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scope != nil
}

// Ensure returns the process-wide scope.
func Ensure() *Scope {
	return defaultHolder.Ensure()
}
