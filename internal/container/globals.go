// SPDX-License-Identifier: MPL-2.0

package container

import (
	"sort"
	"sync"
)

type (
	// Globals resolves well-known names to values published by remotes.
	Globals interface {
		Lookup(name string) (any, bool)
	}

	// FailingGlobals is implemented by Globals that can stop serving lookups
	// for good, such as a closed script environment. Registry.Find returns
	// Err as soon as it is non-nil.
	FailingGlobals interface {
		Globals
		Err() error
	}

	// GlobalsFunc adapts a function into Globals.
	GlobalsFunc func(name string) (any, bool)

	// Namespace is an in-process Globals that Go code publishes into.
	Namespace struct {
		mu     sync.RWMutex
		values map[string]any
	}

	chain []Globals
)

// Lookup calls f.
func (f GlobalsFunc) Lookup(name string) (any, bool) {
	return f(name)
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{values: make(map[string]any)}
}

// Publish stores v under name, replacing any previous value.
func (n *Namespace) Publish(name string, v any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.values[name] = v
}

// Withdraw removes name.
func (n *Namespace) Withdraw(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.values, name)
}

// Lookup returns the value published under name.
func (n *Namespace) Lookup(name string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.values[name]
	return v, ok
}

// Names returns the published names in sorted order.
func (n *Namespace) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.values))
	for k := range n.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Chain combines several Globals; the first one that knows a name wins.
// Nil entries are skipped.
func Chain(globals ...Globals) Globals {
	c := make(chain, 0, len(globals))
	for _, g := range globals {
		if g != nil {
			c = append(c, g)
		}
	}
	return c
}

// Err returns the first failure reported by a member.
func (c chain) Err() error {
	for _, g := range c {
		if err := globalsErr(g); err != nil {
			return err
		}
	}
	return nil
}

func globalsErr(g Globals) error {
	if f, ok := g.(FailingGlobals); ok {
		return f.Err()
	}
	return nil
}

func (c chain) Lookup(name string) (any, bool) {
	for _, g := range c {
		if v, ok := g.Lookup(name); ok {
			return v, true
		}
	}
	return nil, false
}
