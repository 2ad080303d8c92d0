// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"fedhost/internal/logging"
	"fedhost/internal/sharedscope"
)

const (
	// DefaultPollInterval is the delay between discovery probes.
	DefaultPollInterval = 50 * time.Millisecond
	// DefaultTimeout bounds container discovery.
	DefaultTimeout = 5 * time.Second
)

type (
	// Registry discovers containers and tracks their init state.
	Registry struct {
		globals  Globals
		interval time.Duration
		logger   *log.Logger

		mu     sync.Mutex
		states map[Container]*initState
	}

	// RegistryOption configures a Registry.
	RegistryOption func(*Registry)

	initState struct {
		initialized  bool
		initializing bool
	}
)

// WithPollInterval sets the delay between discovery probes.
func WithPollInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *log.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logging.Component(l, "registry")
	}
}

// NewRegistry creates a Registry looking names up in globals.
func NewRegistry(globals Globals, opts ...RegistryOption) *Registry {
	r := &Registry{
		globals:  globals,
		interval: DefaultPollInterval,
		logger:   logging.Discard(),
		states:   make(map[Container]*initState),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Find polls the candidate names in order until one resolves to a
// Container. It returns the container and the name it was found under, or a
// *ContainerNotFoundError once timeout elapses. Globals that report a
// failure through FailingGlobals end the search with that error.
func (r *Registry) Find(ctx context.Context, candidates []string, timeout time.Duration) (Container, string, error) {
	var (
		found Container
		name  string
	)
	err := Poll(ctx, r.interval, timeout, func() (bool, error) {
		for _, candidate := range candidates {
			v, ok := r.globals.Lookup(candidate)
			if !ok || v == nil {
				continue
			}
			c, ok := v.(Container)
			if !ok {
				r.logger.Debug("global is not a container", "name", candidate, "type", fmt.Sprintf("%T", v))
				continue
			}
			found, name = c, candidate
			return true, nil
		}
		return false, globalsErr(r.globals)
	})
	if errors.Is(err, ErrPollTimeout) {
		return nil, "", &ContainerNotFoundError{
			Candidates: append([]string(nil), candidates...),
			Timeout:    timeout,
		}
	}
	if err != nil {
		return nil, "", err
	}
	r.logger.Debug("container found", "name", name)
	return found, name, nil
}

// EnsureInitialized calls c.Init with scope unless it already completed. It
// reports whether Init ran. A failed Init leaves the container uninitialized
// so that a later attempt may try again.
func (r *Registry) EnsureInitialized(ctx context.Context, c Container, scope *sharedscope.Scope) (bool, error) {
	if !trackable(c) {
		return false, fmt.Errorf("%w: %T", ErrUncomparable, c)
	}

	r.mu.Lock()
	st, ok := r.states[c]
	if !ok {
		st = &initState{}
		r.states[c] = st
	}
	switch {
	case st.initialized:
		r.mu.Unlock()
		return false, nil
	case st.initializing:
		r.mu.Unlock()
		return false, ErrAlreadyInitializing
	}
	st.initializing = true
	r.mu.Unlock()

	err := safeInit(ctx, c, scope)

	r.mu.Lock()
	defer r.mu.Unlock()
	st.initializing = false
	if err != nil {
		delete(r.states, c)
		return true, err
	}
	st.initialized = true
	return true, nil
}

// Init initializes c, failing with ErrDoubleInitialization, without reaching
// the container, when it has already been initialized.
func (r *Registry) Init(ctx context.Context, c Container, scope *sharedscope.Scope) error {
	if r.Initialized(c) {
		return ErrDoubleInitialization
	}
	_, err := r.EnsureInitialized(ctx, c, scope)
	return err
}

// Initialized reports whether c completed init.
func (r *Registry) Initialized(c Container) bool {
	if !trackable(c) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[c]
	return ok && st.initialized
}

// Forget drops the init record of c. A container republished by a reloaded
// remote is a new instance and needs no Forget; this is for callers that
// know the same instance was reset by its owner.
func (r *Registry) Forget(c Container) {
	if !trackable(c) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, c)
}

// SafeGet calls c.Get, recovering a panic into an error.
func SafeGet(ctx context.Context, c Container, exposedPath string) (f Factory, err error) {
	defer recoverInto(&err, "get")
	return c.Get(ctx, exposedPath)
}

// SafeCall invokes f, recovering a panic into an error.
func SafeCall(ctx context.Context, f Factory) (v any, err error) {
	defer recoverInto(&err, "factory")
	return f(ctx)
}

func safeInit(ctx context.Context, c Container, scope *sharedscope.Scope) (err error) {
	defer recoverInto(&err, "init")
	return c.Init(ctx, scope)
}

func recoverInto(err *error, op string) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("%w: %s: %v", ErrContainerPanic, op, p)
	}
}

func trackable(c Container) bool {
	return c != nil && reflect.TypeOf(c).Comparable()
}
