// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"

	"fedhost/internal/sharedscope"
)

type (
	// Factory produces the module object behind an exposed path.
	Factory func(ctx context.Context) (any, error)

	// Container is the object a remote publishes at a well-known name.
	//
	// Init must be called once, with the process shared scope, before Get.
	// Calling Init twice is illegal under most remotes' contract; use
	// Registry.EnsureInitialized rather than calling it directly.
	Container interface {
		Init(ctx context.Context, scope *sharedscope.Scope) error
		Get(ctx context.Context, exposedPath string) (Factory, error)
	}

	// Funcs adapts a pair of functions into a Container. Always use it by
	// pointer so that the Registry can tell instances apart.
	Funcs struct {
		InitFunc func(ctx context.Context, scope *sharedscope.Scope) error
		GetFunc  func(ctx context.Context, exposedPath string) (Factory, error)
	}
)

// Init calls InitFunc when set.
func (f *Funcs) Init(ctx context.Context, scope *sharedscope.Scope) error {
	if f.InitFunc == nil {
		return nil
	}
	return f.InitFunc(ctx, scope)
}

// Get calls GetFunc, failing with ErrModuleNotExposed when it is unset.
func (f *Funcs) Get(ctx context.Context, exposedPath string) (Factory, error) {
	if f.GetFunc == nil {
		return nil, &ModuleNotExposedError{Path: exposedPath}
	}
	return f.GetFunc(ctx, exposedPath)
}

// Exposes builds a Container whose Get serves the given factories.
func Exposes(modules map[string]Factory) *Funcs {
	return &Funcs{
		GetFunc: func(_ context.Context, exposedPath string) (Factory, error) {
			f, ok := modules[exposedPath]
			if !ok {
				return nil, &ModuleNotExposedError{Path: exposedPath}
			}
			return f, nil
		},
	}
}
