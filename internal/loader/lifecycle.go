// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"errors"
	"fmt"
)

type (
	// Unmounter is implemented by exports that release resources on unload.
	Unmounter interface {
		Unmount(ctx context.Context) error
	}

	// Callable is a function value produced by the script runtime.
	Callable interface {
		Call(ctx context.Context, args ...any) ([]any, error)
	}
)

// Unload forgets a loaded remote and runs its unmount hook, if any. The
// remote's container stays initialized: it lives as long as its script.
func (l *Loader) Unload(ctx context.Context, name string) error {
	l.mu.Lock()
	rec, ok := l.loaded[name]
	if ok {
		delete(l.loaded, name)
	}
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("unload %s: %w", name, ErrNotLoaded)
	}

	if err := unmount(ctx, rec.export); err != nil {
		l.logger.Warn("unmount failed", "name", name, "err", err)
		return fmt.Errorf("unload %s: %w", name, err)
	}
	l.logger.Info("remote unloaded", "name", name)
	return nil
}

// Reload unloads name, drops its entry script from the document so that it
// executes again, and resolves it anew with the original descriptor.
func (l *Loader) Reload(ctx context.Context, name string, opts ...ResolveOption) (any, error) {
	info, ok := l.Info(name)
	if !ok {
		return nil, fmt.Errorf("reload %s: %w", name, ErrNotLoaded)
	}
	if err := l.Unload(ctx, name); err != nil {
		l.logger.Warn("continuing reload after unload error", "name", name, "err", err)
	}
	if l.doc != nil {
		l.doc.Remove(info.Descriptor.entryURL)
	}
	return l.Resolve(ctx, info.Descriptor, opts...)
}

// Cleanup unloads every remote, continuing past individual failures.
func (l *Loader) Cleanup(ctx context.Context) error {
	var errs []error
	for _, name := range l.Loaded() {
		if err := l.Unload(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func unmount(ctx context.Context, export any) error {
	switch e := export.(type) {
	case Unmounter:
		return e.Unmount(ctx)
	case map[string]any:
		if fn, ok := e["unmount"].(Callable); ok {
			_, err := fn.Call(ctx)
			return err
		}
	}
	return nil
}
