// SPDX-License-Identifier: MPL-2.0

package sharedscope

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"

	"fedhost/internal/logging"
)

// DefaultName is the name of the scope remotes are initialized with.
const DefaultName = "default"

var (
	// ErrNotShared is returned when no provider registered the requested library.
	ErrNotShared = errors.New("library not shared")
	// ErrUnsatisfiedVersion is returned when no provided version satisfies the requested range.
	ErrUnsatisfiedVersion = errors.New("no shared version satisfies range")
	// ErrInvalidShare is returned when a Share cannot be registered.
	ErrInvalidShare = errors.New("invalid share")
)

type (
	// Factory materializes a shared library instance.
	Factory func(ctx context.Context) (any, error)

	// Share describes one provided version of a library.
	Share struct {
		// Name is the library name (e.g., "vue-router").
		Name string
		// Version is the provided semantic version (e.g., "4.2.5").
		Version string
		// From identifies the provider ("host" or a remote name).
		From string
		// Singleton forces every consumer onto a single instance regardless of range.
		Singleton bool
		// StrictVersion turns a singleton range mismatch into an error instead of a warning.
		StrictVersion bool
		// RequiredVersion is the range applied when a consumer does not pass one.
		RequiredVersion string
		// Eager materializes the instance when the scope is materialized
		// instead of on first use.
		Eager bool
		// Value is a ready instance. When set, Factory is ignored.
		Value any
		// Factory produces the instance on first use.
		Factory Factory
	}

	// Scope is a registry of shared library instances.
	Scope struct {
		name   string
		logger *log.Logger

		mu      sync.RWMutex
		entries map[string][]*entry
	}

	// Option configures a Scope.
	Option func(*Scope)

	entry struct {
		share Share

		mu     sync.Mutex
		loaded bool
		value  any
	}
)

// WithLogger sets the logger used for version warnings.
func WithLogger(l *log.Logger) Option {
	return func(s *Scope) {
		s.logger = logging.Component(l, "scope")
	}
}

// New creates an empty scope.
func New(name string, opts ...Option) *Scope {
	if name == "" {
		name = DefaultName
	}
	s := &Scope{
		name:    name,
		logger:  logging.Discard(),
		entries: make(map[string][]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the scope name.
func (s *Scope) Name() string {
	return s.name
}

// Provide registers a library version. It reports whether the share was
// added; a name and version already present is left untouched.
func (s *Scope) Provide(share Share) (bool, error) {
	if strings.TrimSpace(share.Name) == "" {
		return false, fmt.Errorf("%w: empty name", ErrInvalidShare)
	}
	if !validVersion(share.Version) {
		return false, fmt.Errorf("%w: %s: version %q is not semantic", ErrInvalidShare, share.Name, share.Version)
	}
	if share.Value == nil && share.Factory == nil {
		return false, fmt.Errorf("%w: %s@%s: neither value nor factory", ErrInvalidShare, share.Name, share.Version)
	}
	if share.RequiredVersion != "" {
		if _, err := parseRange(share.RequiredVersion); err != nil {
			return false, fmt.Errorf("%w: %s: %w", ErrInvalidShare, share.Name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries[share.Name] {
		if compareVersions(e.share.Version, share.Version) == 0 {
			s.logger.Debug("share already provided", "name", share.Name, "version", share.Version, "from", e.share.From, "ignored", share.From)
			return false, nil
		}
	}

	e := &entry{share: share}
	if share.Value != nil {
		e.loaded = true
		e.value = share.Value
	}
	// Readers keep the previous slice after releasing the lock; never sort it in place.
	list := append(slices.Clone(s.entries[share.Name]), e)
	sort.SliceStable(list, func(i, j int) bool {
		return compareVersions(list[i].share.Version, list[j].share.Version) > 0
	})
	s.entries[share.Name] = list
	s.logger.Debug("share provided", "name", share.Name, "version", share.Version, "from", share.From)
	return true, nil
}

// Get returns an instance of the named library. An empty required range
// falls back to the chosen share's RequiredVersion.
func (s *Scope) Get(ctx context.Context, name, required string) (any, error) {
	e, err := s.pick(name, required)
	if err != nil {
		return nil, err
	}
	return e.materialize(ctx)
}

// Has reports whether any version of the library is provided.
func (s *Scope) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[name]) > 0
}

// Versions returns the provided versions of a library, highest first.
func (s *Scope) Versions(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries[name]))
	for _, e := range s.entries[name] {
		out = append(out, e.share.Version)
	}
	return out
}

// Names returns every shared library name in sorted order.
func (s *Scope) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Shares returns a snapshot of every registered share, without instances.
func (s *Scope) Shares() []Share {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Share
	for _, name := range sortedKeys(s.entries) {
		for _, e := range s.entries[name] {
			sh := e.share
			sh.Value = nil
			sh.Factory = nil
			out = append(out, sh)
		}
	}
	return out
}

// Materialize instantiates every eager share. Failures are joined; shares
// that loaded stay loaded.
func (s *Scope) Materialize(ctx context.Context) error {
	s.mu.RLock()
	var eager []*entry
	for _, name := range sortedKeys(s.entries) {
		for _, e := range s.entries[name] {
			if e.share.Eager {
				eager = append(eager, e)
			}
		}
	}
	s.mu.RUnlock()

	var errs []error
	for _, e := range eager {
		if _, err := e.materialize(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scope) pick(name, required string) (*entry, error) {
	s.mu.RLock()
	list := s.entries[name]
	s.mu.RUnlock()

	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotShared, name)
	}

	singleton := false
	for _, e := range list {
		if e.share.Singleton {
			singleton = true
			break
		}
	}

	if singleton {
		top := list[0]
		rng := required
		if rng == "" {
			rng = top.share.RequiredVersion
		}
		ok, err := satisfies(top.share.Version, rng)
		if err != nil {
			return nil, err
		}
		if !ok {
			if top.share.StrictVersion {
				return nil, fmt.Errorf("%w: %s singleton %s does not satisfy %q", ErrUnsatisfiedVersion, name, top.share.Version, rng)
			}
			s.logger.Warn("singleton version mismatch", "name", name, "provided", top.share.Version, "required", rng)
		}
		return top, nil
	}

	for _, e := range list {
		rng := required
		if rng == "" {
			rng = e.share.RequiredVersion
		}
		ok, err := satisfies(e.share.Version, rng)
		if err != nil {
			return nil, err
		}
		if ok {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %q (provided: %s)", ErrUnsatisfiedVersion, name, required, strings.Join(versionsOf(list), ", "))
}

func (e *entry) materialize(ctx context.Context) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return e.value, nil
	}
	v, err := e.share.Factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("materialize %s@%s: %w", e.share.Name, e.share.Version, err)
	}
	e.value = v
	e.loaded = true
	return v, nil
}

func versionsOf(list []*entry) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.share.Version)
	}
	return out
}

func sortedKeys(m map[string][]*entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
