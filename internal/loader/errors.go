// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"errors"
	"fmt"

	"fedhost/internal/container"
	"fedhost/internal/fetch"
)

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseContainerDiscovery
	PhaseInitializing
	PhaseExtracting
	PhaseResolved
	PhaseFailed
)

var (
	// ErrAlreadyLoading is returned when the remote name is already being resolved.
	ErrAlreadyLoading = errors.New("remote is already loading")
	// ErrNotLoaded is returned by operations on a remote that never loaded.
	ErrNotLoaded = errors.New("remote not loaded")
	// ErrNoExportFound is matched by *NoExportFoundError.
	ErrNoExportFound = errors.New("no export found")
	// ErrInvalidDescriptor is returned by NewDescriptor.
	ErrInvalidDescriptor = errors.New("invalid remote descriptor")
	// ErrNoFetcher is returned when no fetcher is configured for a strategy.
	ErrNoFetcher = errors.New("no fetcher for strategy")

	// ErrFetchFailed matches *FetchFailedError.
	ErrFetchFailed = fetch.ErrFetchFailed
	// ErrContainerNotFound matches *ContainerNotFoundError.
	ErrContainerNotFound = container.ErrContainerNotFound
	// ErrAlreadyInitializing is returned when another resolve is still
	// initializing the same container.
	ErrAlreadyInitializing = container.ErrAlreadyInitializing
	// ErrDoubleInitialization is never returned by Resolve, which skips
	// initialized containers; it is exported for callers of container.Registry.Init.
	ErrDoubleInitialization = container.ErrDoubleInitialization
	// ErrInvalidFactory is returned when get does not yield a factory.
	ErrInvalidFactory = container.ErrInvalidFactory
)

type (
	// Phase is the step a resolve attempt reached.
	Phase int

	// FetchFailedError reports an entry that could not be fetched or executed.
	FetchFailedError = fetch.FetchFailedError

	// ContainerNotFoundError reports a discovery timeout.
	ContainerNotFoundError = container.ContainerNotFoundError

	// NoExportFoundError reports a factory that produced no usable value.
	NoExportFoundError struct {
		ExposedPath string
	}

	// ResolveError wraps every failure of a resolve attempt.
	ResolveError struct {
		Name  string
		Phase Phase
		Err   error
	}
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseContainerDiscovery:
		return "container discovery"
	case PhaseInitializing:
		return "initializing"
	case PhaseExtracting:
		return "extracting"
	case PhaseResolved:
		return "resolved"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (e *NoExportFoundError) Error() string {
	return fmt.Sprintf("no export found for %q", e.ExposedPath)
}

// Is matches ErrNoExportFound.
func (e *NoExportFoundError) Is(target error) bool {
	return target == ErrNoExportFound
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %s: %v", e.Name, e.Phase, e.Err)
}

// Unwrap returns the underlying error.
func (e *ResolveError) Unwrap() error {
	return e.Err
}

// PhaseOf returns the phase recorded in err, or PhaseFailed when err is not
// a *ResolveError.
func PhaseOf(err error) Phase {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Phase
	}
	return PhaseFailed
}
