// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrContainerNotFound is the sentinel matched by ContainerNotFoundError.
	ErrContainerNotFound = errors.New("container not found")
	// ErrAlreadyInitializing is returned when init is requested while another
	// caller is still initializing the same container.
	ErrAlreadyInitializing = errors.New("container is already initializing")
	// ErrDoubleInitialization is returned instead of calling init a second time.
	ErrDoubleInitialization = errors.New("container already initialized")
	// ErrModuleNotExposed is the sentinel matched by ModuleNotExposedError.
	ErrModuleNotExposed = errors.New("module not exposed")
	// ErrUncomparable is returned for containers that cannot be tracked by identity.
	ErrUncomparable = errors.New("container value is not comparable")
	// ErrContainerPanic wraps a panic raised by a container method.
	ErrContainerPanic = errors.New("container panicked")
)

type (
	// ContainerNotFoundError reports that no candidate name resolved to a
	// container before the discovery timeout.
	ContainerNotFoundError struct {
		Candidates []string
		Timeout    time.Duration
	}

	// ModuleNotExposedError reports a path the container does not expose.
	ModuleNotExposedError struct {
		Path string
	}
)

func (e *ContainerNotFoundError) Error() string {
	return fmt.Sprintf("no container found under [%s] within %s", strings.Join(e.Candidates, ", "), e.Timeout)
}

// Unwrap returns ErrContainerNotFound.
func (e *ContainerNotFoundError) Unwrap() error {
	return ErrContainerNotFound
}

func (e *ModuleNotExposedError) Error() string {
	return fmt.Sprintf("module %q is not exposed", e.Path)
}

// Unwrap returns ErrModuleNotExposed.
func (e *ModuleNotExposedError) Unwrap() error {
	return ErrModuleNotExposed
}

// ErrInvalidFactory is returned when a container's get yields something
// other than a factory.
var ErrInvalidFactory = errors.New("container returned an invalid factory")
