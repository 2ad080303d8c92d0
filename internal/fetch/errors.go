// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFetchFailed is matched by every *FetchFailedError.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrExecution marks a script that was retrieved but failed to run.
	ErrExecution = errors.New("script execution failed")
)

// FetchFailedError reports a script that could not be retrieved or executed.
type FetchFailedError struct {
	URL string
	// Status is the HTTP status code, or 0 when no response was received.
	Status int
	Cause  error
}

func (e *FetchFailedError) Error() string {
	switch {
	case e.Status != 0 && e.Cause != nil:
		return fmt.Sprintf("fetch %s: HTTP %d %s: %v", e.URL, e.Status, http.StatusText(e.Status), e.Cause)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: HTTP %d %s", e.URL, e.Status, http.StatusText(e.Status))
	case e.Cause != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
	default:
		return fmt.Sprintf("fetch %s failed", e.URL)
	}
}

// Unwrap returns the underlying cause.
func (e *FetchFailedError) Unwrap() error {
	return e.Cause
}

// Is matches ErrFetchFailed.
func (e *FetchFailedError) Is(target error) bool {
	return target == ErrFetchFailed
}

func execFailed(url string, err error) error {
	return &FetchFailedError{URL: url, Cause: fmt.Errorf("%w: %w", ErrExecution, err)}
}
