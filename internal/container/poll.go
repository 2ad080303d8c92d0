// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollTimeout is returned by Poll when the probe never succeeded.
var ErrPollTimeout = errors.New("poll timed out")

// Poll calls probe every interval until it reports done, returns an error,
// or timeout elapses. The probe always runs once more at the deadline, so a
// value published during the last interval is still seen.
//
// probe returns (done bool, err error). A non-nil err stops polling and is
// returned as is. Context cancellation stops polling between probes.
func Poll(
	ctx context.Context,
	interval, timeout time.Duration,
	probe func() (done bool, err error),
) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(timeout)

	var timer *time.Timer
	for {
		done, err := probe()
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrPollTimeout
		}
		wait := min(interval, remaining)
		if timer == nil {
			timer = time.NewTimer(wait)
			defer timer.Stop()
		} else {
			timer.Reset(wait)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("poll aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
