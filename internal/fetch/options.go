// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"github.com/charmbracelet/log"

	"fedhost/internal/logging"
)

type (
	// Option configures a Fetcher.
	Option func(*settings)

	settings struct {
		logger *log.Logger
	}
)

// WithLogger sets the fetcher logger.
func WithLogger(l *log.Logger) Option {
	return func(s *settings) {
		s.logger = logging.Component(l, "fetch")
	}
}

func newSettings(opts []Option) settings {
	s := settings{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
