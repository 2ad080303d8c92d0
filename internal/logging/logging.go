// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	// FormatText renders human-oriented log lines.
	FormatText Format = "text"
	// FormatJSON renders one JSON object per line.
	FormatJSON Format = "json"
	// FormatLogfmt renders key=value pairs.
	FormatLogfmt Format = "logfmt"
)

// ErrInvalidFormat is returned when a log format is not recognized.
var ErrInvalidFormat = errors.New("invalid log format")

type (
	// Format selects the log line encoding.
	Format string

	loggerKey struct{}
)

// Validate returns ErrInvalidFormat for unknown formats.
func (f Format) Validate() error {
	switch f {
	case FormatText, FormatJSON, FormatLogfmt:
		return nil
	default:
		return fmt.Errorf("%w: %q (valid: text, json, logfmt)", ErrInvalidFormat, string(f))
	}
}

// New creates a logger writing to w. Level accepts debug, info, warn and
// error; an empty level means info.
func New(w io.Writer, level string, format Format) (*log.Logger, error) {
	lvl := log.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		lvl = parsed
	}
	if format == "" {
		format = FormatText
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	opts := log.Options{
		Level:           lvl,
		ReportTimestamp: format != FormatText,
	}
	switch format {
	case FormatJSON:
		opts.Formatter = log.JSONFormatter
	case FormatLogfmt:
		opts.Formatter = log.LogfmtFormatter
	default:
		opts.Formatter = log.TextFormatter
	}

	return log.NewWithOptions(w, opts), nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// Component returns l tagged with a component prefix, or a discarding
// logger when l is nil.
func Component(l *log.Logger, name string) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l.WithPrefix(name)
}

// WithLogger returns a context carrying l.
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext extracts the logger stored by WithLogger. When the context
// carries none, a discarding logger is returned.
func FromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*log.Logger); ok && l != nil {
		return l
	}
	return Discard()
}
