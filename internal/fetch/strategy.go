// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
)

const (
	// StrategyScriptTag injects a script element and waits for it to load.
	StrategyScriptTag Strategy = "script_tag"
	// StrategyFetchEval retrieves the text and executes it directly.
	StrategyFetchEval Strategy = "fetch_eval"
)

// ErrInvalidStrategy is returned for unknown strategy names.
var ErrInvalidStrategy = errors.New("invalid fetch strategy")

type (
	// Strategy selects how an entry is fetched and executed.
	Strategy string

	// Fetcher loads a URL as an executable unit into the runtime.
	Fetcher interface {
		Fetch(ctx context.Context, url string) error
	}

	// Executor runs script source in the host runtime. name identifies the
	// chunk in error messages.
	Executor interface {
		Exec(ctx context.Context, name string, src []byte) error
	}

	// ExecutorFunc adapts a function into an Executor.
	ExecutorFunc func(ctx context.Context, name string, src []byte) error
)

// Exec calls f.
func (f ExecutorFunc) Exec(ctx context.Context, name string, src []byte) error {
	return f(ctx, name, src)
}

// Strategies returns every supported strategy.
func Strategies() []Strategy {
	return []Strategy{StrategyScriptTag, StrategyFetchEval}
}

// Validate returns ErrInvalidStrategy for unknown values.
func (s Strategy) Validate() error {
	switch s {
	case StrategyScriptTag, StrategyFetchEval:
		return nil
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)", ErrInvalidStrategy, string(s), StrategyScriptTag, StrategyFetchEval)
	}
}

// String returns the strategy name.
func (s Strategy) String() string {
	return string(s)
}

// ParseStrategy parses a strategy name. The empty string selects StrategyScriptTag.
func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return StrategyScriptTag, nil
	}
	st := Strategy(s)
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

// New returns the Fetcher implementing strategy.
func New(strategy Strategy, client *Client, exec Executor, doc *Document, opts ...Option) (Fetcher, error) {
	switch strategy {
	case StrategyScriptTag, "":
		return NewScriptTag(client, exec, doc, opts...), nil
	case StrategyFetchEval:
		return NewFetchEval(client, exec, doc, opts...), nil
	default:
		return nil, strategy.Validate()
	}
}
