// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// ScriptTag loads scripts the way a browser loads an injected script element.
type ScriptTag struct {
	client *Client
	exec   Executor
	doc    *Document
	logger *log.Logger
}

// NewScriptTag creates a ScriptTag fetcher.
func NewScriptTag(client *Client, exec Executor, doc *Document, opts ...Option) *ScriptTag {
	s := newSettings(opts)
	return &ScriptTag{client: client, exec: exec, doc: doc, logger: s.logger}
}

// Fetch injects an element for url, unless one exists, and waits for it.
// The element keeps loading when ctx is cancelled; only the wait stops.
func (s *ScriptTag) Fetch(ctx context.Context, url string) error {
	el, created := s.doc.insert(url)
	if created {
		s.logger.Debug("script element injected", "url", url)
		go s.load(context.WithoutCancel(ctx), el)
	} else {
		s.logger.Debug("script element present", "url", url)
	}

	select {
	case <-el.done:
		return el.err
	case <-ctx.Done():
		return &FetchFailedError{URL: url, Cause: fmt.Errorf("waiting for script: %w", ctx.Err())}
	}
}

func (s *ScriptTag) load(ctx context.Context, el *Element) {
	src, err := s.client.Get(ctx, el.URL)
	if err == nil {
		if xerr := s.exec.Exec(ctx, el.URL, src); xerr != nil {
			err = execFailed(el.URL, xerr)
		}
	}
	if err != nil {
		s.logger.Warn("script element failed", "url", el.URL, "err", err)
	} else {
		s.logger.Debug("script element loaded", "url", el.URL, "bytes", len(src))
	}
	s.doc.complete(el, err)
}
