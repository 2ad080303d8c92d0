// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// FetchEval retrieves script text and executes it in the calling goroutine.
type FetchEval struct {
	client *Client
	exec   Executor
	doc    *Document
	logger *log.Logger
	group  singleflight.Group
}

// NewFetchEval creates a FetchEval fetcher.
func NewFetchEval(client *Client, exec Executor, doc *Document, opts ...Option) *FetchEval {
	s := newSettings(opts)
	return &FetchEval{client: client, exec: exec, doc: doc, logger: s.logger}
}

// Fetch retrieves and executes url unless the document already has it.
func (f *FetchEval) Fetch(ctx context.Context, url string) error {
	if el := f.doc.element(url); el != nil {
		f.logger.Debug("script already present", "url", url)
		select {
		case <-el.done:
			if el.err == nil {
				return nil
			}
		case <-ctx.Done():
			return &FetchFailedError{URL: url, Cause: fmt.Errorf("waiting for script: %w", ctx.Err())}
		}
	}
	_, err, shared := f.group.Do(url, func() (any, error) {
		if f.doc.Loaded(url) {
			return nil, nil
		}
		src, err := f.client.Get(ctx, url)
		if err != nil {
			return nil, err
		}
		if err := f.exec.Exec(ctx, url, src); err != nil {
			return nil, execFailed(url, err)
		}
		f.doc.markLoaded(url)
		f.logger.Debug("script evaluated", "url", url, "bytes", len(src))
		return nil, nil
	})
	if shared {
		f.logger.Debug("joined in-flight fetch", "url", url)
	}
	return err
}
