// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"

	"fedhost/internal/chunk"
)

// DefaultBaseURL is the page URL relative chunk requests resolve against.
const DefaultBaseURL = "http://localhost:3000/"

var _ chunk.Loader = (*ChunkLoader)(nil)

// ChunkLoader is the base of the chunk chain: it resolves a chunk URL against
// the host page, retrieves it, and executes it in the caller's goroutine.
type ChunkLoader struct {
	client *Client
	exec   Executor
	doc    *Document
	base   *url.URL
	logger *log.Logger
}

// NewChunkLoader creates a ChunkLoader resolving relative URLs against baseURL.
func NewChunkLoader(client *Client, exec Executor, doc *Document, baseURL string, opts ...Option) (*ChunkLoader, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	s := newSettings(opts)
	return &ChunkLoader{client: client, exec: exec, doc: doc, base: base, logger: s.logger}, nil
}

// Resolve returns ref resolved against the base URL.
func (c *ChunkLoader) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", &FetchFailedError{URL: ref, Cause: err}
	}
	return c.base.ResolveReference(u).String(), nil
}

// LoadChunk loads the chunk at ref unless it is already in the document.
func (c *ChunkLoader) LoadChunk(ctx context.Context, ref string) error {
	u, err := c.Resolve(ref)
	if err != nil {
		return err
	}
	if c.doc.Loaded(u) {
		return nil
	}
	src, err := c.client.Get(ctx, u)
	if err != nil {
		c.logger.Warn("chunk failed", "url", u, "requested", ref, "err", err)
		return err
	}
	if err := c.exec.Exec(ctx, u, src); err != nil {
		return execFailed(u, err)
	}
	c.doc.markLoaded(u)
	c.logger.Debug("chunk loaded", "url", u, "requested", ref)
	return nil
}
