// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second
	// MaxScriptSize caps the bytes read from one response.
	MaxScriptSize = 32 << 20

	userAgent = "fedhost"
)

type (
	// Client performs the HTTP requests behind every fetch.
	Client struct {
		http *http.Client
	}

	// Response is a fully read HTTP response.
	Response struct {
		Status   int
		Header   http.Header
		Body     []byte
		Duration time.Duration
	}
)

// NewClient returns a Client with an instrumented transport. A zero timeout
// selects DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// NewClientFrom wraps an existing http.Client, e.g. one returned by
// httptest.Server.Client.
func NewClientFrom(c *http.Client) *Client {
	return &Client{http: c}
}

// Get returns the body of url, failing with *FetchFailedError on transport
// errors and non-2xx responses.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return nil, &FetchFailedError{URL: url, Status: resp.Status}
	}
	return resp.Body, nil
}

// Do sends a request and reads the whole response. Non-2xx statuses are not
// errors here.
func (c *Client) Do(ctx context.Context, method, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, &FetchFailedError{URL: url, Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchFailedError{URL: url, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxScriptSize+1))
	if err != nil {
		return nil, &FetchFailedError{URL: url, Status: resp.StatusCode, Cause: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > MaxScriptSize {
		return nil, &FetchFailedError{URL: url, Status: resp.StatusCode, Cause: fmt.Errorf("response exceeds %d bytes", MaxScriptSize)}
	}
	return &Response{
		Status:   resp.StatusCode,
		Header:   resp.Header,
		Body:     body,
		Duration: time.Since(start),
	}, nil
}
