// SPDX-License-Identifier: MPL-2.0

package diagnose

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// probeConcurrency bounds the number of simultaneous probes.
const probeConcurrency = 8

type (
	// Target names a URL to probe.
	Target struct {
		Name string
		URL  string
	}

	// ProbeResult is the availability of one target.
	ProbeResult struct {
		Name         string
		URL          string
		Available    bool
		Status       int
		Error        string
		ResponseTime time.Duration
	}
)

// Probe sends a HEAD request to url.
func (i *Inspector) Probe(ctx context.Context, name, url string) ProbeResult {
	res := ProbeResult{Name: name, URL: url}
	resp, err := i.client.Do(ctx, http.MethodHead, url)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Status = resp.Status
	res.ResponseTime = resp.Duration
	res.Available = ok(resp.Status)
	if !res.Available {
		res.Error = fmt.Sprintf("HTTP %d: %s", resp.Status, http.StatusText(resp.Status))
	}
	return res
}

// ProbeAll probes every target concurrently. Results keep the order of targets.
func (i *Inspector) ProbeAll(ctx context.Context, targets []Target) []ProbeResult {
	results := make([]ProbeResult, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for idx, t := range targets {
		g.Go(func() error {
			results[idx] = i.Probe(ctx, t.Name, t.URL)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
