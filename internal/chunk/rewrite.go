// SPDX-License-Identifier: MPL-2.0

package chunk

import (
	"context"
	"net/url"
	"strings"
)

type (
	// Predicate selects the URLs a rewrite applies to.
	Predicate func(url string) bool

	// Transform maps a selected URL to the one actually loaded.
	Transform func(url string) string

	// Rule moves chunk URLs onto the origin and base path a remote is
	// really served from.
	Rule struct {
		// Match lists substrings that select a URL. Empty selects every URL.
		Match []string
		// Origin is the scheme and host the remote is served from
		// (e.g., "http://localhost:3003").
		Origin string
		// BasePath is the path prefix of the remote's assets (e.g., "/llm_web/").
		BasePath string
		// ChunkDir is prepended to bare file names (e.g., "js/").
		ChunkDir string
	}
)

// Rewrite builds an interceptor that replaces every URL matching pred with
// transform(url). Other URLs pass through unchanged.
func Rewrite(pred Predicate, transform Transform) Interceptor {
	return InterceptorFunc(func(ctx context.Context, u string, next Loader) error {
		if pred(u) {
			u = transform(u)
		}
		return next.LoadChunk(ctx, u)
	})
}

// WithRewrite installs a rewrite on chain for the duration of fn and
// removes it when fn returns, fails or panics. The rewrite is not scoped to
// fn: any chunk loaded through chain while fn runs passes through it, so
// pred must select only the URLs the rewrite is meant for.
func WithRewrite[T any](
	ctx context.Context,
	chain *Chain,
	pred Predicate,
	transform Transform,
	fn func(context.Context) (T, error),
) (T, error) {
	release := chain.Install(Rewrite(pred, transform))
	defer release()
	return fn(ctx)
}

// Interceptor returns the rule as an interceptor.
func (r Rule) Interceptor() Interceptor {
	return Rewrite(r.Matches, r.Rewrite)
}

// Matches reports whether u is selected by the rule and not already served
// from the rule's origin.
func (r Rule) Matches(u string) bool {
	if r.Origin != "" && strings.HasPrefix(u, r.origin()+"/") {
		return false
	}
	if len(r.Match) == 0 {
		return true
	}
	for _, m := range r.Match {
		if m != "" && strings.Contains(u, m) {
			return true
		}
	}
	return false
}

// Rewrite returns u relocated onto the rule's origin and base path.
func (r Rule) Rewrite(u string) string {
	origin := r.origin()
	base := r.basePath()

	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}

	if parsed.IsAbs() {
		target, err := url.Parse(origin)
		if err == nil && parsed.Host == target.Host && parsed.Scheme == target.Scheme {
			return u
		}
		return origin + r.withBase(parsed.RequestURI())
	}

	if strings.HasPrefix(u, "/") {
		return origin + r.withBase(u)
	}

	if !strings.Contains(u, "/") && r.ChunkDir != "" {
		return origin + base + strings.Trim(r.ChunkDir, "/") + "/" + u
	}
	return origin + base + strings.TrimPrefix(u, "./")
}

func (r Rule) withBase(p string) string {
	base := r.basePath()
	if base == "/" || strings.HasPrefix(p, base) {
		return p
	}
	return strings.TrimSuffix(base, "/") + p
}

func (r Rule) origin() string {
	return strings.TrimSuffix(r.Origin, "/")
}

func (r Rule) basePath() string {
	b := strings.Trim(r.BasePath, "/")
	if b == "" {
		return "/"
	}
	return "/" + b + "/"
}
