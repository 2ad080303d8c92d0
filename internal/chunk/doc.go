// SPDX-License-Identifier: MPL-2.0

// Package chunk routes the secondary assets a loaded remote requests on
// demand through an interceptor chain.
//
// A remote built for one base path but served from another asks for its
// code-split chunks at the wrong location. Instead of patching the runtime's
// loading function in place, callers Install an Interceptor on the Chain for
// the duration of a load and release it afterwards; WithRewrite wraps that
// acquire/release pair around a function. Rule describes the usual rewrite
// (move a URL onto the origin and base path the remote is really served
// from) as configuration.
package chunk
