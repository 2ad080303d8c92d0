// SPDX-License-Identifier: MPL-2.0

// Package fetch retrieves remote scripts and executes them in the host runtime.
//
// Two strategies are provided. ScriptTag models a browser script element: the
// URL is recorded in a Document, loaded asynchronously, and every caller
// waits on the same element's completion signal. FetchEval retrieves the
// source and executes it in the calling goroutine, collapsing concurrent
// requests for one URL. Both treat a URL already loaded into the Document as
// done, so an entry never registers its container twice.
package fetch
