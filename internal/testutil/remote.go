// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// WorkflowEntry publishes the "workflow" container exposing "./App" and
// "./Panel".
const WorkflowEntry = `-- remote entry for the workflow editor
workflow = {
  init = function(scope) end,
  get = function(path)
    if path == "./App" then
      return function() return { default = { id = "App" } } end
    end
    if path == "./Panel" then
      return function() return { id = "Panel" } end
    end
  end,
}
`

// Remote is an httptest server hosting remote entries. Paths not registered
// answer 404.
type Remote struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]route
	hits   map[string]int
}

type route struct {
	status int
	body   string
}

// NewRemote starts a Remote that is closed when the test finishes.
func NewRemote(t testing.TB) *Remote {
	t.Helper()
	r := &Remote{routes: make(map[string]route), hits: make(map[string]int)}
	r.Server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.Close)
	return r
}

// Serve answers path with body and status 200.
func (r *Remote) Serve(path, body string) *Remote {
	return r.ServeStatus(path, http.StatusOK, body)
}

// ServeStatus answers path with status and body.
func (r *Remote) ServeStatus(path string, status int, body string) *Remote {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[path] = route{status: status, body: body}
	return r
}

// URLFor returns the absolute URL of path.
func (r *Remote) URLFor(path string) string {
	return r.URL + path
}

// Hits returns how many requests path received.
func (r *Remote) Hits(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[path]
}

func (r *Remote) serve(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	rt, ok := r.routes[req.URL.Path]
	r.hits[req.URL.Path]++
	r.mu.Unlock()

	if !ok {
		http.NotFound(w, req)
		return
	}
	w.WriteHeader(rt.status)
	if req.Method != http.MethodHead {
		_, _ = w.Write([]byte(rt.body))
	}
}
