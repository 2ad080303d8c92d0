// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recordingExec struct {
	mu    sync.Mutex
	runs  []string
	fail  error
	delay time.Duration
}

func (r *recordingExec) Exec(_ context.Context, name string, src []byte) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, name+":"+string(src))
	return r.fail
}

func (r *recordingExec) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func newServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/remoteEntry.lua", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("entry"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func strategies(t *testing.T, srv *httptest.Server, exec Executor, doc *Document) map[Strategy]Fetcher {
	t.Helper()
	out := make(map[Strategy]Fetcher)
	for _, s := range Strategies() {
		f, err := New(s, NewClientFrom(srv.Client()), exec, doc)
		if err != nil {
			t.Fatalf("New(%s) error = %v", s, err)
		}
		out[s] = f
	}
	return out
}

func TestFetch_IdempotentAndCollapsed(t *testing.T) {
	t.Parallel()

	for _, strategy := range Strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			srv := newServer(t, &hits)
			exec := &recordingExec{}
			f := strategies(t, srv, exec, NewDocument())[strategy]
			url := srv.URL + "/remoteEntry.lua"

			var wg sync.WaitGroup
			errs := make([]error, 8)
			for i := range errs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = f.Fetch(context.Background(), url)
				}()
			}
			wg.Wait()
			for i, err := range errs {
				if err != nil {
					t.Fatalf("Fetch #%d error = %v", i, err)
				}
			}
			if err := f.Fetch(context.Background(), url); err != nil {
				t.Fatalf("repeat Fetch error = %v", err)
			}
			if n := hits.Load(); n != 1 {
				t.Errorf("server hits = %d, want 1", n)
			}
			if n := exec.count(); n != 1 {
				t.Errorf("executions = %d, want 1", n)
			}
		})
	}
}

func TestFetch_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	for strategy, f := range strategies(t, srv, &recordingExec{}, NewDocument()) {
		url := srv.URL + "/missing/remoteEntry.lua"
		err := f.Fetch(context.Background(), url)

		var ff *FetchFailedError
		if !errors.As(err, &ff) {
			t.Fatalf("%s: Fetch() error = %v, want *FetchFailedError", strategy, err)
		}
		if ff.URL != url || ff.Status != http.StatusNotFound {
			t.Errorf("%s: error carries %q / %d", strategy, ff.URL, ff.Status)
		}
		if !errors.Is(err, ErrFetchFailed) {
			t.Errorf("%s: error should match ErrFetchFailed", strategy)
		}
	}
}

func TestFetch_ExecutionFailureAllowsRetry(t *testing.T) {
	t.Parallel()

	for _, strategy := range Strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			srv := newServer(t, &hits)
			exec := &recordingExec{fail: errors.New("syntax error")}
			doc := NewDocument()
			f := strategies(t, srv, exec, doc)[strategy]
			url := srv.URL + "/remoteEntry.lua"

			err := f.Fetch(context.Background(), url)
			if !errors.Is(err, ErrExecution) || !errors.Is(err, ErrFetchFailed) {
				t.Fatalf("Fetch() error = %v, want execution failure", err)
			}
			if _, ok := doc.State(url); ok {
				t.Error("failed script should not stay in the document")
			}

			exec.mu.Lock()
			exec.fail = nil
			exec.mu.Unlock()
			if err := f.Fetch(context.Background(), url); err != nil {
				t.Fatalf("retry error = %v", err)
			}
			if !doc.Loaded(url) {
				t.Error("document should record the loaded script")
			}
			if n := hits.Load(); n != 2 {
				t.Errorf("server hits = %d, want 2", n)
			}
		})
	}
}

func TestScriptTag_CancelledWaitKeepsLoading(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := newServer(t, &hits)
	exec := &recordingExec{delay: 50 * time.Millisecond}
	doc := NewDocument()
	f := NewScriptTag(NewClientFrom(srv.Client()), exec, doc)
	url := srv.URL + "/remoteEntry.lua"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := f.Fetch(ctx, url); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Fetch() error = %v, want deadline exceeded", err)
	}

	if err := f.Fetch(context.Background(), url); err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
}

func TestDocumentScripts(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	doc.markLoaded("http://b/entry")
	doc.markLoaded("http://a/entry")
	doc.markLoaded("http://a/entry")

	got := doc.Scripts()
	if len(got) != 2 || got[0] != "http://a/entry" {
		t.Errorf("Scripts() = %v", got)
	}
	if st, _ := doc.State("http://a/entry"); st.String() != "loaded" {
		t.Errorf("State() = %s", st)
	}
	doc.Remove("http://a/entry")
	if doc.Loaded("http://a/entry") {
		t.Error("Remove() kept the element")
	}
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyScriptTag, false},
		{"script_tag", StrategyScriptTag, false},
		{"fetch_eval", StrategyFetchEval, false},
		{"eval", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) error = %v", tt.in, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidStrategy) {
			t.Errorf("ParseStrategy(%q) error = %v, want ErrInvalidStrategy", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
