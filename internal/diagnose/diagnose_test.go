// SPDX-License-Identifier: MPL-2.0

package diagnose

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fedhost/internal/fetch"
)

const luaEntry = `-- remote entry for the workflow editor
local modules = {
  ["./App"] = function() return { default = { id = "App" } } end,
  ["./Panel"] = function() return { id = "Panel" } end,
}

workflow = {
  init = function(scope) end,
  get = function(path) return modules[path] end,
}
`

const jsEntry = `var vue_flow_app;(()=>{"use strict";var __webpack_require__={};
var moduleMap={"./FlowEditor":()=>Promise.resolve(),"./App":()=>Promise.resolve()};
var get=(module)=>moduleMap[module];var init=(shareScope)=>{};
__webpack_require__.d(exports,{get:()=>get,init:()=>init});vue_flow_app=exports;})();`

func TestAnalyze(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		container  string
		exports    string
		looksLike  bool
		markers    bool
		issueMatch string
	}{
		{"lua entry", 200, luaEntry, "workflow", "./App,./Panel", true, false, ""},
		{"js entry", 200, jsEntry, "vue_flow_app", "./FlowEditor,./App", true, true, ""},
		{"too short", 200, "ok", "", "", false, false, "only 2 bytes"},
		{"not found", 404, "", "", "", false, false, "HTTP 404"},
		{"html page", 200, strings.Repeat("<p>placeholder page</p>", 10), "", "", false, false, "no container name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := Analyze("http://h/remoteEntry", tt.status, []byte(tt.body))
			if r.ContainerName != tt.container {
				t.Errorf("ContainerName = %q, want %q", r.ContainerName, tt.container)
			}
			if got := strings.Join(r.DeclaredExports, ","); got != tt.exports {
				t.Errorf("DeclaredExports = %q, want %q", got, tt.exports)
			}
			if r.LooksLikeModuleContainer != tt.looksLike {
				t.Errorf("LooksLikeModuleContainer = %v", r.LooksLikeModuleContainer)
			}
			if r.HasRuntimeMarkers != tt.markers {
				t.Errorf("HasRuntimeMarkers = %v", r.HasRuntimeMarkers)
			}
			issues := strings.Join(r.Issues, "; ")
			if tt.issueMatch == "" && issues != "" {
				t.Errorf("unexpected issues: %s", issues)
			}
			if tt.issueMatch != "" && !strings.Contains(issues, tt.issueMatch) {
				t.Errorf("issues %q should mention %q", issues, tt.issueMatch)
			}
			if r.Reachable != (tt.status == 200) {
				t.Errorf("Reachable = %v", r.Reachable)
			}
		})
	}
}

func newRemote(t *testing.T, withEntry bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	if withEntry {
		mux.HandleFunc("/app/remoteEntry.lua", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(luaEntry))
		})
	}
	mux.HandleFunc("/app/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><head><script src="remoteEntry.lua"></script><script src="/js/vendor.js"></script></head></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckStatus(t *testing.T) {
	t.Parallel()

	srv := newRemote(t, true)
	in := NewInspector(fetch.NewClientFrom(srv.Client()))

	for _, base := range []string{srv.URL + "/app", srv.URL + "/app/", srv.URL + "/app/remoteEntry.lua"} {
		r := in.CheckStatus(context.Background(), base)
		if r.EntryURL != srv.URL+"/app/remoteEntry.lua" || r.IndexURL != srv.URL+"/app/" {
			t.Errorf("CheckStatus(%q) urls = %q, %q", base, r.EntryURL, r.IndexURL)
		}
		if !r.EntryOK || !r.IndexOK || !r.AppRunning || !r.IndexReferencesEntry {
			t.Errorf("CheckStatus(%q) = %+v", base, r)
		}
		if len(r.IndexScripts) != 2 || r.IndexScripts[1] != srv.URL+"/js/vendor.js" {
			t.Errorf("IndexScripts = %v", r.IndexScripts)
		}
		if len(r.Suggestions) != 0 {
			t.Errorf("Suggestions = %v", r.Suggestions)
		}
	}
}

func TestCheckStatus_Suggestions(t *testing.T) {
	t.Parallel()

	srv := newRemote(t, false)
	in := NewInspector(fetch.NewClientFrom(srv.Client()))

	r := in.CheckStatus(context.Background(), srv.URL+"/app")
	if r.EntryOK || !r.IndexOK || r.EntryStatus != 404 {
		t.Fatalf("CheckStatus() = %+v", r)
	}
	if !strings.Contains(strings.Join(r.Suggestions, "\n"), "entry is not") {
		t.Errorf("Suggestions = %v", r.Suggestions)
	}

	r = in.CheckStatus(context.Background(), srv.URL+"/elsewhere")
	if r.EntryOK || r.IndexOK {
		t.Fatalf("CheckStatus(elsewhere) = %+v", r)
	}
	if !strings.Contains(strings.Join(r.Suggestions, "\n"), "may not be running") {
		t.Errorf("Suggestions = %v", r.Suggestions)
	}
}

func TestProbeAll(t *testing.T) {
	t.Parallel()

	srv := newRemote(t, true)
	in := NewInspector(fetch.NewClientFrom(srv.Client()))

	results := in.ProbeAll(context.Background(), []Target{
		{Name: "workflow", URL: srv.URL + "/app/remoteEntry.lua"},
		{Name: "missing", URL: srv.URL + "/nope/remoteEntry.lua"},
		{Name: "bad", URL: "http://127.0.0.1:1/remoteEntry.lua"},
	})
	if len(results) != 3 {
		t.Fatalf("ProbeAll() returned %d results", len(results))
	}
	if r := results[0]; !r.Available || r.Status != 200 || r.Name != "workflow" {
		t.Errorf("workflow = %+v", r)
	}
	if r := results[1]; r.Available || r.Status != 404 || !strings.Contains(r.Error, "404") {
		t.Errorf("missing = %+v", r)
	}
	if r := results[2]; r.Available || r.Error == "" {
		t.Errorf("bad = %+v", r)
	}
}

func TestDiagnoseMarkdown(t *testing.T) {
	t.Parallel()

	srv := newRemote(t, true)
	in := NewInspector(fetch.NewClientFrom(srv.Client()))

	d := in.Diagnose(context.Background(), srv.URL+"/app")
	if d.Entry == nil || d.Entry.ContainerName != "workflow" {
		t.Fatalf("Diagnose() entry = %+v", d.Entry)
	}
	if len(d.Fixes) != 0 {
		t.Errorf("Fixes = %v", d.Fixes)
	}
	md := d.Markdown()
	for _, want := range []string{"# Remote diagnosis", "Container name: workflow", "`./App`, `./Panel`", "| Index loads entry | yes |"} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() missing %q:\n%s", want, md)
		}
	}
	out, err := d.Render("notty")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "workflow") {
		t.Errorf("Render() output lacks container name:\n%s", out)
	}

	broken := NewInspector(fetch.NewClientFrom(srv.Client())).Diagnose(context.Background(), srv.URL+"/nowhere")
	if broken.Entry != nil {
		t.Error("unreachable entry should not be analyzed")
	}
}

func TestInspectEntry_NetworkError(t *testing.T) {
	t.Parallel()

	in := NewInspector(fetch.NewClient(0))
	r := in.InspectEntry(context.Background(), "http://127.0.0.1:1/remoteEntry.lua")
	if r.Reachable || len(r.Issues) == 0 {
		t.Errorf("InspectEntry() = %+v", r)
	}
}
