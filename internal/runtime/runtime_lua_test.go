// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Shopify/go-lua"
	"github.com/charmbracelet/log"

	"fedhost/internal/chunk"
	"fedhost/internal/container"
	"fedhost/internal/sharedscope"
)

const workflowEntry = `
local inits = 0
workflow = {
  init = function(scope)
    inits = inits + 1
    init_count = inits
    scope:provide("workflow-utils", "1.0.0", { format = function(s) return "[" .. s .. "]" end })
  end,
  get = function(path)
    if path == "./App" then
      return function() return { default = { id = "App" } } end
    end
    return nil
  end,
}
`

func newEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()
	e := New(opts...)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func mustExec(t *testing.T, e *Env, src string) {
	t.Helper()
	if err := e.Exec(context.Background(), "test.lua", []byte(src)); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
}

func TestExec_ScriptErrors(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	err := e.Exec(context.Background(), "broken.lua", []byte("this is not lua"))
	if !errors.Is(err, ErrScript) || !strings.Contains(err.Error(), "broken.lua") {
		t.Errorf("syntax error = %v", err)
	}
	err = e.Exec(context.Background(), "raise.lua", []byte(`error("boom")`))
	if !errors.Is(err, ErrScript) || !strings.Contains(err.Error(), "boom") {
		t.Errorf("runtime error = %v", err)
	}
	mustExec(t, e, "x = 1")

	_ = e.Close()
	if err := e.Exec(context.Background(), "late.lua", []byte("x = 2")); !errors.Is(err, ErrClosed) {
		t.Errorf("Exec() after Close error = %v", err)
	}
}

func TestLookup_ContainerIdentity(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	mustExec(t, e, workflowEntry+"\nplain = { answer = 42 }\nnumber = 7")

	a, ok := e.Lookup("workflow")
	if !ok {
		t.Fatal("Lookup(workflow) not found")
	}
	b, _ := e.Lookup("workflow")
	ca, isContainer := a.(container.Container)
	if !isContainer {
		t.Fatalf("Lookup(workflow) = %T, want container.Container", a)
	}
	if ca != b.(container.Container) {
		t.Error("same table should yield the same container")
	}

	if v, ok := e.Lookup("plain"); !ok || v != (Foreign{Name: "plain", Type: "table"}) {
		t.Errorf("Lookup(plain) = %v, %v", v, ok)
	}
	if v, _ := e.Lookup("number"); v != (Foreign{Name: "number", Type: "number"}) {
		t.Errorf("Lookup(number) = %v", v)
	}
	if _, ok := e.Lookup("missing"); ok {
		t.Error("Lookup(missing) should not resolve")
	}

	mustExec(t, e, workflowEntry)
	c, _ := e.Lookup("workflow")
	if c == a {
		t.Error("a republished table is a new container")
	}
}

func TestLuaContainer_InitGetFactory(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	mustExec(t, e, workflowEntry)
	v, _ := e.Lookup("workflow")
	c := v.(container.Container)
	scope := sharedscope.New("t")
	ctx := context.Background()

	if err := c.Init(ctx, scope); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if count, _ := e.Global(ctx, "init_count"); count != 1 {
		t.Errorf("init_count = %v, want 1", count)
	}
	if !scope.Has("workflow-utils") {
		t.Fatal("init should have provided workflow-utils")
	}

	factory, err := c.Get(ctx, "./App")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	module, err := factory(ctx)
	if err != nil {
		t.Fatalf("factory error = %v", err)
	}
	m, ok := module.(map[string]any)
	if !ok {
		t.Fatalf("module = %T", module)
	}
	def, _ := m["default"].(map[string]any)
	if def["id"] != "App" {
		t.Errorf("module.default = %v", m["default"])
	}

	if _, err := c.Get(ctx, "./Missing"); !errors.Is(err, container.ErrModuleNotExposed) {
		t.Errorf("Get(missing) error = %v", err)
	}
}

func TestScope_SharedTableKeepsIdentity(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	scope := sharedscope.New("t")
	_, _ = scope.Provide(sharedscope.Share{Name: "host-lib", Version: "2.3.0", Singleton: true, Value: map[string]any{"name": "host"}})

	mustExec(t, e, workflowEntry+`
consumer = {
  init = function(scope)
    local utils = scope:get("workflow-utils", "^1.0.0")
    formatted = utils.format("ok")
    same = utils == scope:get("workflow-utils")
    host_name = scope:get("host-lib").name
    has_missing = scope:has("missing")
    versions = scope:versions("host-lib")
  end,
  get = function() return nil end,
}`)

	for _, name := range []string{"workflow", "consumer"} {
		v, _ := e.Lookup(name)
		if err := v.(container.Container).Init(ctx, scope); err != nil {
			t.Fatalf("%s.Init() error = %v", name, err)
		}
	}

	want := map[string]any{
		"formatted":   "[ok]",
		"same":        true,
		"host_name":   "host",
		"has_missing": false,
		"versions":    []any{"2.3.0"},
	}
	for name, w := range want {
		got, err := e.Global(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		if gs, ok := got.([]any); ok {
			if len(gs) != 1 || gs[0] != "2.3.0" {
				t.Errorf("%s = %v, want %v", name, got, w)
			}
			continue
		}
		if got != w {
			t.Errorf("%s = %v, want %v", name, got, w)
		}
	}
}

func TestScope_LazyFactoryReentersVM(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	mustExec(t, e, `function make_lib() return { made_by = "lua" } end`)

	maker, err := e.Global(ctx, "make_lib")
	if err != nil {
		t.Fatal(err)
	}
	scope := sharedscope.New("t")
	_, _ = scope.Provide(sharedscope.Share{Name: "lazy", Version: "1.0.0", Factory: func(ctx context.Context) (any, error) {
		out, err := maker.(*Ref).Call(ctx)
		if err != nil {
			return nil, err
		}
		return out[0], nil
	}})

	mustExec(t, e, `
remote = {
  init = function(scope) made_by = scope:get("lazy").made_by end,
  get = function() return nil end,
}`)
	v, _ := e.Lookup("remote")

	done := make(chan error, 1)
	go func() { done <- v.(container.Container).Init(ctx, scope) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Init() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Init() deadlocked")
	}
	if got, _ := e.Global(ctx, "made_by"); got != "lua" {
		t.Errorf("made_by = %v", got)
	}
}

func TestSetTimeout_PublishesLater(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	mustExec(t, e, `
set_timeout(function()
  late = { init = function() end, get = function() return nil end }
end, 30)
local cancelled = set_timeout(function() never = true end, 10)
clear_timeout(cancelled)
`)

	if _, ok := e.Lookup("late"); ok {
		t.Fatal("container should not exist before the timer fires")
	}
	r := container.NewRegistry(e, container.WithPollInterval(5*time.Millisecond))
	c, name, err := r.Find(context.Background(), []string{"late"}, time.Second)
	if err != nil || c == nil || name != "late" {
		t.Fatalf("Find() = %v, %q, %v", c, name, err)
	}
	time.Sleep(20 * time.Millisecond)
	if v, _ := e.Global(context.Background(), "never"); v != nil {
		t.Error("cleared timer fired")
	}
	if n := e.PendingTimers(); n != 0 {
		t.Errorf("PendingTimers() = %d", n)
	}
}

type recordingChunks struct {
	mu   sync.Mutex
	urls []string
	env  *Env
}

func (r *recordingChunks) LoadChunk(ctx context.Context, url string) error {
	r.mu.Lock()
	r.urls = append(r.urls, url)
	r.mu.Unlock()
	if strings.HasSuffix(url, "missing.lua") {
		return errors.New("404")
	}
	return r.env.Exec(ctx, url, []byte(`chunk_loaded = "`+url+`"`))
}

func TestLoadChunk_GoesThroughChain(t *testing.T) {
	t.Parallel()

	rec := &recordingChunks{}
	chain := chunk.NewChain(rec)
	e := newEnv(t, WithChunkLoader(chain))
	rec.env = e

	rule := chunk.Rule{Match: []string{"llm_web"}, Origin: "http://correct-origin", BasePath: "/llm_web/"}
	release := chain.Install(rule.Interceptor())
	mustExec(t, e, `load_chunk("/llm_web/js/x.js")`)
	release()

	got, _ := e.Global(context.Background(), "chunk_loaded")
	if got != "http://correct-origin/llm_web/js/x.js" {
		t.Errorf("chunk_loaded = %v", got)
	}

	err := e.Exec(context.Background(), "entry.lua", []byte(`load_chunk("js/missing.lua")`))
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("failed chunk error = %v", err)
	}
}

func TestPrintWritesToLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := newEnv(t, WithLogger(log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})))
	mustExec(t, e, `print("hello", 42, true, nil)`)
	if !strings.Contains(buf.String(), "hello 42 true nil") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestGlobalsRoundTrip(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	double := Func(func(_ context.Context, args []any) ([]any, error) {
		n, _ := args[0].(int)
		return []any{n * 2}, nil
	})
	err := e.SetGlobal(ctx, "host", map[string]any{
		"base_url":      "http://localhost:3000/",
		"is_production": false,
		"double":        double,
		"tags":          []string{"a", "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	mustExec(t, e, `result = host.double(21) .. host.base_url .. #host.tags`)
	if got, _ := e.Global(ctx, "result"); got != "42http://localhost:3000/2" {
		t.Errorf("result = %v", got)
	}

	mustExec(t, e, `function add(a, b) return a + b, "sum" end`)
	add, _ := e.Global(ctx, "add")
	ref := add.(*Ref)
	out, err := ref.Call(ctx, 1, 2.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0] != 3.5 || out[1] != "sum" {
		t.Errorf("Call() = %v", out)
	}
	if !ref.IsFunction() || !strings.Contains(ref.String(), "function") {
		t.Errorf("ref = %s", ref)
	}
	if err := ref.Release(ctx); err != nil {
		t.Fatal(err)
	}
}

func pinnedRefs(t *testing.T, e *Env) int {
	t.Helper()
	n := 0
	err := e.do(context.Background(), func(_ context.Context, l *lua.State) error {
		l.PushNil()
		for l.Next(lua.RegistryIndex) {
			if l.TypeOf(-2) == lua.TypeString {
				if k, _ := l.ToString(-2); strings.HasPrefix(k, refPrefix) && !l.IsNil(-1) {
					n++
				}
			}
			l.Pop(1)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("counting pinned values: %v", err)
	}
	return n
}

func TestFactory_ReleasesPinAfterCall(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	mustExec(t, e, workflowEntry)
	v, _ := e.Lookup("workflow")
	c := v.(container.Container)
	ctx := context.Background()
	base := pinnedRefs(t, e)

	for i := range 50 {
		factory, err := c.Get(ctx, "./App")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if _, err := factory(ctx); err != nil {
			t.Fatalf("factory error = %v", err)
		}
		if i == 0 {
			// a second call re-fetches the factory instead of failing
			if m, err := factory(ctx); err != nil || m == nil {
				t.Fatalf("second factory call = %v, %v", m, err)
			}
		}
	}
	if n := pinnedRefs(t, e); n != base {
		t.Errorf("pinned values = %d after 50 resolves, want %d", n, base)
	}
}

func TestFactory_CyclicModuleResolvesPromptly(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	mustExec(t, e, `
cyclic = {
  init = function() end,
  get = function(path)
    return function()
      local App = { name = "App" }
      App.__index = App
      App.parent = App
      local shared = { id = "shared" }
      local node = App
      for i = 1, 40 do
        node.left = { depth = i, shared = shared }
        node.right = node.left
        node = node.left
      end
      return App
    end
  end,
}
`)
	v, _ := e.Lookup("cyclic")
	c := v.(container.Container)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	factory, err := c.Get(ctx, "./App")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	done := make(chan any, 1)
	go func() {
		m, err := factory(ctx)
		if err != nil {
			t.Errorf("factory error = %v", err)
		}
		done <- m
	}()

	var module any
	select {
	case module = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("converting a cyclic module did not finish")
	}
	m, ok := module.(map[string]any)
	if !ok {
		t.Fatalf("module = %T", module)
	}
	if m["name"] != "App" {
		t.Errorf("name = %v", m["name"])
	}
	for _, key := range []string{"__index", "parent"} {
		if _, ok := m[key].(*Ref); !ok {
			t.Errorf("%s = %T, want *Ref for a back reference", key, m[key])
		}
	}
	left, _ := m["left"].(map[string]any)
	if left == nil || left["depth"] != 1 {
		t.Fatalf("left = %v", m["left"])
	}
	if _, ok := left["shared"].(map[string]any); !ok {
		t.Errorf("shared = %T, want a converted table", left["shared"])
	}
}

func TestLookup_ClosedEnvFailsFind(t *testing.T) {
	t.Parallel()

	e := New()
	mustExec(t, e, workflowEntry)
	if err := e.Err(); err != nil {
		t.Fatalf("Err() before Close = %v", err)
	}
	_ = e.Close()

	if v, ok := e.Lookup("workflow"); ok || v != nil {
		t.Errorf("Lookup() after Close = %v, %v", v, ok)
	}
	r := container.NewRegistry(container.Chain(e, container.NewNamespace()), container.WithPollInterval(5*time.Millisecond))
	start := time.Now()
	_, _, err := r.Find(context.Background(), []string{"workflow"}, 10*time.Second)
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Find() error = %v, want ErrClosed", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Find() took %s on a closed env", elapsed)
	}
}
