// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fedhost/internal/sharedscope"
)

type spyContainer struct {
	inits   atomic.Int32
	initErr error
	block   chan struct{}
}

func (s *spyContainer) Init(context.Context, *sharedscope.Scope) error {
	s.inits.Add(1)
	if s.block != nil {
		<-s.block
	}
	return s.initErr
}

func (s *spyContainer) Get(context.Context, string) (Factory, error) {
	return func(context.Context) (any, error) { return "module", nil }, nil
}

func TestRegistryFind_FirstCandidateWins(t *testing.T) {
	t.Parallel()

	ns := NewNamespace()
	legacy := &spyContainer{}
	declared := &spyContainer{}
	ns.Publish("legacy", legacy)
	ns.Publish("declared", declared)
	ns.Publish("not_a_container", 42)

	r := NewRegistry(ns, WithPollInterval(5*time.Millisecond))
	c, name, err := r.Find(context.Background(), []string{"missing", "not_a_container", "declared", "legacy"}, time.Second)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if c != declared || name != "declared" {
		t.Errorf("Find() = %v, %q; want declared", c, name)
	}
}

func TestRegistryFind_WaitsForLatePublish(t *testing.T) {
	t.Parallel()

	ns := NewNamespace()
	late := &spyContainer{}
	go func() {
		time.Sleep(30 * time.Millisecond)
		ns.Publish("late", late)
	}()

	r := NewRegistry(ns, WithPollInterval(5*time.Millisecond))
	c, _, err := r.Find(context.Background(), []string{"late"}, time.Second)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if c != late {
		t.Error("Find() returned the wrong container")
	}
}

func TestRegistryFind_TimeoutBound(t *testing.T) {
	t.Parallel()

	r := NewRegistry(NewNamespace())
	candidates := []string{"workflow", "vue_flow_app"}

	start := time.Now()
	_, _, err := r.Find(context.Background(), candidates, 200*time.Millisecond)
	elapsed := time.Since(start)

	var notFound *ContainerNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Find() error = %v, want *ContainerNotFoundError", err)
	}
	if !errors.Is(err, ErrContainerNotFound) {
		t.Error("ContainerNotFoundError should match ErrContainerNotFound")
	}
	if len(notFound.Candidates) != 2 || notFound.Timeout != 200*time.Millisecond {
		t.Errorf("error carries %v / %s", notFound.Candidates, notFound.Timeout)
	}
	if elapsed < 200*time.Millisecond || elapsed >= 250*time.Millisecond {
		t.Errorf("expected failure in [200ms, 250ms), took %s", elapsed)
	}
}

type closedGlobals struct{}

func (closedGlobals) Lookup(string) (any, bool) { return nil, false }

func (closedGlobals) Err() error { return errGlobalsGone }

var errGlobalsGone = errors.New("globals gone")

func TestRegistryFind_StopsOnFailingGlobals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		globals Globals
	}{
		{"direct", closedGlobals{}},
		{"chained", Chain(NewNamespace(), closedGlobals{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewRegistry(tt.globals, WithPollInterval(5*time.Millisecond))
			start := time.Now()
			_, _, err := r.Find(context.Background(), []string{"app"}, 10*time.Second)
			if !errors.Is(err, errGlobalsGone) {
				t.Fatalf("Find() error = %v, want %v", err, errGlobalsGone)
			}
			if errors.Is(err, ErrContainerNotFound) {
				t.Error("a failing source must not be reported as not found")
			}
			if elapsed := time.Since(start); elapsed > time.Second {
				t.Errorf("Find() took %s, want an immediate failure", elapsed)
			}
		})
	}
}

func TestRegistryFind_ChainPrefersFoundContainer(t *testing.T) {
	t.Parallel()

	ns := NewNamespace()
	c := &spyContainer{}
	ns.Publish("app", c)

	r := NewRegistry(Chain(ns, closedGlobals{}))
	got, _, err := r.Find(context.Background(), []string{"app"}, time.Second)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got != c {
		t.Error("Find() returned the wrong container")
	}
}

func TestEnsureInitialized_AtMostOnce(t *testing.T) {
	t.Parallel()

	r := NewRegistry(NewNamespace())
	scope := sharedscope.New("t")
	c := &spyContainer{}

	for i := range 5 {
		ran, err := r.EnsureInitialized(context.Background(), c, scope)
		if err != nil {
			t.Fatalf("EnsureInitialized() #%d error = %v", i, err)
		}
		if ran != (i == 0) {
			t.Errorf("EnsureInitialized() #%d ran = %v", i, ran)
		}
	}
	if n := c.inits.Load(); n != 1 {
		t.Errorf("init calls = %d, want 1", n)
	}
	if !r.Initialized(c) {
		t.Error("Initialized() = false after init")
	}
}

func TestEnsureInitialized_FailureAllowsRetry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(NewNamespace())
	c := &spyContainer{initErr: errors.New("scope mismatch")}

	if _, err := r.EnsureInitialized(context.Background(), c, nil); err == nil {
		t.Fatal("expected init error")
	}
	if r.Initialized(c) {
		t.Fatal("failed init must not mark the container initialized")
	}
	c.initErr = nil
	if _, err := r.EnsureInitialized(context.Background(), c, nil); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if n := c.inits.Load(); n != 2 {
		t.Errorf("init calls = %d, want 2", n)
	}
}

func TestEnsureInitialized_ConcurrentInit(t *testing.T) {
	t.Parallel()

	r := NewRegistry(NewNamespace())
	c := &spyContainer{block: make(chan struct{})}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := r.EnsureInitialized(context.Background(), c, nil); err != nil {
			t.Errorf("first init error = %v", err)
		}
	}()

	for c.inits.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if _, err := r.EnsureInitialized(context.Background(), c, nil); !errors.Is(err, ErrAlreadyInitializing) {
		t.Errorf("concurrent init error = %v, want ErrAlreadyInitializing", err)
	}
	close(c.block)
	wg.Wait()

	if n := c.inits.Load(); n != 1 {
		t.Errorf("init calls = %d, want 1", n)
	}
}

func TestInit_DoubleInitializationNeverReachesContainer(t *testing.T) {
	t.Parallel()

	r := NewRegistry(NewNamespace())
	c := &spyContainer{}

	if err := r.Init(context.Background(), c, nil); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := r.Init(context.Background(), c, nil); !errors.Is(err, ErrDoubleInitialization) {
		t.Fatalf("second Init() error = %v, want ErrDoubleInitialization", err)
	}
	if n := c.inits.Load(); n != 1 {
		t.Errorf("init calls = %d, want 1", n)
	}

	r.Forget(c)
	if r.Initialized(c) {
		t.Error("Forget() kept the init record")
	}
}

func TestPanicsAreRecovered(t *testing.T) {
	t.Parallel()

	r := NewRegistry(NewNamespace())
	c := &Funcs{
		InitFunc: func(context.Context, *sharedscope.Scope) error { panic("init exploded") },
		GetFunc: func(context.Context, string) (Factory, error) {
			panic("get exploded")
		},
	}
	if _, err := r.EnsureInitialized(context.Background(), c, nil); !errors.Is(err, ErrContainerPanic) {
		t.Errorf("init panic error = %v", err)
	}
	if _, err := SafeGet(context.Background(), c, "./App"); !errors.Is(err, ErrContainerPanic) {
		t.Errorf("get panic error = %v", err)
	}
	_, err := SafeCall(context.Background(), func(context.Context) (any, error) { panic("factory exploded") })
	if !errors.Is(err, ErrContainerPanic) {
		t.Errorf("factory panic error = %v", err)
	}
}

func TestExposes(t *testing.T) {
	t.Parallel()

	c := Exposes(map[string]Factory{
		"./App": func(context.Context) (any, error) { return "app", nil },
	})
	f, err := c.Get(context.Background(), "./App")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v, _ := f(context.Background()); v != "app" {
		t.Errorf("factory = %v", v)
	}
	if _, err := c.Get(context.Background(), "./Missing"); !errors.Is(err, ErrModuleNotExposed) {
		t.Errorf("Get(missing) error = %v", err)
	}
	if err := c.Init(context.Background(), nil); err != nil {
		t.Errorf("Init() without InitFunc error = %v", err)
	}
}
