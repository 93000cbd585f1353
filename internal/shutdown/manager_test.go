package shutdown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeTracker struct {
	n atomic.Int32
}

func (f *fakeTracker) InFlight() int {
	return int(f.n.Load())
}

func testConfig() Config {
	return Config{Timeout: 2 * time.Second, PollInterval: 10 * time.Millisecond}
}

func TestManager_NewManager(t *testing.T) {
	m := NewManager(testConfig(), nil, zerolog.Nop())

	if m.GetState() != StateRunning {
		t.Errorf("state = %q, want running", m.GetState())
	}
	if !m.AcceptingMutations() {
		t.Error("new manager should accept mutations")
	}

	status := m.GetStatus()
	if status.StartedAt != nil {
		t.Error("StartedAt should be nil before shutdown")
	}
	if status.Message == "" {
		t.Error("expected a status message")
	}
}

func TestManager_ShutdownRunsHooksInOrder(t *testing.T) {
	m := NewManager(testConfig(), &fakeTracker{}, zerolog.Nop())

	var (
		mu    sync.Mutex
		order []string
	)
	for _, name := range []string{"http", "scheduler", "feed"} {
		m.OnShutdown(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	want := []string{"http", "scheduler", "feed"}
	if len(order) != len(want) {
		t.Fatalf("hooks ran %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("hook %d = %q, want %q", i, order[i], want[i])
		}
	}

	if m.GetState() != StateComplete {
		t.Errorf("state = %q, want complete", m.GetState())
	}
	if m.AcceptingMutations() {
		t.Error("manager should not accept mutations after shutdown")
	}
	select {
	case <-m.Done():
	default:
		t.Error("Done() should be closed after shutdown")
	}
}

func TestManager_WaitsForInFlightMutations(t *testing.T) {
	tracker := &fakeTracker{}
	tracker.n.Store(1)
	m := NewManager(testConfig(), tracker, zerolog.Nop())

	var hookRan atomic.Bool
	m.OnShutdown("service", func(context.Context) error {
		if tracker.InFlight() != 0 {
			t.Error("hook ran while a mutation was in flight")
		}
		hookRan.Store(true)
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- m.Shutdown(context.Background()) }()

	// draining: mutations are refused while the in-flight one finishes
	deadline := time.Now().Add(time.Second)
	for m.GetState() != StateDraining && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.GetState() != StateDraining {
		t.Fatalf("state = %q, want draining", m.GetState())
	}
	if m.AcceptingMutations() {
		t.Error("draining manager should not accept mutations")
	}
	if got := m.GetStatus().InFlightMutations; got != 1 {
		t.Errorf("InFlightMutations = %d, want 1", got)
	}

	tracker.n.Store(0)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Shutdown() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("shutdown did not finish after the mutation completed")
	}
	if !hookRan.Load() {
		t.Error("hook did not run")
	}
}

func TestManager_TimeoutWithMutationsInFlight(t *testing.T) {
	tracker := &fakeTracker{}
	tracker.n.Store(2)
	m := NewManager(Config{Timeout: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond}, tracker, zerolog.Nop())

	var hookRan atomic.Bool
	m.OnShutdown("service", func(context.Context) error {
		hookRan.Store(true)
		return nil
	})

	start := time.Now()
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("shutdown took %v, want it bounded by the timeout", elapsed)
	}
	if !hookRan.Load() {
		t.Error("hooks should still run after the drain deadline")
	}
}

func TestManager_HookErrorsAreJoined(t *testing.T) {
	m := NewManager(testConfig(), nil, zerolog.Nop())

	errHTTP := errors.New("listener stuck")
	var laterRan bool
	m.OnShutdown("http", func(context.Context) error { return errHTTP })
	m.OnShutdown("feed", func(context.Context) error {
		laterRan = true
		return nil
	})

	err := m.Shutdown(context.Background())
	if !errors.Is(err, errHTTP) {
		t.Fatalf("Shutdown() error = %v, want %v", err, errHTTP)
	}
	if !laterRan {
		t.Error("a failing hook must not skip later hooks")
	}
}

func TestManager_ShutdownOnce(t *testing.T) {
	m := NewManager(testConfig(), nil, zerolog.Nop())

	var calls atomic.Int32
	m.OnShutdown("count", func(context.Context) error {
		calls.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Shutdown(context.Background())
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("hook ran %d times, want 1", got)
	}
}

func TestManager_StatusDuringShutdown(t *testing.T) {
	m := NewManager(testConfig(), nil, zerolog.Nop())

	release := make(chan struct{})
	m.OnShutdown("block", func(context.Context) error {
		<-release
		return nil
	})

	go func() { _ = m.Shutdown(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for m.GetState() != StateStopping && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	status := m.GetStatus()
	if status.State != StateStopping {
		t.Fatalf("state = %q, want stopping", status.State)
	}
	if status.StartedAt == nil {
		t.Error("StartedAt should be set during shutdown")
	}
	if status.TimeRemaining <= 0 {
		t.Error("TimeRemaining should be positive during shutdown")
	}

	close(release)
	<-m.Done()
}
