package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sori-ai/sori/internal/memory"
)

func newTestRegistry(t *testing.T, profiles memory.ProfileStore, cfg Config) *Registry {
	t.Helper()
	r, err := NewRegistry(profiles, cfg)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func intPtr(v int) *int { return &v }

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero value", Config{}, false},
		{"none", Config{Eviction: EvictNone}, false},
		{"ttl ok", Config{Eviction: EvictTTL, MaxIdle: time.Minute}, false},
		{"ttl without idle", Config{Eviction: EvictTTL}, true},
		{"lru ok", Config{Eviction: EvictLRU, MaxSessions: 2}, false},
		{"lru without cap", Config{Eviction: EvictLRU}, true},
		{"unknown", Config{Eviction: "fifo"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_GetOrCreate_Concurrent(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil, Config{})

	const n = 50
	states := make([]*State, n)
	var created atomic.Int32
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, isNew := r.GetOrCreate("u1")
			states[i] = st
			if isNew {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := created.Load(); got != 1 {
		t.Errorf("created = %d, want 1", got)
	}
	for i, st := range states {
		if st != states[0] {
			t.Fatalf("states[%d] differs from states[0]", i)
		}
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestTurnLock_SameSession_Serial(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil, Config{})

	var counter atomic.Int32
	var maxConcurrent atomic.Int32
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := r.AcquireTurnLock(context.Background(), "u1")
			if err != nil {
				t.Errorf("AcquireTurnLock: %v", err)
				return
			}
			defer release()

			cur := counter.Add(1)
			for {
				old := maxConcurrent.Load()
				if cur <= old || maxConcurrent.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			counter.Add(-1)
		}()
	}
	wg.Wait()

	if peak := maxConcurrent.Load(); peak != 1 {
		t.Errorf("max concurrent turns = %d, want 1", peak)
	}
}

func TestTurnLock_DifferentSessions_Parallel(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil, Config{})

	releaseA, err := r.AcquireTurnLock(context.Background(), "a")
	if err != nil {
		t.Fatalf("AcquireTurnLock(a): %v", err)
	}
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release, err := r.AcquireTurnLock(context.Background(), "b")
		if err == nil {
			release()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session b blocked by session a")
	}
}

func TestTurnLock_FIFO(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil, Config{})
	ctx := context.Background()

	first, err := r.AcquireTurnLock(ctx, "u1")
	if err != nil {
		t.Fatalf("AcquireTurnLock: %v", err)
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := r.AcquireTurnLock(ctx, "u1")
			if err != nil {
				t.Errorf("AcquireTurnLock: %v", err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			release()
		}()
		// Wait until the goroutine is queued before starting the next.
		waitForRefs(t, r, "u1", i+2)
	}

	first()
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func waitForRefs(t *testing.T, r *Registry, id string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		refs := r.states[id].refs
		r.mu.Unlock()
		if refs >= want {
			// Give the goroutine time to park on the channel send.
			time.Sleep(5 * time.Millisecond)
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("refs for %s never reached %d", id, want)
}

func TestTurnLock_ContextCanceledWhileWaiting(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil, Config{})

	release, err := r.AcquireTurnLock(context.Background(), "u1")
	if err != nil {
		t.Fatalf("AcquireTurnLock: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := r.AcquireTurnLock(ctx, "u1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}

	r.mu.Lock()
	refs := r.states["u1"].refs
	r.mu.Unlock()
	if refs != 1 {
		t.Errorf("refs = %d after canceled wait, want 1", refs)
	}
}

func TestTurnLock_ReleaseIdempotent(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil, Config{})

	release, err := r.AcquireTurnLock(context.Background(), "u1")
	if err != nil {
		t.Fatalf("AcquireTurnLock: %v", err)
	}
	release()
	release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	again, err := r.AcquireTurnLock(ctx, "u1")
	if err != nil {
		t.Fatalf("second AcquireTurnLock: %v", err)
	}
	again()
}

func TestTurnLock_EmptyID(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil, Config{})
	if _, err := r.AcquireTurnLock(context.Background(), ""); !errors.Is(err, ErrEmptySessionID) {
		t.Errorf("err = %v, want ErrEmptySessionID", err)
	}
}

func TestState_AdvanceCursor(t *testing.T) {
	t.Parallel()

	st := newState("u1", time.Now())
	st.AdvanceCursor(5)
	st.AdvanceCursor(3)
	if got := st.Cursor(); got != 5 {
		t.Errorf("Cursor() = %d, want 5", got)
	}
	st.AdvanceCursor(9)
	if got := st.Cursor(); got != 9 {
		t.Errorf("Cursor() = %d, want 9", got)
	}
}

func TestState_ResetCursor(t *testing.T) {
	t.Parallel()

	st := newState("u1", time.Now())
	st.AdvanceCursor(8)
	st.ResetCursor(2)
	if got := st.Cursor(); got != 2 {
		t.Errorf("Cursor() = %d, want 2", got)
	}
	st.AdvanceCursor(3)
	if got := st.Cursor(); got != 3 {
		t.Errorf("Cursor() = %d, want 3", got)
	}
}
