package provider

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

var errOutage = errors.New("upstream 503")

func testBreaker(cfg HealthConfig) (*breaker, *fakeClock, *bytes.Buffer) {
	var buf bytes.Buffer
	b := newBreaker("primary", cfg, slog.New(slog.NewTextHandler(&buf, nil)))
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b.now = clock.Now
	return b, clock, &buf
}

func TestBreaker_CooldownExpires(t *testing.T) {
	t.Parallel()
	b, clock, _ := testBreaker(HealthConfig{InitialBackoff: time.Second})

	if !b.allow() || b.probeDue() {
		t.Fatal("fresh breaker should allow calls and need no probe")
	}

	b.fail(errOutage)
	if s := b.status(); s.State != stateCooldown || s.Available {
		t.Fatalf("after failure: %+v", s)
	}

	clock.Advance(999 * time.Millisecond)
	if b.allow() {
		t.Error("allowed before the backoff elapsed")
	}
	clock.Advance(time.Millisecond)
	if !b.allow() || !b.probeDue() {
		t.Error("expired cooldown should allow a trial call and a probe")
	}
}

func TestBreaker_BackoffDoublesUpToMax(t *testing.T) {
	t.Parallel()
	b, _, _ := testBreaker(HealthConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, MaxFailures: 10})

	for i, want := range []time.Duration{1, 2, 4, 5, 5} {
		b.fail(errOutage)
		if b.backoff != want*time.Second {
			t.Errorf("failure %d: backoff = %v, want %v", i+1, b.backoff, want*time.Second)
		}
	}
}

func TestBreaker_DeadUntilRevived(t *testing.T) {
	t.Parallel()
	b, clock, logs := testBreaker(HealthConfig{MaxFailures: 3})

	for range 4 {
		b.fail(errOutage)
	}
	clock.Advance(time.Hour)
	if s := b.status(); s.State != stateDead || s.Available || s.Failures != 4 {
		t.Fatalf("status = %+v, want dead", s)
	}
	if !b.probeDue() {
		t.Error("dead member should be probed")
	}
	if n := strings.Count(logs.String(), "gateway marked dead"); n != 1 {
		t.Errorf("dead logged %d times, want once", n)
	}

	b.succeed()
	if s := b.status(); s.State != stateHealthy || !s.Available || s.Failures != 0 || b.backoff != 0 {
		t.Errorf("after success: %+v backoff=%v", s, b.backoff)
	}
	if !strings.Contains(logs.String(), "previous_state=dead") {
		t.Errorf("revival not logged: %s", logs.String())
	}
}

func TestBreaker_SuccessWhileHealthyIsQuiet(t *testing.T) {
	t.Parallel()
	b, _, logs := testBreaker(HealthConfig{})

	b.succeed()
	if logs.Len() != 0 {
		t.Errorf("unexpected log: %s", logs.String())
	}
}

func TestHealthConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := HealthConfig{InitialBackoff: -1, MaxFailures: -2}
	cfg.defaults()
	want := HealthConfig{InitialBackoff: time.Second, MaxBackoff: time.Minute, MaxFailures: 5, CheckInterval: 10 * time.Second}
	if cfg != want {
		t.Errorf("defaults = %+v, want %+v", cfg, want)
	}
}

func TestBreaker_Concurrent(t *testing.T) {
	t.Parallel()
	b, _, _ := testBreaker(HealthConfig{MaxFailures: 1000})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			if i%2 == 0 {
				b.fail(errOutage)
			} else {
				b.succeed()
			}
			_ = b.allow()
			_ = b.status()
		})
	}
	wg.Wait()
}
