package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a key exceeds its budget.
var ErrRateLimited = errors.New("security: rate limit exceeded")

// RateLimitConfig holds per-key limits for inbound requests.
type RateLimitConfig struct {
	// MessagesPerMin is the turn budget per session. Zero disables it.
	MessagesPerMin int `yaml:"messages_per_min"`
	// AuthPerMin is the authentication attempt budget per remote address.
	AuthPerMin int `yaml:"auth_per_min"`
}

// DefaultAuthPerMin applies when AuthPerMin is zero.
const DefaultAuthPerMin = 30

// RateLimiter is a sliding-window limiter keyed by arbitrary strings,
// typically a session id or a remote address. Keys with no event inside
// the window are dropped by Prune.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string][]time.Time
	now     func() time.Time
}

// NewRateLimiter creates a limiter allowing limit events per window for
// each key. A non-positive limit allows everything.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records one event for key, or returns ErrRateLimited when the
// key's window is full. A nil limiter allows everything.
func (rl *RateLimiter) Allow(key string) error {
	return rl.AllowN(key, 1)
}

// AllowN records n events for key if they all fit.
func (rl *RateLimiter) AllowN(key string, n int) error {
	if rl == nil || rl.limit <= 0 {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	events := evict(rl.buckets[key], now.Add(-rl.window))
	if len(events)+n > rl.limit {
		rl.buckets[key] = events
		return ErrRateLimited
	}
	for range n {
		events = append(events, now)
	}
	rl.buckets[key] = events
	return nil
}

// Prune drops keys whose window is empty and returns how many were removed.
func (rl *RateLimiter) Prune() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	removed := 0
	for key, events := range rl.buckets {
		if events = evict(events, cutoff); len(events) == 0 {
			delete(rl.buckets, key)
			removed++
			continue
		}
		rl.buckets[key] = events
	}
	return removed
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// evict removes events before cutoff. Events are in chronological order.
func evict(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && events[i].Before(cutoff) {
		i++
	}
	return events[i:]
}
