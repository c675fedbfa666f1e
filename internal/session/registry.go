package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sori-ai/sori/internal/memory"
	"github.com/sori-ai/sori/pkg/message"
)

// EvictionPolicy selects how the registry bounds its state map.
type EvictionPolicy string

// Supported eviction policies.
const (
	EvictNone EvictionPolicy = "none"
	EvictTTL  EvictionPolicy = "ttl"
	EvictLRU  EvictionPolicy = "lru"
)

const defaultPruneInterval = time.Minute

// Config controls the registry.
type Config struct {
	// Eviction is the policy for dropping idle states. Default: none.
	Eviction EvictionPolicy

	// MaxIdle is the idle time after which a state is pruned under ttl.
	MaxIdle time.Duration

	// MaxSessions caps live states under lru.
	MaxSessions int

	// ProfileTTL bounds how long a cached profile is trusted. Zero keeps
	// entries until they are replaced or invalidated.
	ProfileTTL time.Duration

	// PruneInterval rate-limits the prune run on session creation under
	// ttl. Default: 1m.
	PruneInterval time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Eviction == "" {
		c.Eviction = EvictNone
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = defaultPruneInterval
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Validate reports inconsistent settings.
func (c Config) Validate() error {
	switch c.Eviction {
	case "", EvictNone:
	case EvictTTL:
		if c.MaxIdle <= 0 {
			return fmt.Errorf("session: ttl eviction requires max_idle > 0")
		}
	case EvictLRU:
		if c.MaxSessions <= 0 {
			return fmt.Errorf("session: lru eviction requires max_sessions > 0")
		}
	default:
		return fmt.Errorf("session: unknown eviction policy %q", c.Eviction)
	}
	return nil
}

// Registry maps session IDs to their State. The registry mutex is held
// only for map operations; waiting for a turn lock happens outside it, so
// sessions never block each other.
type Registry struct {
	cfg      Config
	profiles memory.ProfileStore
	logger   *slog.Logger

	mu        sync.Mutex
	states    map[string]*State
	lastPrune time.Time

	now func() time.Time
}

// NewRegistry creates a registry that loads profiles from profiles.
func NewRegistry(profiles memory.ProfileStore, cfg Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.defaults()
	return &Registry{
		cfg:      cfg,
		profiles: profiles,
		logger:   cfg.Logger,
		states:   make(map[string]*State),
		now:      time.Now,
	}, nil
}

// Policy returns the effective eviction policy.
func (r *Registry) Policy() EvictionPolicy {
	return r.cfg.Eviction
}

// GetOrCreate returns the state for id, creating it on first reference.
// The bool is true when a new state was created. Concurrent first calls
// for the same id observe the same state.
func (r *Registry) GetOrCreate(id string) (*State, bool) {
	r.mu.Lock()
	st, created := r.getOrCreateLocked(id)
	r.mu.Unlock()

	if created && r.cfg.Eviction == EvictTTL {
		r.maybePrune()
	}
	return st, created
}

func (r *Registry) getOrCreateLocked(id string) (*State, bool) {
	now := r.now()
	if st, ok := r.states[id]; ok {
		st.touch(now)
		return st, false
	}

	st := newState(id, now)
	r.states[id] = st
	if r.cfg.Eviction == EvictLRU && len(r.states) > r.cfg.MaxSessions {
		r.evictLRULocked(st)
	}
	return st, true
}

// Get returns the state for id, or nil.
func (r *Registry) Get(id string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[id]
}

// AcquireTurnLock blocks until the caller holds the turn lock of session
// id, or ctx is done. Waiters are served in arrival order. The returned
// release function is idempotent.
func (r *Registry) AcquireTurnLock(ctx context.Context, id string) (release func(), err error) {
	if id == "" {
		return nil, ErrEmptySessionID
	}

	r.mu.Lock()
	st, _ := r.getOrCreateLocked(id)
	st.refs++
	r.mu.Unlock()

	select {
	case st.turn <- struct{}{}:
	case <-ctx.Done():
		r.unref(st)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-st.turn
			r.unref(st)
		})
	}, nil
}

func (r *Registry) unref(st *State) {
	r.mu.Lock()
	st.refs--
	st.touch(r.now())
	r.mu.Unlock()
}

// GetOrLoadProfile returns the session profile from the cache, loading it
// from the profile store when absent or expired. found is false when the
// store has no profile for the session.
func (r *Registry) GetOrLoadProfile(ctx context.Context, id string) (p message.Profile, found bool, err error) {
	if r.profiles == nil {
		return message.Profile{}, false, ErrNoProfileStore
	}
	st, _ := r.GetOrCreate(id)

	if c, ok := st.cachedProfile(r.now(), r.cfg.ProfileTTL); ok {
		return c.profile.Clone(), c.found, nil
	}

	gen := st.generation()
	p, found, err = r.profiles.Get(ctx, id)
	if err != nil {
		return message.Profile{}, false, err
	}
	if !found {
		p = message.Profile{SessionID: id}
	}
	st.fillProfile(gen, &cachedProfile{profile: p.Clone(), found: found, loadedAt: r.now()})
	return p, found, nil
}

// UpsertProfile writes p to the profile store and caches it. Writes for
// one session are serialized so the cache always ends with the value the
// store kept. A failed write drops the cache entry, since the store may or
// may not hold p.
func (r *Registry) UpsertProfile(ctx context.Context, p message.Profile) error {
	if r.profiles == nil {
		return ErrNoProfileStore
	}
	if p.SessionID == "" {
		return ErrEmptySessionID
	}

	// The ref keeps the state from being evicted mid-write, so a
	// concurrent writer cannot cache into a replacement state.
	r.mu.Lock()
	st, _ := r.getOrCreateLocked(p.SessionID)
	st.refs++
	r.mu.Unlock()
	defer r.unref(st)

	st.writeMu.Lock()
	defer st.writeMu.Unlock()

	if err := r.profiles.Upsert(ctx, p); err != nil {
		st.setProfile(nil)
		return err
	}
	r.storeProfile(st, p)
	return nil
}

func (r *Registry) storeProfile(st *State, p message.Profile) {
	st.setProfile(&cachedProfile{profile: p.Clone(), found: true, loadedAt: r.now()})
}

// Prune removes states idle for longer than MaxIdle whose turn lock is
// neither held nor awaited. It returns the number removed. Without a
// positive MaxIdle it does nothing.
func (r *Registry) Prune() int {
	if r.cfg.MaxIdle <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.lastPrune = now
	pruned := 0
	for id, st := range r.states {
		if st.refs == 0 && now.Sub(st.LastActive()) > r.cfg.MaxIdle {
			delete(r.states, id)
			pruned++
		}
	}
	if pruned > 0 {
		r.logger.Debug("session states pruned", "count", pruned, "remaining", len(r.states))
	}
	return pruned
}

// maybePrune runs Prune at most once per PruneInterval.
func (r *Registry) maybePrune() {
	r.mu.Lock()
	due := r.now().Sub(r.lastPrune) >= r.cfg.PruneInterval
	r.mu.Unlock()
	if due {
		r.Prune()
	}
}

// evictLRULocked drops the least recently active idle state other than
// keep. When every state is busy the map is left over capacity.
func (r *Registry) evictLRULocked(keep *State) {
	var victim *State
	for _, st := range r.states {
		if st == keep || st.refs > 0 {
			continue
		}
		if victim == nil || st.lastActive.Load() < victim.lastActive.Load() {
			victim = st
		}
	}
	if victim == nil {
		r.logger.Warn("session registry over capacity, all states busy",
			"max_sessions", r.cfg.MaxSessions,
			"live", len(r.states),
		)
		return
	}
	delete(r.states, victim.id)
}

// Len returns the number of live states.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Range calls fn for each state until fn returns false. The registry lock
// is held for the whole iteration; keep fn fast.
func (r *Registry) Range(fn func(*State) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.states {
		if !fn(st) {
			return
		}
	}
}
