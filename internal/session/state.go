package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sori-ai/sori/pkg/message"
)

// State is the per-session execution state owned by the Registry. It is
// never authoritative: evicting it loses nothing the stores do not hold.
type State struct {
	id        string
	createdAt time.Time

	// turn is a one-slot semaphore. Blocked senders are queued in arrival
	// order, which gives the lock its FIFO fairness.
	turn chan struct{}

	// refs counts holders and waiters of the turn lock. Guarded by
	// Registry.mu.
	refs int

	lastActive atomic.Int64
	cursor     atomic.Int64

	// writeMu orders profile writes with their cache updates.
	writeMu sync.Mutex

	profileMu  sync.Mutex
	profileGen uint64
	profile    atomic.Pointer[cachedProfile]
}

type cachedProfile struct {
	profile  message.Profile
	found    bool
	loadedAt time.Time
}

func newState(id string, now time.Time) *State {
	st := &State{
		id:        id,
		createdAt: now,
		turn:      make(chan struct{}, 1),
	}
	st.touch(now)
	return st
}

// ID returns the session identifier.
func (s *State) ID() string { return s.id }

// CreatedAt returns when the state was created in this process.
func (s *State) CreatedAt() time.Time { return s.createdAt }

// LastActive returns the time of the last lookup or lock release.
func (s *State) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *State) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

// Cursor returns the highest turn sequence this process appended for the
// session, or 0 if none.
func (s *State) Cursor() int64 {
	return s.cursor.Load()
}

// AdvanceCursor raises the cursor to seq. Lower values are ignored.
func (s *State) AdvanceCursor(seq int64) {
	for {
		cur := s.cursor.Load()
		if seq <= cur || s.cursor.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// ResetCursor sets the cursor to seq, lowering it if needed. It is used
// when the history store no longer holds turns this process appended.
func (s *State) ResetCursor(seq int64) {
	s.cursor.Store(seq)
}

// cachedProfile returns the cached entry if it is still fresh.
func (s *State) cachedProfile(now time.Time, ttl time.Duration) (*cachedProfile, bool) {
	c := s.profile.Load()
	if c == nil {
		return nil, false
	}
	if ttl > 0 && now.Sub(c.loadedAt) >= ttl {
		return nil, false
	}
	return c, true
}

func (s *State) generation() uint64 {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	return s.profileGen
}

// fillProfile caches a value loaded from the store unless the cache was
// written or invalidated since gen was read.
func (s *State) fillProfile(gen uint64, c *cachedProfile) {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	if s.profileGen == gen {
		s.profile.Store(c)
	}
}

func (s *State) setProfile(c *cachedProfile) {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	s.profileGen++
	s.profile.Store(c)
}
