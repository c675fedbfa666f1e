package memory

import (
	"context"
	"sync"

	"github.com/sori-ai/sori/pkg/message"
)

// InMemoryProfileStore keeps profiles in a map. Values are cloned on the way
// in and out so callers never share slices with the store.
type InMemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]message.Profile
}

// NewInMemoryProfileStore creates an empty profile store.
func NewInMemoryProfileStore() *InMemoryProfileStore {
	return &InMemoryProfileStore{profiles: make(map[string]message.Profile)}
}

var _ ProfileStore = (*InMemoryProfileStore)(nil)

// Get returns the profile for sessionID.
func (s *InMemoryProfileStore) Get(ctx context.Context, sessionID string) (message.Profile, bool, error) {
	if err := ctx.Err(); err != nil {
		return message.Profile{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[sessionID]
	if !ok {
		return message.Profile{}, false, nil
	}
	return p.Clone(), true, nil
}

// Upsert replaces the profile for p.SessionID.
func (s *InMemoryProfileStore) Upsert(ctx context.Context, p message.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.SessionID == "" {
		return ErrEmptySession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.SessionID] = p.Clone()
	return nil
}

// InMemoryBackend bundles the in-memory stores behind Backend.
type InMemoryBackend struct {
	history  *InMemoryHistoryStore
	profiles *InMemoryProfileStore
}

// NewInMemoryBackend creates a Backend with empty in-memory stores.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{
		history:  NewInMemoryHistoryStore(),
		profiles: NewInMemoryProfileStore(),
	}
}

var _ Backend = (*InMemoryBackend)(nil)

// History returns the history store.
func (b *InMemoryBackend) History() HistoryStore { return b.history }

// Profiles returns the profile store.
func (b *InMemoryBackend) Profiles() ProfileStore { return b.profiles }
