package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sori-ai/sori/pkg/message"
)

// InMemoryHistoryStore is a thread-safe, in-memory implementation of HistoryStore.
type InMemoryHistoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]message.Turn
	nextSeq  int64
	now      func() time.Time
}

// NewInMemoryHistoryStore creates a new empty history store.
func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{
		sessions: make(map[string][]message.Turn),
		now:      time.Now,
	}
}

// Compile-time interface check.
var _ HistoryStore = (*InMemoryHistoryStore)(nil)

// Append adds a turn to the session's history. Sequences are global to the
// store, like an autoincrement key, so they increase within every session.
func (s *InMemoryHistoryStore) Append(ctx context.Context, sessionID string, role message.Role, content string) (message.Turn, error) {
	if err := ctx.Err(); err != nil {
		return message.Turn{}, err
	}
	if sessionID == "" {
		return message.Turn{}, ErrEmptySession
	}
	if !role.Valid() {
		return message.Turn{}, fmt.Errorf("memory: invalid role %q", role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	turn := message.Turn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Sequence:  s.nextSeq,
		CreatedAt: s.now(),
	}
	s.sessions[sessionID] = append(s.sessions[sessionID], turn)
	return turn, nil
}

// ReadAll returns a copy of the session's turns.
func (s *InMemoryHistoryStore) ReadAll(ctx context.Context, sessionID string) ([]message.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	result := make([]message.Turn, len(turns))
	copy(result, turns)
	return result, nil
}

// Len returns the number of turns stored for a session.
func (s *InMemoryHistoryStore) Len(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}
