// Package memorytest provides test doubles for the memory package.
package memorytest

import (
	"context"
	"sync"

	"github.com/sori-ai/sori/internal/memory"
	"github.com/sori-ai/sori/pkg/message"
)

// MockHistoryStore wraps an optional inner store. A non-nil Func field
// overrides the corresponding call; otherwise the call goes to Inner.
// All methods are safe for concurrent use.
type MockHistoryStore struct {
	Inner       memory.HistoryStore
	AppendFunc  func(ctx context.Context, sessionID string, role message.Role, content string) (message.Turn, error)
	ReadAllFunc func(ctx context.Context, sessionID string) ([]message.Turn, error)

	mu           sync.Mutex
	AppendCalls  int
	ReadAllCalls int
}

// NewMockHistoryStore returns a mock backed by a fresh in-memory store.
func NewMockHistoryStore() *MockHistoryStore {
	return &MockHistoryStore{Inner: memory.NewInMemoryHistoryStore()}
}

// Append delegates to AppendFunc or Inner and tracks call count.
func (m *MockHistoryStore) Append(ctx context.Context, sessionID string, role message.Role, content string) (message.Turn, error) {
	m.mu.Lock()
	m.AppendCalls++
	fn := m.AppendFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, sessionID, role, content)
	}
	return m.Inner.Append(ctx, sessionID, role, content)
}

// ReadAll delegates to ReadAllFunc or Inner and tracks call count.
func (m *MockHistoryStore) ReadAll(ctx context.Context, sessionID string) ([]message.Turn, error) {
	m.mu.Lock()
	m.ReadAllCalls++
	fn := m.ReadAllFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, sessionID)
	}
	return m.Inner.ReadAll(ctx, sessionID)
}

// Calls returns the append and read counters.
func (m *MockHistoryStore) Calls() (appends, reads int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.AppendCalls, m.ReadAllCalls
}

// MockProfileStore mirrors MockHistoryStore for profiles.
type MockProfileStore struct {
	Inner      memory.ProfileStore
	GetFunc    func(ctx context.Context, sessionID string) (message.Profile, bool, error)
	UpsertFunc func(ctx context.Context, p message.Profile) error

	mu          sync.Mutex
	GetCalls    int
	UpsertCalls int
}

// NewMockProfileStore returns a mock backed by a fresh in-memory store.
func NewMockProfileStore() *MockProfileStore {
	return &MockProfileStore{Inner: memory.NewInMemoryProfileStore()}
}

// Get delegates to GetFunc or Inner and tracks call count.
func (m *MockProfileStore) Get(ctx context.Context, sessionID string) (message.Profile, bool, error) {
	m.mu.Lock()
	m.GetCalls++
	fn := m.GetFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, sessionID)
	}
	return m.Inner.Get(ctx, sessionID)
}

// Upsert delegates to UpsertFunc or Inner and tracks call count.
func (m *MockProfileStore) Upsert(ctx context.Context, p message.Profile) error {
	m.mu.Lock()
	m.UpsertCalls++
	fn := m.UpsertFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, p)
	}
	return m.Inner.Upsert(ctx, p)
}

// Gets returns the number of Get calls.
func (m *MockProfileStore) Gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetCalls
}

// Interface guards.
var (
	_ memory.HistoryStore = (*MockHistoryStore)(nil)
	_ memory.ProfileStore = (*MockProfileStore)(nil)
)
