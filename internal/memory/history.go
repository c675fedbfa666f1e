// Package memory defines the durable session history and profile store
// contracts, with in-memory implementations for tests and single-process use.
package memory

import (
	"context"
	"errors"

	"github.com/sori-ai/sori/pkg/message"
)

// ErrEmptySession is returned when a store operation is given an empty session ID.
var ErrEmptySession = errors.New("memory: empty session id")

// ServiceName is the AppContext service under which a storage module
// publishes its Backend.
const ServiceName = "memory.backend"

// HistoryStore is a durable, session-keyed, append-only log of turns.
// Implementations must be safe for concurrent use and must make an appended
// turn visible to the next ReadAll issued by the same caller.
type HistoryStore interface {
	// Append stores a new turn at the end of the session's history and
	// returns the durable record with its assigned sequence.
	Append(ctx context.Context, sessionID string, role message.Role, content string) (message.Turn, error)

	// ReadAll returns the session's turns in insertion order. An unknown
	// session yields an empty slice.
	ReadAll(ctx context.Context, sessionID string) ([]message.Turn, error)
}

// ProfileStore is a durable per-session personalization record.
type ProfileStore interface {
	// Get returns the stored profile. found is false when none exists.
	Get(ctx context.Context, sessionID string) (p message.Profile, found bool, err error)

	// Upsert overwrites the profile for p.SessionID.
	Upsert(ctx context.Context, p message.Profile) error
}

// Backend is implemented by storage modules that provide both stores.
type Backend interface {
	History() HistoryStore
	Profiles() ProfileStore
}
