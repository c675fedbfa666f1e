package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sori-ai/sori/internal/memory"
	"github.com/sori-ai/sori/pkg/message"
)

// ProfileStore keeps one user_info row per session. Likes are a JSON array.
type ProfileStore struct {
	db *sql.DB
}

// NewProfileStore wraps an opened database.
func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

var _ memory.ProfileStore = (*ProfileStore)(nil)

// Get implements memory.ProfileStore.
func (s *ProfileStore) Get(ctx context.Context, sessionID string) (message.Profile, bool, error) {
	var (
		age   sql.NullInt64
		likes sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT age, likes FROM user_info WHERE session_id = ?", sessionID,
	).Scan(&age, &likes)
	if errors.Is(err, sql.ErrNoRows) {
		return message.Profile{}, false, nil
	}
	if err != nil {
		return message.Profile{}, false, fmt.Errorf("sqlite: get profile: %w", err)
	}

	p := message.Profile{SessionID: sessionID}
	if age.Valid {
		v := int(age.Int64)
		p.Age = &v
	}
	if likes.Valid {
		p.Interests = message.DecodeLikes(likes.String)
	}
	return p, true, nil
}

// Upsert implements memory.ProfileStore.
func (s *ProfileStore) Upsert(ctx context.Context, p message.Profile) error {
	if p.SessionID == "" {
		return memory.ErrEmptySession
	}

	var age sql.NullInt64
	if p.Age != nil {
		age = sql.NullInt64{Int64: int64(*p.Age), Valid: true}
	}
	var likes sql.NullString
	if enc, ok := message.EncodeLikes(p.Interests); ok {
		likes = sql.NullString{String: enc, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_info (session_id, age, likes) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET age = excluded.age, likes = excluded.likes`,
		p.SessionID, age, likes,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert profile: %w", err)
	}
	return nil
}
