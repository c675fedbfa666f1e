package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sori-ai/sori/internal/memory"
	"github.com/sori-ai/sori/pkg/message"
)

// Querier is the subset of pgx used by the stores. *pgxpool.Pool, pgx.Tx
// and pgxmock pools all satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// HistoryStore keeps one envelope-encoded row per turn in message_store.
type HistoryStore struct {
	db     Querier
	logger *slog.Logger
}

// NewHistoryStore wraps db.
func NewHistoryStore(db Querier, logger *slog.Logger) *HistoryStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HistoryStore{db: db, logger: logger}
}

var _ memory.HistoryStore = (*HistoryStore)(nil)

// Append implements memory.HistoryStore.
func (h *HistoryStore) Append(ctx context.Context, sessionID string, role message.Role, content string) (message.Turn, error) {
	if sessionID == "" {
		return message.Turn{}, memory.ErrEmptySession
	}
	env, err := message.MarshalEnvelope(role, content)
	if err != nil {
		return message.Turn{}, err
	}

	turn := message.Turn{SessionID: sessionID, Role: role, Content: content}
	err = h.db.QueryRow(ctx,
		`INSERT INTO message_store (session_id, message, created_at) VALUES ($1, $2, now())
		RETURNING id, created_at`,
		sessionID, string(env),
	).Scan(&turn.Sequence, &turn.CreatedAt)
	if err != nil {
		return message.Turn{}, fmt.Errorf("postgres: append turn: %w", err)
	}
	return turn, nil
}

// ReadAll implements memory.HistoryStore. Non-conversational envelopes are
// skipped.
func (h *HistoryStore) ReadAll(ctx context.Context, sessionID string) ([]message.Turn, error) {
	rows, err := h.db.Query(ctx,
		"SELECT id, message, created_at FROM message_store WHERE session_id = $1 ORDER BY id ASC",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: read history: %w", err)
	}
	defer rows.Close()

	turns := []message.Turn{}
	for rows.Next() {
		var (
			id      int64
			raw     string
			created *time.Time
		)
		if err := rows.Scan(&id, &raw, &created); err != nil {
			return nil, fmt.Errorf("postgres: scan turn: %w", err)
		}

		role, content, err := message.UnmarshalEnvelope([]byte(raw))
		if errors.Is(err, message.ErrUnsupportedEnvelope) {
			h.logger.Debug("skipping non-conversational row", "session", sessionID, "id", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("postgres: turn %d: %w", id, err)
		}

		turn := message.Turn{SessionID: sessionID, Role: role, Content: content, Sequence: id}
		if created != nil {
			turn.CreatedAt = *created
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read history rows: %w", err)
	}
	return turns, nil
}

// ProfileStore keeps one user_info row per session.
type ProfileStore struct {
	db Querier
}

// NewProfileStore wraps db.
func NewProfileStore(db Querier) *ProfileStore {
	return &ProfileStore{db: db}
}

var _ memory.ProfileStore = (*ProfileStore)(nil)

// Get implements memory.ProfileStore.
func (s *ProfileStore) Get(ctx context.Context, sessionID string) (message.Profile, bool, error) {
	var (
		age   *int32
		likes *string
	)
	err := s.db.QueryRow(ctx,
		"SELECT age, likes FROM user_info WHERE session_id = $1", sessionID,
	).Scan(&age, &likes)
	if errors.Is(err, pgx.ErrNoRows) {
		return message.Profile{}, false, nil
	}
	if err != nil {
		return message.Profile{}, false, fmt.Errorf("postgres: get profile: %w", err)
	}

	p := message.Profile{SessionID: sessionID}
	if age != nil {
		v := int(*age)
		p.Age = &v
	}
	if likes != nil {
		p.Interests = message.DecodeLikes(*likes)
	}
	return p, true, nil
}

// Upsert implements memory.ProfileStore.
func (s *ProfileStore) Upsert(ctx context.Context, p message.Profile) error {
	if p.SessionID == "" {
		return memory.ErrEmptySession
	}

	var age *int32
	if p.Age != nil {
		v := int32(*p.Age)
		age = &v
	}
	var likes *string
	if enc, ok := message.EncodeLikes(p.Interests); ok {
		likes = &enc
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO user_info (session_id, age, likes) VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET age = EXCLUDED.age, likes = EXCLUDED.likes`,
		p.SessionID, age, likes,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert profile: %w", err)
	}
	return nil
}
