package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sori-ai/sori/internal/memory"
	"github.com/sori-ai/sori/pkg/message"
)

const timeLayout = time.RFC3339Nano

// HistoryStore keeps one envelope-encoded row per turn in message_store.
// The row id is the turn sequence.
type HistoryStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewHistoryStore wraps an opened database.
func NewHistoryStore(db *sql.DB, logger *slog.Logger) *HistoryStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HistoryStore{db: db, logger: logger, now: time.Now}
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

	created := h.now().UTC()
	res, err := h.db.ExecContext(ctx,
		"INSERT INTO message_store (session_id, message, created_at) VALUES (?, ?, ?)",
		sessionID, string(env), created.Format(timeLayout),
	)
	if err != nil {
		return message.Turn{}, fmt.Errorf("sqlite: append turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return message.Turn{}, fmt.Errorf("sqlite: append turn id: %w", err)
	}

	return message.Turn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Sequence:  id,
		CreatedAt: created,
	}, nil
}

// ReadAll implements memory.HistoryStore. Rows holding non-conversational
// envelopes (system or tool messages) are skipped.
func (h *HistoryStore) ReadAll(ctx context.Context, sessionID string) ([]message.Turn, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT id, message, COALESCE(created_at, '') FROM message_store WHERE session_id = ? ORDER BY id ASC",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: read history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns := []message.Turn{}
	for rows.Next() {
		var (
			id      int64
			raw     string
			created string
		)
		if err := rows.Scan(&id, &raw, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan turn: %w", err)
		}
		turn, ok, err := decodeRow(sessionID, id, raw, created)
		if err != nil {
			return nil, fmt.Errorf("sqlite: turn %d: %w", id, err)
		}
		if !ok {
			h.logger.Debug("skipping non-conversational row", "session", sessionID, "id", id)
			continue
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: read history rows: %w", err)
	}
	return turns, nil
}

// decodeRow turns one message_store row into a Turn. ok is false for
// envelopes that are valid but not a human or assistant message.
func decodeRow(sessionID string, id int64, raw, created string) (message.Turn, bool, error) {
	role, content, err := message.UnmarshalEnvelope([]byte(raw))
	if errors.Is(err, message.ErrUnsupportedEnvelope) {
		return message.Turn{}, false, nil
	}
	if err != nil {
		return message.Turn{}, false, err
	}

	turn := message.Turn{SessionID: sessionID, Role: role, Content: content, Sequence: id}
	if created != "" {
		if ts, err := time.Parse(timeLayout, created); err == nil {
			turn.CreatedAt = ts
		}
	}
	return turn, true, nil
}
