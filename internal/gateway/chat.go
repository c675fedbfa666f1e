package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sori-ai/sori/internal/engine"
	"github.com/sori-ai/sori/internal/metrics"
	"github.com/sori-ai/sori/internal/security"
)

var errBadRequest = errors.New("gateway: bad request")

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type chatResponse struct {
	Content string `json:"content"`
	// Recorded is false when the reply could not be stored.
	Recorded *bool `json:"recorded,omitempty"`
}

// handleChat runs one turn and answers with the reply text.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := g.decode(r, &req); err != nil {
			writeDecodeError(w, r, err)
			return
		}
		if req.UserID == "" {
			writeError(w, r, http.StatusBadRequest, missingUserID)
			return
		}
		if err := g.turns.Allow(req.UserID); err != nil {
			writeError(w, r, http.StatusTooManyRequests, errorResponse{Error: "too many messages", Kind: "rate_limited"})
			return
		}

		reply, err := g.conv.ProcessTurn(r.Context(), req.UserID, req.Message)
		if reply != "" {
			resp := chatResponse{Content: reply}
			if err != nil {
				recorded := false
				resp.Recorded = &recorded
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}
		status, resp := turnFailure(err)
		if status >= http.StatusInternalServerError {
			g.logger.Warn("chat turn failed", "session", req.UserID, "error", err, "request_id", RequestIDFrom(r.Context()))
		}
		writeError(w, r, status, resp)
	}
}

// missingUserID answers a request without a userId. It is checked before
// rate limiting so anonymous requests never share a limiter bucket.
var missingUserID = errorResponse{Error: "userId is required", Kind: metrics.OutcomeInvalidInput}

// turnFailure maps an engine error to a status and body. The saved flag
// tells the client whether resending would duplicate its message.
func turnFailure(err error) (int, errorResponse) {
	saved := engine.MessageSaved(err)
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		return http.StatusBadRequest, missingUserID
	case errors.Is(err, engine.ErrModelInvocation):
		return http.StatusBadGateway, errorResponse{Error: "no reply could be generated", Kind: metrics.OutcomeModel, Saved: &saved}
	case errors.Is(err, engine.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: "message could not be saved", Kind: metrics.OutcomeStore, Saved: &saved}
	case errors.Is(err, engine.ErrCanceled):
		return http.StatusServiceUnavailable, errorResponse{Error: "request canceled", Kind: metrics.OutcomeCanceled, Saved: &saved}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error", Saved: &saved}
	}
}

type userRequest struct {
	ID   string          `json:"id"`
	Age  json.RawMessage `json:"age"`
	Like json.RawMessage `json:"like"`
}

type userData struct {
	ID   string   `json:"id"`
	Age  *int     `json:"age"`
	Like []string `json:"like"`
}

type userResponse struct {
	Message string   `json:"message"`
	Data    userData `json:"data"`
}

// handleUser stores the profile of a session.
func (g *Gateway) handleUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userRequest
		if err := g.decode(r, &req); err != nil {
			writeDecodeError(w, r, err)
			return
		}
		age, err := parseAge(req.Age)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: metrics.OutcomeInvalidInput})
			return
		}
		likes, err := parseLikes(req.Like)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: metrics.OutcomeInvalidInput})
			return
		}

		if err := g.conv.SetProfile(r.Context(), req.ID, age, likes); err != nil {
			if errors.Is(err, engine.ErrInvalidInput) {
				writeError(w, r, http.StatusBadRequest, errorResponse{Error: "invalid profile", Kind: metrics.OutcomeInvalidInput})
				return
			}
			g.logger.Warn("profile update failed", "session", req.ID, "error", err)
			writeError(w, r, http.StatusServiceUnavailable, errorResponse{Error: "profile could not be saved", Kind: metrics.OutcomeStore})
			return
		}
		writeJSON(w, http.StatusOK, userResponse{
			Message: "User data received",
			Data:    userData{ID: req.ID, Age: age, Like: likes},
		})
	}
}

// parseAge accepts a number, a numeric string or null.
func parseAge(raw json.RawMessage) (*int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return &n, nil
		}
	}
	return nil, fmt.Errorf("age must be an integer, got %s", raw)
}

// parseLikes accepts a list of strings, a single string or null.
func parseLikes(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil, nil
		}
		return []string{s}, nil
	}
	return nil, errors.New("like must be a list of strings")
}

type historyTurn struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Sequence  int64      `json:"sequence"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

type historyResponse struct {
	SessionID string        `json:"session_id"`
	Turns     []historyTurn `json:"turns"`
}

func (g *Gateway) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		turns, err := g.conv.History(r.Context(), id)
		if err != nil {
			if errors.Is(err, engine.ErrInvalidInput) {
				writeError(w, r, http.StatusBadRequest, errorResponse{Error: "session id is required", Kind: metrics.OutcomeInvalidInput})
				return
			}
			g.logger.Warn("history read failed", "session", id, "error", err)
			writeError(w, r, http.StatusServiceUnavailable, errorResponse{Error: "history unavailable", Kind: metrics.OutcomeStore})
			return
		}

		resp := historyResponse{SessionID: id, Turns: make([]historyTurn, 0, len(turns))}
		for _, t := range turns {
			ht := historyTurn{Role: string(t.Role), Content: t.Content, Sequence: t.Sequence}
			if !t.CreatedAt.IsZero() {
				created := t.CreatedAt
				ht.CreatedAt = &created
			}
			resp.Turns = append(resp.Turns, ht)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// decode reads a bounded JSON body into v.
func (g *Gateway) decode(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, int64(g.config.Limits.MaxBytes)+1))
	if err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return decodePayload(g.config.Limits, data, v)
}

func decodePayload(limits security.PayloadLimits, data []byte, v any) error {
	if err := limits.Check(data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, security.ErrPayloadTooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload too large", Kind: metrics.OutcomeInvalidInput})
		return
	}
	writeError(w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body", Kind: metrics.OutcomeInvalidInput})
}
