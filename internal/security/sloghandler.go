package security

import (
	"context"
	"log/slog"
)

// RedactingHandler is the root slog handler of the process. It passes
// every record through a Redactor before the inner handler formats it:
// the message and all attribute values, including groups, errors and
// attributes bound with With. String attributes whose key names a secret
// (api_key, dsn, token...) are replaced whole, so a credential logged by
// key is hidden even when it matches no rule.
type RedactingHandler struct {
	inner    slog.Handler
	redactor *Redactor
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps inner with redactor.
func NewRedactingHandler(inner slog.Handler, redactor *Redactor) *RedactingHandler {
	return &RedactingHandler{inner: inner, redactor: redactor}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, h.redactor.Redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.clean(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

// WithAttrs cleans attrs once, when they are bound.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cleaned := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		cleaned = append(cleaned, h.clean(a))
	}
	return h.wrap(h.inner.WithAttrs(cleaned))
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return h.wrap(h.inner.WithGroup(name))
}

func (h *RedactingHandler) wrap(inner slog.Handler) *RedactingHandler {
	return &RedactingHandler{inner: inner, redactor: h.redactor}
}

func (h *RedactingHandler) clean(a slog.Attr) slog.Attr {
	// LogValuers are resolved so their final form is what gets checked.
	v := a.Value.Resolve()

	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s != "" && secretKeyPattern.MatchString(a.Key) {
			return slog.String(a.Key, RedactPlaceholder)
		}
		return slog.String(a.Key, h.redactor.Redact(s))
	case slog.KindGroup:
		members := v.Group()
		cleaned := make([]slog.Attr, 0, len(members))
		for _, m := range members {
			cleaned = append(cleaned, h.clean(m))
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(cleaned...)}
	case slog.KindAny:
		// Errors and structs are checked in printed form and only
		// replaced when something had to be hidden.
		printed := v.String()
		if r := h.redactor.Redact(printed); r != printed {
			return slog.String(a.Key, r)
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
