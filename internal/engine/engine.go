// Package engine runs conversation turns. For each turn it serializes on
// the session, persists the human message before calling the model, and
// persists the reply only when the model succeeds.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ctxengine "github.com/sori-ai/sori/internal/context"
	"github.com/sori-ai/sori/internal/memory"
	"github.com/sori-ai/sori/internal/metrics"
	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/internal/session"
	"github.com/sori-ai/sori/internal/speech"
	"github.com/sori-ai/sori/pkg/message"
)

// DefaultModelTimeout bounds a model call when Config.ModelTimeout is zero.
const DefaultModelTimeout = 30 * time.Second

const tracerName = "github.com/sori-ai/sori/internal/engine"

// ServiceName is the AppContext service under which the running engine is
// published for transports.
const ServiceName = "engine"

// Config holds the engine collaborators.
type Config struct {
	History  memory.HistoryStore
	Profiles memory.ProfileStore
	Gateway  provider.Gateway

	// Synthesizer renders replies as audio for StreamTurn. Optional.
	Synthesizer speech.Synthesizer

	// Registry holds per-session state and reads and writes profiles
	// through its own store. Default: a registry without eviction over
	// Profiles.
	Registry *session.Registry

	// Assembler trims history and renders the persona. Default: token
	// budget with the built-in persona.
	Assembler *ctxengine.Assembler

	ModelTimeout time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// Engine processes turns. It is safe for concurrent use.
type Engine struct {
	history   memory.HistoryStore
	gateway   provider.Gateway
	synth     speech.Synthesizer
	registry  *session.Registry
	assembler *ctxengine.Assembler
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New validates cfg and creates an Engine.
func New(cfg Config) (*Engine, error) {
	var errs []error
	if cfg.History == nil {
		errs = append(errs, errors.New("engine: history store is required"))
	}
	if cfg.Profiles == nil {
		errs = append(errs, errors.New("engine: profile store is required"))
	}
	if cfg.Gateway == nil {
		errs = append(errs, errors.New("engine: model gateway is required"))
	}
	if cfg.ModelTimeout < 0 {
		errs = append(errs, fmt.Errorf("engine: model timeout must not be negative, got %s", cfg.ModelTimeout))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	e := &Engine{
		history:   cfg.History,
		gateway:   cfg.Gateway,
		synth:     cfg.Synthesizer,
		registry:  cfg.Registry,
		assembler: cfg.Assembler,
		timeout:   cfg.ModelTimeout,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
	}
	if e.registry == nil {
		reg, err := session.NewRegistry(cfg.Profiles, session.Config{Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
		e.registry = reg
	}
	if e.assembler == nil {
		e.assembler = ctxengine.NewAssembler(ctxengine.ContextConfig{}, ctxengine.WithLogger(cfg.Logger))
	}
	if e.timeout == 0 {
		e.timeout = DefaultModelTimeout
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e, nil
}

// Registry returns the session registry.
func (e *Engine) Registry() *session.Registry { return e.registry }

// CanSpeak reports whether a synthesizer is configured.
func (e *Engine) CanSpeak() bool { return e.synth != nil }

// AudioFormat returns the synthesizer format, or "" without one.
func (e *Engine) AudioFormat() string {
	if e.synth == nil {
		return ""
	}
	return e.synth.Format()
}

// modelCall invokes the gateway for one prepared prompt.
type modelCall func(ctx context.Context, p provider.Prompt) (string, error)

// ProcessTurn appends text as the next human turn of sessionID, asks the
// model for a reply, appends the reply and returns it.
//
// When the reply was produced but could not be stored, ProcessTurn returns
// both the reply and an ErrStoreUnavailable error.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, text string) (string, error) {
	return e.turn(ctx, "engine.ProcessTurn", sessionID, text, e.gateway.Invoke)
}

func (e *Engine) turn(ctx context.Context, spanName, sessionID, text string, call modelCall) (string, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("message.length", len(text)),
	))
	defer span.End()

	reply, err := e.runTurn(ctx, sessionID, text, call)

	d := time.Since(start)
	outcome := outcomeOf(err)
	e.metrics.ObserveTurn(outcome, d)
	span.SetAttributes(attribute.String("turn.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		e.logTurnError(ctx, sessionID, err, d)
	} else {
		e.logger.InfoContext(ctx, "turn completed",
			"session", sessionID,
			"reply_length", len(reply),
			"duration", d,
		)
	}
	return reply, err
}

func (e *Engine) runTurn(ctx context.Context, sessionID, text string, call modelCall) (string, error) {
	if sessionID == "" {
		return "", &TurnError{Kind: ErrInvalidInput, Stage: StageValidate, Err: ErrEmptySessionID}
	}

	release, err := e.registry.AcquireTurnLock(ctx, sessionID)
	if err != nil {
		return "", &TurnError{Kind: ErrCanceled, Stage: StageAcquireLock, SessionID: sessionID, Err: err}
	}
	defer release()

	st, _ := e.registry.GetOrCreate(sessionID)

	profile, _, err := e.registry.GetOrLoadProfile(ctx, sessionID)
	if err != nil {
		return "", e.storeError(ctx, StageReadProfile, sessionID, err)
	}

	history, err := e.readHistory(ctx, st, sessionID)
	if err != nil {
		return "", e.storeError(ctx, StageReadHistory, sessionID, err)
	}

	human, err := e.history.Append(ctx, sessionID, message.RoleHuman, text)
	if err != nil {
		return "", e.storeError(ctx, StageAppendHuman, sessionID, err)
	}
	st.AdvanceCursor(human.Sequence)

	prompt := e.assembler.Build(ctx, append(history, human), profile)

	reply, err := e.invoke(ctx, prompt, call)
	if err != nil {
		return "", &TurnError{Kind: ErrModelInvocation, Stage: StageInvokeModel, SessionID: sessionID, Err: err}
	}

	// The reply is kept even if the caller went away during the model call.
	assistant, err := e.history.Append(context.WithoutCancel(ctx), sessionID, message.RoleAssistant, reply)
	if err != nil {
		e.metrics.StoreError(string(StageAppendAssistant))
		return reply, &TurnError{Kind: ErrStoreUnavailable, Stage: StageAppendAssistant, SessionID: sessionID, Err: err}
	}
	st.AdvanceCursor(assistant.Sequence)
	return reply, nil
}

// readHistory reads the session history. A read that ends before the
// cursor is retried once; if it is still short the store was truncated or
// cleared, and the cursor follows the store.
func (e *Engine) readHistory(ctx context.Context, st *session.State, sessionID string) ([]message.Turn, error) {
	history, err := e.history.ReadAll(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cur := st.Cursor()
	if cur == 0 || lastSequence(history) >= cur {
		return history, nil
	}

	history, err = e.history.ReadAll(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if last := lastSequence(history); last < cur {
		e.logger.WarnContext(ctx, "history shorter than last append, resetting cursor",
			"session", sessionID,
			"cursor", cur,
			"stored", last,
		)
		st.ResetCursor(last)
	}
	return history, nil
}

func lastSequence(turns []message.Turn) int64 {
	if len(turns) == 0 {
		return 0
	}
	return turns[len(turns)-1].Sequence
}

func (e *Engine) invoke(ctx context.Context, prompt provider.Prompt, call modelCall) (string, error) {
	ctx, span := e.tracer.Start(ctx, "engine.InvokeModel", trace.WithAttributes(
		attribute.Int("prompt.history", len(prompt.History)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	reply, err := call(ctx, prompt)
	if err == nil && reply == "" {
		err = provider.ErrEmptyReply
	}
	e.metrics.ObserveModel(err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model failed")
	}
	return reply, err
}

// storeError classifies a store failure. A failure caused by the caller's
// own cancellation before anything was saved is reported as ErrCanceled.
func (e *Engine) storeError(ctx context.Context, stage Stage, sessionID string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return &TurnError{Kind: ErrCanceled, Stage: stage, SessionID: sessionID, Err: err}
	}
	e.metrics.StoreError(string(stage))
	return &TurnError{Kind: ErrStoreUnavailable, Stage: stage, SessionID: sessionID, Err: err}
}

func (e *Engine) logTurnError(ctx context.Context, sessionID string, err error, d time.Duration) {
	attrs := []any{"session", sessionID, "error", err, "duration", d}
	var te *TurnError
	if errors.As(err, &te) {
		attrs = append(attrs, "stage", string(te.Stage))
	}
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrCanceled):
		e.logger.DebugContext(ctx, "turn rejected", attrs...)
	case errors.Is(err, ErrModelInvocation):
		e.logger.WarnContext(ctx, "turn failed", attrs...)
	default:
		e.logger.ErrorContext(ctx, "turn failed", attrs...)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrInvalidInput):
		return metrics.OutcomeInvalidInput
	case errors.Is(err, ErrCanceled):
		return metrics.OutcomeCanceled
	case errors.Is(err, ErrModelInvocation):
		return metrics.OutcomeModel
	case MessageSaved(err):
		return metrics.OutcomeReplyNotStored
	default:
		return metrics.OutcomeStore
	}
}

// SetProfile overwrites the profile of sessionID. It does not wait for an
// in-flight turn of the same session; that turn may use either profile.
// Concurrent calls for one session are applied one at a time, and the
// cached profile always matches the last value stored.
func (e *Engine) SetProfile(ctx context.Context, sessionID string, age *int, interests []string) error {
	if sessionID == "" {
		return &TurnError{Kind: ErrInvalidInput, Stage: StageValidate, Err: ErrEmptySessionID}
	}
	if age != nil && *age < 0 {
		return &TurnError{Kind: ErrInvalidInput, Stage: StageValidate, SessionID: sessionID, Err: ErrNegativeAge}
	}

	ctx, span := e.tracer.Start(ctx, "engine.SetProfile", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	p := message.NewProfile(sessionID, age, interests)
	if err := e.registry.UpsertProfile(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile write failed")
		e.logger.ErrorContext(ctx, "profile write failed", "session", sessionID, "error", err)
		return e.storeError(ctx, StageWriteProfile, sessionID, err)
	}
	e.metrics.ProfileUpdated()
	e.logger.InfoContext(ctx, "profile updated",
		"session", sessionID,
		"has_age", p.HasAge(),
		"interests", len(p.Interests),
	)
	return nil
}

// Profile returns the profile of sessionID. found is false when none was
// ever set.
func (e *Engine) Profile(ctx context.Context, sessionID string) (p message.Profile, found bool, err error) {
	if sessionID == "" {
		return message.Profile{}, false, &TurnError{Kind: ErrInvalidInput, Stage: StageValidate, Err: ErrEmptySessionID}
	}
	p, found, err = e.registry.GetOrLoadProfile(ctx, sessionID)
	if err != nil {
		return message.Profile{}, false, e.storeError(ctx, StageReadProfile, sessionID, err)
	}
	return p, found, nil
}

// History returns the stored turns of sessionID in order.
func (e *Engine) History(ctx context.Context, sessionID string) ([]message.Turn, error) {
	if sessionID == "" {
		return nil, &TurnError{Kind: ErrInvalidInput, Stage: StageValidate, Err: ErrEmptySessionID}
	}
	turns, err := e.history.ReadAll(ctx, sessionID)
	if err != nil {
		return nil, e.storeError(ctx, StageReadHistory, sessionID, err)
	}
	return turns, nil
}
