package engine

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of them,
// so callers branch with errors.Is.
var (
	// ErrInvalidInput indicates a missing session id or malformed profile.
	ErrInvalidInput = errors.New("engine: invalid input")

	// ErrStoreUnavailable indicates a history or profile store failure.
	ErrStoreUnavailable = errors.New("engine: store unavailable")

	// ErrModelInvocation indicates the model gateway failed, timed out or
	// returned an unusable reply.
	ErrModelInvocation = errors.New("engine: model invocation failed")

	// ErrSynthesis indicates the speech synthesizer failed. Streaming
	// delivery degrades to text when it happens.
	ErrSynthesis = errors.New("engine: synthesis failed")

	// ErrCanceled indicates the caller gave up before its message was saved.
	ErrCanceled = errors.New("engine: turn canceled")
)

// Causes reported inside a TurnError.
var (
	ErrEmptySessionID = errors.New("empty session id")
	ErrNegativeAge    = errors.New("age must not be negative")
)

// Stage names the step of a turn at which a failure happened.
type Stage string

// Turn stages in execution order, plus the profile write.
const (
	StageValidate        Stage = "validate"
	StageAcquireLock     Stage = "acquire_lock"
	StageReadProfile     Stage = "read_profile"
	StageReadHistory     Stage = "read_history"
	StageAppendHuman     Stage = "append_human"
	StageInvokeModel     Stage = "invoke_model"
	StageAppendAssistant Stage = "append_assistant"
	StageSynthesize      Stage = "synthesize"
	StageWriteProfile    Stage = "write_profile"
)

// TurnError describes a failed engine operation.
type TurnError struct {
	Kind      error
	Stage     Stage
	SessionID string
	Err       error
}

func (e *TurnError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v at %s (session %q)", e.Kind, e.Stage, e.SessionID)
	}
	return fmt.Sprintf("%v at %s (session %q): %v", e.Kind, e.Stage, e.SessionID, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *TurnError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// MessageSaved reports whether the human turn of a ProcessTurn call that
// returned err is durable. It is true for nil.
func MessageSaved(err error) bool {
	if err == nil {
		return true
	}
	var te *TurnError
	if !errors.As(err, &te) {
		return false
	}
	switch te.Stage {
	case StageInvokeModel, StageAppendAssistant, StageSynthesize:
		return true
	}
	return false
}

// ReplyRecorded reports whether the assistant reply of a ProcessTurn call
// that returned err is durable. It is true for nil.
func ReplyRecorded(err error) bool {
	if err == nil {
		return true
	}
	var te *TurnError
	if errors.As(err, &te) && te.Stage == StageSynthesize {
		return true
	}
	return false
}
