package schema

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode is the closed set of failure kinds surfaced to callers.
type ErrorCode string

const (
	// Per-run, recoverable: the run is excluded from consensus.
	CodeModelTimeout       ErrorCode = "MODEL_TIMEOUT"
	CodeModelOutputInvalid ErrorCode = "MODEL_OUTPUT_INVALID"
	CodeEnsembleRunFailed  ErrorCode = "ENSEMBLE_RUN_FAILED"

	// Fatal to a request.
	CodeEnsembleFailed      ErrorCode = "MODEL_ENSEMBLE_FAILED"
	CodeInsufficientResults ErrorCode = "INSUFFICIENT_RESULTS"
	CodeEmptyReasoningCards ErrorCode = "EMPTY_REASONING_CARDS"

	// Collaborator failures.
	CodeAPIKeyMissing   ErrorCode = "API_KEY_MISSING"
	CodeDemoUnavailable ErrorCode = "DEMO_UNAVAILABLE"
	CodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeInternal        ErrorCode = "INTERNAL"
)

// Error is a classified failure. Two Errors match under errors.Is when their
// codes are equal, so the sentinels below work as targets.
type Error struct {
	Code    ErrorCode
	Mode    string // ensemble mode, empty outside the dispatcher
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Mode != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Mode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError builds a classified error.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

var (
	ErrModelTimeout        = &Error{Code: CodeModelTimeout, Message: "model request timed out"}
	ErrModelOutputInvalid  = &Error{Code: CodeModelOutputInvalid, Message: "model output did not match required JSON schema"}
	ErrInsufficientResults = &Error{Code: CodeInsufficientResults, Message: "need at least 2 successful results for consensus"}
	ErrEmptyReasoningCards = &Error{Code: CodeEmptyReasoningCards, Message: "reasoning_cards_empty"}
	ErrAPIKeyMissing       = &Error{Code: CodeAPIKeyMissing, Message: "model API key is not set in the runtime environment"}
)

// CodeOf classifies err. Context deadline errors count as timeouts; anything
// unclassified yields the empty code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeModelTimeout
	}
	return ""
}
