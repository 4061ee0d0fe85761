package main

import (
	"errors"
	"fmt"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// Exit codes.
const (
	exitCodeDrift     = 2 // --fail-on-drift and drift was detected
	exitCodeBadInput  = 3 // missing or malformed input
	exitCodeAPIError  = 4 // model call failed or the ensemble had too few results
	exitCodeBadOutput = 5 // model output stayed invalid after the repair attempt
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

func badInput(format string, args ...any) error {
	return exitWith(exitCodeBadInput, fmt.Errorf(format, args...))
}

// analysisExit classifies an analysis failure into an exit code.
func analysisExit(err error) error {
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	switch schema.CodeOf(err) {
	case schema.CodeInvalidRequest:
		return exitWith(exitCodeBadInput, err)
	case schema.CodeModelOutputInvalid, schema.CodeEmptyReasoningCards:
		return exitWith(exitCodeBadOutput, err)
	default:
		return exitWith(exitCodeAPIError, err)
	}
}
