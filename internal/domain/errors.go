package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeInvalidInput          Code = "invalid_input"
	CodeInsufficientWords     Code = "insufficient_words"
	CodeStrategyUnavailable   Code = "strategy_unavailable"
	CodeStrategyFailure       Code = "strategy_failure"
	CodeMalformedResponse     Code = "malformed_response"
	CodeValidationFailed      Code = "validation_failed"
	CodeTimeout               Code = "timeout"
	CodeSessionNotFound       Code = "session_not_found"
	CodeLatestSessionDisabled Code = "latest_session_disabled"
)

// Error is the typed failure returned by the session store and the
// recommendation pipeline. Optional fields are populated per Code.
type Error struct {
	Code    Code
	Message string

	// Strategy is the strategy identity involved, if any.
	Strategy string
	// CauseType is the Go type name of a wrapped strategy error.
	CauseType string
	// Available lists strategies that can currently serve requests.
	Available []string
	// Rules lists the validation rules that failed critically.
	Rules []string
	// Candidate is the rejected candidate, kept for diagnostics.
	Candidate *Candidate

	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same code, so callers can
// match against sentinel values like ErrSessionNotFound.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidInput        = &Error{Code: CodeInvalidInput}
	ErrInsufficientWords   = &Error{Code: CodeInsufficientWords}
	ErrStrategyUnavailable = &Error{Code: CodeStrategyUnavailable}
	ErrStrategyFailure     = &Error{Code: CodeStrategyFailure}
	ErrMalformedResponse   = &Error{Code: CodeMalformedResponse}
	ErrValidationFailed    = &Error{Code: CodeValidationFailed}
	ErrTimeout             = &Error{Code: CodeTimeout}
	ErrSessionNotFound     = &Error{Code: CodeSessionNotFound}
)

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// InvalidInput builds an input validation error.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// InsufficientWords reports that fewer than GroupSize words remain.
func InsufficientWords(n int) *Error {
	return &Error{
		Code:    CodeInsufficientWords,
		Message: fmt.Sprintf("insufficient words: need at least %d, have %d", GroupSize, n),
	}
}

// SessionNotFound reports an unknown session identifier.
func SessionNotFound(id string) *Error {
	return &Error{Code: CodeSessionNotFound, Message: fmt.Sprintf("session %q not found", id)}
}

// StrategyUnavailable reports a strategy that is not configured or cannot be built.
func StrategyUnavailable(id string, available []string, cause error) *Error {
	return &Error{
		Code:      CodeStrategyUnavailable,
		Message:   fmt.Sprintf("strategy %q is unavailable (available: %s)", id, strings.Join(available, ", ")),
		Strategy:  id,
		Available: available,
		Err:       cause,
	}
}

// StrategyFailure wraps an unrecognized strategy error.
func StrategyFailure(id string, cause error) *Error {
	return &Error{
		Code:      CodeStrategyFailure,
		Message:   fmt.Sprintf("strategy %q failed", id),
		Strategy:  id,
		CauseType: fmt.Sprintf("%T", cause),
		Err:       cause,
	}
}

// MalformedResponse reports a strategy result with no recognizable shape.
func MalformedResponse(id, reason string) *Error {
	return &Error{
		Code:     CodeMalformedResponse,
		Message:  fmt.Sprintf("strategy %q returned a malformed response: %s", id, reason),
		Strategy: id,
	}
}

// ValidationFailed reports a candidate rejected by the validation gate.
func ValidationFailed(id string, rules []string, c *Candidate) *Error {
	msg := "recommendation failed validation"
	if len(rules) > 0 {
		msg += ": " + strings.Join(rules, ", ")
	}
	return &Error{
		Code:      CodeValidationFailed,
		Message:   msg,
		Strategy:  id,
		Rules:     rules,
		Candidate: c,
	}
}

// Timeout reports a caller-imposed deadline expiring during generation.
func Timeout(id string, cause error) *Error {
	return &Error{
		Code:     CodeTimeout,
		Message:  fmt.Sprintf("strategy %q timed out", id),
		Strategy: id,
		Err:      cause,
	}
}
