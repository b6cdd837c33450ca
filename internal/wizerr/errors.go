// Package wizerr implements the typed error taxonomy and boundary
// normalization described for the Wizard gateway: components return typed
// errors internally, and a single Normalize call per external boundary maps
// any raw error that escapes into one of a closed set of codes.
package wizerr

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a typed backend error code.
type Code string

const (
	CodeNotFound             Code = "not_found"
	CodeInvalidInput         Code = "invalid_input"
	CodeAuthRequired         Code = "auth_required"
	CodeConflict             Code = "conflict"
	CodeUnsupportedOperation Code = "unsupported_operation"
	CodeTimeout              Code = "timeout"
	CodeBackendUnavailable   Code = "backend_unavailable"
	CodeInternal             Code = "internal"
)

// retryable marks the codes a caller may safely retry.
var retryable = map[Code]bool{
	CodeTimeout:            true,
	CodeBackendUnavailable: true,
}

// Error is the normalized error shape returned at component boundaries.
type Error struct {
	Code      Code   `json:"code"`
	Backend   string `json:"backend,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs a typed error for the given code.
func New(code Code, backend, message string) *Error {
	return &Error{Code: code, Backend: backend, Message: message, Retryable: retryable[code]}
}

func NotFound(backend, message string) *Error     { return New(CodeNotFound, backend, message) }
func InvalidInput(backend, message string) *Error  { return New(CodeInvalidInput, backend, message) }
func AuthRequired(backend, message string) *Error  { return New(CodeAuthRequired, backend, message) }
func Conflict(backend, message string) *Error      { return New(CodeConflict, backend, message) }
func Unsupported(backend, message string) *Error   { return New(CodeUnsupportedOperation, backend, message) }
func Timeout(backend, message string) *Error       { return New(CodeTimeout, backend, message) }
func BackendDown(backend, message string) *Error   { return New(CodeBackendUnavailable, backend, message) }
func Internal(backend, message string) *Error      { return New(CodeInternal, backend, message) }

// lexicalRules maps message substrings to codes, applied in order. This is
// the "last-resort heuristic" Design Note §9 permits for errors that escape
// a boundary without already being typed.
var lexicalRules = []struct {
	substr string
	code   Code
}{
	{"not found", CodeNotFound},
	{"no such", CodeNotFound},
	{"timed out", CodeTimeout},
	{"timeout", CodeTimeout},
	{"deadline exceeded", CodeTimeout},
	{"already exists", CodeConflict},
	{"conflict", CodeConflict},
	{"permission denied", CodeAuthRequired},
	{"unauthorized", CodeAuthRequired},
	{"unauthenticated", CodeAuthRequired},
	{"unsupported", CodeUnsupportedOperation},
	{"not implemented", CodeUnsupportedOperation},
	{"unavailable", CodeBackendUnavailable},
	{"connection refused", CodeBackendUnavailable},
}

// Normalize maps any error into the typed Error shape. If err is already a
// *Error it is returned unchanged — normalization happens once per boundary,
// never re-wrapped by an inner caller that already typed it.
func Normalize(err error, backend string) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, rule := range lexicalRules {
		if strings.Contains(lower, rule.substr) {
			return New(rule.code, backend, msg)
		}
	}
	return New(CodeInternal, backend, msg)
}
