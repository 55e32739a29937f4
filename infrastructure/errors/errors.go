// Package errors provides the Starlane error taxonomy: structured errors
// carrying a category code, an HTTP-shaped status for ReflectedCore
// responses, and optional details.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a Starlane error category.
type ErrorCode string

const (
	CodeSpatial     ErrorCode = "SPATIAL"
	CodeNotFound    ErrorCode = "NOT_FOUND"
	CodeDupe        ErrorCode = "DUPE"
	CodeForbidden   ErrorCode = "FORBIDDEN"
	CodeTimeout     ErrorCode = "TIMEOUT"
	CodeUnreachable ErrorCode = "UNREACHABLE"
	CodePending     ErrorCode = "PENDING"
	CodeFoundation  ErrorCode = "FOUNDATION_ERR"
	CodeDependency  ErrorCode = "DEPENDENCY_ERR"
	CodeProvider    ErrorCode = "PROVIDER_ERR"
	CodeFatal       ErrorCode = "FATAL"
)

// httpStatusByCode is the fixed 1:1 mapping from ErrorCode to HTTP status.
var httpStatusByCode = map[ErrorCode]int{
	CodeSpatial:     http.StatusBadRequest,
	CodeNotFound:    http.StatusNotFound,
	CodeDupe:        http.StatusConflict,
	CodeForbidden:   http.StatusForbidden,
	CodeTimeout:     http.StatusGatewayTimeout,
	CodeUnreachable: http.StatusServiceUnavailable,
	CodePending:     http.StatusServiceUnavailable,
	CodeFoundation:  http.StatusInternalServerError,
	CodeDependency:  http.StatusInternalServerError,
	CodeProvider:    http.StatusInternalServerError,
	CodeFatal:       http.StatusInternalServerError,
}

// ActionRequestItem is one step of operator guidance, optionally linking out
// to documentation.
type ActionRequestItem struct {
	Text    string `json:"text"`
	Website string `json:"website,omitempty"`
}

// ActionRequest is operator-facing guidance attached to a Pending error.
type ActionRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Items       []ActionRequestItem `json:"items"`
}

// StarlaneError is the structured error type used across the codebase. It
// implements error, carries the HTTP-shaped status for ReflectedCore
// responses, and optionally an ActionRequest for Pending errors.
type StarlaneError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Action     *ActionRequest         `json:"action,omitempty"`
	Err        error                  `json:"-"`
}

func (e *StarlaneError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *StarlaneError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value pair for diagnostics.
func (e *StarlaneError) WithDetails(key string, value interface{}) *StarlaneError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithAction attaches operator-facing guidance; only meaningful on Pending
// errors but not restricted to them.
func (e *StarlaneError) WithAction(a *ActionRequest) *StarlaneError {
	e.Action = a
	return e
}

// New builds a StarlaneError for a category, resolving its HTTP status from
// the fixed taxonomy mapping.
func New(code ErrorCode, message string) *StarlaneError {
	return &StarlaneError{Code: code, Message: message, HTTPStatus: httpStatusByCode[code]}
}

// Wrap builds a StarlaneError that records an underlying cause.
func Wrap(code ErrorCode, message string, err error) *StarlaneError {
	return &StarlaneError{Code: code, Message: message, HTTPStatus: httpStatusByCode[code], Err: err}
}

// Spatial: malformed address, selector, kind template, or wire envelope.
func Spatial(message string) *StarlaneError { return New(CodeSpatial, message) }

// NotFound: registry miss on a point.
func NotFound(point string) *StarlaneError {
	return New(CodeNotFound, "not found").WithDetails("point", point)
}

// Dupe: address collision on Create with strategy != Ensure.
func Dupe(point string) *StarlaneError {
	return New(CodeDupe, "duplicate address").WithDetails("point", point)
}

// Forbidden: access check failed or layer violation.
func Forbidden(message string) *StarlaneError { return New(CodeForbidden, message) }

// Timeout: an I/O deadline was exceeded.
func Timeout(operation string) *StarlaneError {
	return New(CodeTimeout, "operation timed out").WithDetails("operation", operation)
}

// Unreachable: a probe failed to observe state (distinct from failure).
func Unreachable(kind, detail string) *StarlaneError {
	return New(CodeUnreachable, detail).WithDetails("kind", kind)
}

// Pending: operator input is needed; carries an ActionRequest. Never retried
// automatically.
func Pending(action *ActionRequest) *StarlaneError {
	return New(CodePending, action.Title).WithAction(action)
}

// FoundationErr: a Foundation lifecycle failure, annotated with the
// offending FoundationKind.
func FoundationErr(kind string, err error) *StarlaneError {
	return Wrap(CodeFoundation, "foundation error", err).WithDetails("kind", kind)
}

// DependencyErr: a Dependency lifecycle failure, annotated with the
// offending DependencyKind.
func DependencyErr(kind string, err error) *StarlaneError {
	return Wrap(CodeDependency, "dependency error", err).WithDetails("kind", kind)
}

// ProviderErr: a Provider lifecycle failure, annotated with the offending
// ProviderKind.
func ProviderErr(kind string, err error) *StarlaneError {
	return Wrap(CodeProvider, "provider error", err).WithDetails("kind", kind)
}

// Fatal: an invariant was broken (e.g. a registry constraint violation).
// Triggers registered shutdown hooks at the call site.
func Fatal(message string, err error) *StarlaneError {
	return Wrap(CodeFatal, message, err)
}

// Is reports whether err is a StarlaneError of the given code.
func Is(err error, code ErrorCode) bool {
	var se *StarlaneError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// As extracts a *StarlaneError from an error chain.
func As(err error) *StarlaneError {
	var se *StarlaneError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// HTTPStatus returns the HTTP-shaped status for an arbitrary error, 500 when
// it is not a StarlaneError.
func HTTPStatus(err error) int {
	if se := As(err); se != nil {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}
