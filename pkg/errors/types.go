// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the structured error type shared across the RPC
// boundary between melon-master and melon-worker.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is one of the RPC error kinds named in spec §7.
type Kind string

const (
	// InvalidArgument marks a malformed request (bad resource request, empty user, etc).
	InvalidArgument Kind = "INVALID_ARGUMENT"
	// NotFound marks an unknown job or node id.
	NotFound Kind = "NOT_FOUND"
	// PermissionDenied marks a user mismatch on cancel/extend.
	PermissionDenied Kind = "PERMISSION_DENIED"
	// ResourceExhausted marks a worker rejecting an oversize assignment.
	ResourceExhausted Kind = "RESOURCE_EXHAUSTED"
	// Unavailable marks an unreachable peer or a downstream RPC timeout.
	Unavailable Kind = "UNAVAILABLE"
	// Internal marks a store write failure or invariant violation.
	Internal Kind = "INTERNAL"
	// AlreadyExists marks a conflicting identity (not named directly in §7;
	// a worker returns it for an AssignJob whose job id it already runs).
	AlreadyExists Kind = "ALREADY_EXISTS"
)

// Error is the structured error returned by every master and worker RPC
// handler and propagated across the wire by internal/rpc.
type Error struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same Kind, so that
// errors.Is(err, errors.NotFound) style checks work with a Kind sentinel
// wrapped via New.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsRetryable reports whether the caller may usefully retry the operation.
func (e *Error) IsRetryable() bool {
	return e.Kind == Unavailable
}

// New creates a structured error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Timestamp: time.Now()}
}

// Newf creates a structured error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap creates a structured error of the given kind carrying cause as its
// Unwrap() target.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Timestamp: time.Now(), Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, or Internal
// otherwise. A nil err returns "" with ok=false.
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return "", false
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return Internal, false
}

// HTTPStatus maps a Kind to the HTTP status code internal/httpapi should
// return for it.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case PermissionDenied:
		return http.StatusForbidden
	case ResourceExhausted:
		return http.StatusTooManyRequests
	case Unavailable:
		return http.StatusServiceUnavailable
	case AlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
