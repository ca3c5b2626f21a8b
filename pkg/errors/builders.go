// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"context"
	stderrors "errors"
	"net"
)

// InvalidArgumentf builds an InvalidArgument error.
func InvalidArgumentf(format string, args ...any) *Error { return Newf(InvalidArgument, format, args...) }

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) *Error { return Newf(NotFound, format, args...) }

// PermissionDeniedf builds a PermissionDenied error.
func PermissionDeniedf(format string, args ...any) *Error {
	return Newf(PermissionDenied, format, args...)
}

// ResourceExhaustedf builds a ResourceExhausted error.
func ResourceExhaustedf(format string, args ...any) *Error {
	return Newf(ResourceExhausted, format, args...)
}

// Unavailablef builds an Unavailable error.
func Unavailablef(format string, args ...any) *Error { return Newf(Unavailable, format, args...) }

// Internalf builds an Internal error.
func Internalf(format string, args ...any) *Error { return Newf(Internal, format, args...) }

// AlreadyExistsf builds an AlreadyExists error.
func AlreadyExistsf(format string, args ...any) *Error { return Newf(AlreadyExists, format, args...) }

// WrapError converts a generic error into a structured *Error, classifying
// context cancellation and network failures as Unavailable (so retry.Do and
// the RPC client can distinguish "try again" from "give up"), and anything
// else as Internal.
func WrapError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if stderrors.As(err, &e) {
		return e
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return Wrap(Unavailable, "operation timed out or was canceled", err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return Wrap(Unavailable, "network error", err)
	}

	return Wrap(Internal, err.Error(), err)
}
