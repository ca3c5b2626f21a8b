// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"encoding/json"

	melonerrors "github.com/jontk/melon/pkg/errors"
)

// Envelope is the wire frame for one websocket text message carrying a
// request: {Type, ID, Payload}. Every RPC in §6 is one such message paired
// with a Reply carrying the same ID.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload mirrors melonerrors.Error across the wire so the client can
// reconstruct a structured *errors.Error from the reply.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Reply is the wire frame for a response: {ID, Payload, Error}. Error is
// nil on success.
type Reply struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// encodeError converts a Go error into a wire ErrorPayload, classifying it
// through melonerrors.WrapError so transport-level errors surface as
// Unavailable rather than a bare Internal.
func encodeError(err error) *ErrorPayload {
	if err == nil {
		return nil
	}
	me := melonerrors.WrapError(err)
	return &ErrorPayload{Kind: string(me.Kind), Message: me.Message}
}

// decodeError reconstructs a *melonerrors.Error from a wire ErrorPayload.
func decodeError(ep *ErrorPayload) error {
	if ep == nil {
		return nil
	}
	return melonerrors.New(melonerrors.Kind(ep.Kind), ep.Message)
}

// unknownMethodError is returned when an envelope names a method with no
// registered handler.
func unknownMethodError(method string) error {
	return melonerrors.InvalidArgumentf("unknown rpc method %q", method)
}
