// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/jontk/melon/pkg/logging"
)

// HandlerFunc handles one decoded request payload and returns a response
// payload (marshaled by the caller) or an error.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Server dispatches incoming envelopes to registered method handlers over a
// single long-lived connection. Both melon-master (accepting worker
// connections) and melon-worker (accepting the master's three RPCs) use the
// same Server type, grounded on pkg/streaming/websocket.go's
// WebSocketServer.HandleWebSocket shape.
type Server struct {
	upgrader websocket.Upgrader
	handlers map[string]HandlerFunc
	logger   logging.Logger
}

// NewServer creates a Server with no origin restriction. Production
// deployments should restrict this behind a reverse proxy since §1 scopes
// authentication out.
func NewServer(logger logging.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Handle registers the handler for a method name.
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.handlers[method] = fn
}

// ServeHTTP upgrades the connection and serves requests until the peer
// disconnects or ctx is done.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	conn := NewConn(ws)
	s.Serve(r.Context(), conn)
}

// Serve reads envelopes off conn and dispatches them to registered
// handlers, one goroutine per request so a slow handler doesn't block
// reading the next frame. It returns when ctx is done or the connection
// errors.
func (s *Server) Serve(ctx context.Context, conn *Conn) {
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, err := conn.ReadEnvelope()
		if err != nil {
			return
		}

		go s.dispatch(ctx, conn, env)
	}
}

func (s *Server) dispatch(ctx context.Context, conn *Conn, env *Envelope) {
	handler, ok := s.handlers[env.Type]
	if !ok {
		s.reply(conn, env.ID, nil, unknownMethodError(env.Type))
		return
	}

	result, err := handler(ctx, env.Payload)
	s.reply(conn, env.ID, result, err)
}

func (s *Server) reply(conn *Conn, id string, result any, err error) {
	reply := &Reply{ID: id, Error: encodeError(err)}

	if err == nil && result != nil {
		payload, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			reply.Error = encodeError(marshalErr)
		} else {
			reply.Payload = payload
		}
	}

	if writeErr := conn.WriteReply(reply); writeErr != nil {
		s.logger.Warn("failed to write rpc reply", "error", writeErr)
	}
}
