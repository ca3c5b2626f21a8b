// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn wraps a *websocket.Conn with the envelope/reply framing shared by
// Server and Client. gorilla/websocket connections support one concurrent
// reader and one concurrent writer; writeMu serializes the writer side
// since multiple goroutines may reply or call concurrently on the same
// connection, mirroring the single-connection-per-worker model of
// pkg/streaming/websocket.go's WebSocketServer.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// NewConn wraps an established websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// WriteEnvelope sends a request frame.
func (c *Conn) WriteEnvelope(e *Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(e)
}

// WriteReply sends a response frame.
func (c *Conn) WriteReply(r *Reply) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(r)
}

// ReadEnvelope blocks for the next request frame.
func (c *Conn) ReadEnvelope() (*Envelope, error) {
	var e Envelope
	if err := c.ws.ReadJSON(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ReadReply blocks for the next response frame.
func (c *Conn) ReadReply() (*Reply, error) {
	var r Reply
	if err := c.ws.ReadJSON(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}
