// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	melonctx "github.com/jontk/melon/pkg/context"
	melonerrors "github.com/jontk/melon/pkg/errors"
)

// Client issues typed RPCs over a single long-lived websocket connection
// and matches replies to the call that's waiting on them by envelope id.
// The same type backs both the master's worker-proxy (AssignJob, CancelJob,
// ExtendJob) and the worker's master-proxy (everything on the master RPC
// surface), each over its own connection.
type Client struct {
	conn *Conn

	mu      sync.Mutex
	pending map[string]chan *Reply
	closed  chan struct{}
}

// Dial opens a websocket connection to url and starts the Client's read
// loop.
func Dial(url string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, melonerrors.Unavailablef("dial %s: %v", url, err)
	}
	return NewClient(NewConn(ws)), nil
}

// NewClient wraps an already-established connection and starts the
// Client's read loop. Dial uses it after opening the websocket.
func NewClient(conn *Conn) *Client {
	c := &Client{
		conn:    conn,
		pending: make(map[string]chan *Reply),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.closed)
	for {
		reply, err := c.conn.ReadReply()
		if err != nil {
			c.failAllPending(melonerrors.Unavailablef("rpc connection lost: %v", err))
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[reply.ID]
		delete(c.pending, reply.ID)
		c.mu.Unlock()

		if ok {
			ch <- reply
		}
	}
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- &Reply{ID: id, Error: encodeError(err)}
		delete(c.pending, id)
	}
}

// Call marshals req, sends it as method, and unmarshals the reply into
// resp (which may be nil for empty-reply methods). Every call is bounded by
// ctx, defaulting to melonctx.DefaultRPCTimeout when ctx carries no
// deadline, per §5's "every outbound RPC has a bounded timeout".
func (c *Client) Call(ctx context.Context, method string, req, resp any) error {
	ctx, cancel := melonctx.EnsureTimeout(ctx, melonctx.DefaultRPCTimeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return melonerrors.Internalf("marshal %s request: %v", method, err)
	}

	id := uuid.New().String()
	ch := make(chan *Reply, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.conn.WriteEnvelope(&Envelope{Type: method, ID: id, Payload: payload}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return melonerrors.Wrap(melonerrors.Unavailable, melonctx.WrapCallError(err, method, timeoutOf(ctx)).Error(), err)
	}

	select {
	case reply := <-ch:
		if reply.Error != nil {
			return decodeError(reply.Error)
		}
		if resp != nil && len(reply.Payload) > 0 {
			if err := json.Unmarshal(reply.Payload, resp); err != nil {
				return melonerrors.Internalf("unmarshal %s response: %v", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return melonerrors.Wrap(melonerrors.Unavailable, melonctx.WrapCallError(ctx.Err(), method, timeoutOf(ctx)).Error(), ctx.Err())
	case <-c.closed:
		return melonerrors.Unavailablef("%s: rpc connection closed", method)
	}
}

// Close closes the underlying connection and fails any in-flight calls.
func (c *Client) Close() error {
	return c.conn.Close()
}

func timeoutOf(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return melonctx.DefaultRPCTimeout
	}
	return time.Until(deadline)
}
