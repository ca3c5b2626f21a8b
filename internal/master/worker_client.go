// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package master

import (
	"context"

	"github.com/jontk/melon/internal/rpc"
)

// WorkerClient is the subset of the worker RPC surface (§6) the master
// calls to place, cancel, and extend jobs. Backed by *rpc.Client in
// production and by a fake in scheduler_test.go.
type WorkerClient interface {
	AssignJob(ctx context.Context, req rpc.AssignJobRequest) error
	CancelJob(ctx context.Context, req rpc.CancelJobRequest) error
	ExtendJob(ctx context.Context, req rpc.ExtendJobRequest) error
	Close() error
}

type rpcWorkerClient struct {
	c *rpc.Client
}

// DialWorker opens a typed RPC connection to a worker's listen address.
func DialWorker(address string) (WorkerClient, error) {
	c, err := rpc.Dial("ws://" + address + "/rpc")
	if err != nil {
		return nil, err
	}
	return &rpcWorkerClient{c: c}, nil
}

func (w *rpcWorkerClient) AssignJob(ctx context.Context, req rpc.AssignJobRequest) error {
	return w.c.Call(ctx, rpc.MethodAssignJob, req, &rpc.AssignJobResponse{})
}

func (w *rpcWorkerClient) CancelJob(ctx context.Context, req rpc.CancelJobRequest) error {
	return w.c.Call(ctx, rpc.MethodCancelJob, req, &rpc.CancelJobResponse{})
}

func (w *rpcWorkerClient) ExtendJob(ctx context.Context, req rpc.ExtendJobRequest) error {
	return w.c.Call(ctx, rpc.MethodExtendJob, req, &rpc.ExtendJobResponse{})
}

func (w *rpcWorkerClient) Close() error {
	return w.c.Close()
}

// workerClient returns a cached connection to address, dialing on first
// use. A connection that later errors is evicted so the next call redials,
// rather than wedging on a dead socket forever.
func (s *Scheduler) workerClient(address string) (WorkerClient, error) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if c, ok := s.clients[address]; ok {
		return &evictingClient{addr: address, inner: c, s: s}, nil
	}

	c, err := s.dial(address)
	if err != nil {
		return nil, err
	}
	s.clients[address] = c
	return &evictingClient{addr: address, inner: c, s: s}, nil
}

func (s *Scheduler) evict(address string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, address)
}

// evictingClient wraps a cached WorkerClient and drops it from the cache on
// any error, so a worker that dropped its connection gets
// redialed on the next placement or cancel attempt rather than failing
// forever against a stale socket.
type evictingClient struct {
	addr  string
	inner WorkerClient
	s     *Scheduler
}

func (w *evictingClient) AssignJob(ctx context.Context, req rpc.AssignJobRequest) error {
	return w.evictOnFailure(w.inner.AssignJob(ctx, req))
}

func (w *evictingClient) CancelJob(ctx context.Context, req rpc.CancelJobRequest) error {
	return w.evictOnFailure(w.inner.CancelJob(ctx, req))
}

func (w *evictingClient) ExtendJob(ctx context.Context, req rpc.ExtendJobRequest) error {
	return w.evictOnFailure(w.inner.ExtendJob(ctx, req))
}

func (w *evictingClient) Close() error { return w.inner.Close() }

func (w *evictingClient) evictOnFailure(err error) error {
	if err != nil {
		w.s.evict(w.addr)
	}
	return err
}
