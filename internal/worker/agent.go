// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jontk/melon/internal/cgroup"
	"github.com/jontk/melon/internal/node"
	"github.com/jontk/melon/internal/rpc"
	"github.com/jontk/melon/pkg/config"
	melonerrors "github.com/jontk/melon/pkg/errors"
	"github.com/jontk/melon/pkg/logging"
	"github.com/jontk/melon/pkg/metrics"
)

// Agent is melon-worker's top-level daemon: it registers with the master,
// keeps a heartbeat alive, and runs an RPC server accepting the master's
// AssignJob/CancelJob/ExtendJob calls, dispatching each to a per-job
// supervisor (§4.5).
type Agent struct {
	cfg       *config.WorkerConfig
	logger    logging.Logger
	metr      metrics.Collector
	cgroupMgr *cgroup.Manager
	reg       *registry

	masterClient *rpc.Client

	mu     sync.Mutex
	nodeID string
	runCtx context.Context

	// selfMu guards self, the worker's own free-capacity ledger. AssignJob
	// debits it before accepting a job and credits it back once the job's
	// supervisor exits, mirroring the master's node bookkeeping (§4.5's
	// belt-and-braces capacity check: the master's placement decision can be
	// stale by the time AssignJob arrives).
	selfMu sync.Mutex
	self   *node.Node
}

// New creates an Agent. Call Run to register with the master and start serving.
func New(cfg *config.WorkerConfig, logger logging.Logger, metr metrics.Collector) *Agent {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if metr == nil {
		metr = &metrics.NoOpCollector{}
	}

	total := node.Resources{CPUCount: cfg.TotalCPUCount, MemoryBytes: cfg.TotalMemoryBytes}
	return &Agent{
		cfg:       cfg,
		logger:    logger,
		metr:      metr,
		cgroupMgr: cgroup.NewManager(cfg.CgroupRoot),
		reg:       newRegistry(),
		self:      node.New("self", "", total, 0),
	}
}

// Run dials the master, registers this node, then blocks serving the
// worker RPC surface and sending heartbeats until ctx is cancelled. On
// shutdown it cancels every in-flight job's supervisor and waits for each
// to report a best-effort FAILED result before returning, so the master can
// release the node's job reservations without waiting out the liveness
// sweep (§5).
func (a *Agent) Run(ctx context.Context) error {
	if a.cfg.CgroupEnabled {
		a.cgroupMgr.SweepStale()
	}

	client, err := rpc.Dial("ws://" + a.cfg.MasterAddr + "/rpc")
	if err != nil {
		return melonerrors.Wrap(melonerrors.Unavailable, "dial master", err)
	}
	a.masterClient = client
	defer a.masterClient.Close()

	var resp rpc.RegisterNodeResponse
	registerReq := rpc.RegisterNodeRequest{
		Address: a.cfg.ListenAddr,
		Total:   node.Resources{CPUCount: a.cfg.TotalCPUCount, MemoryBytes: a.cfg.TotalMemoryBytes},
	}
	if err := a.masterClient.Call(ctx, rpc.MethodRegisterNode, registerReq, &resp); err != nil {
		return melonerrors.Wrap(melonerrors.Unavailable, "register with master", err)
	}

	a.mu.Lock()
	a.nodeID = resp.NodeID
	a.mu.Unlock()
	a.logger.Info("registered with master", "node_id", resp.NodeID, "master_addr", a.cfg.MasterAddr)

	rpcServer := newWorkerRPCServer(a)
	mux := http.NewServeMux()
	mux.Handle("/rpc", rpcServer)
	httpServer := &http.Server{Addr: a.cfg.ListenAddr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)

	a.mu.Lock()
	a.runCtx = ctx
	a.mu.Unlock()

	g.Go(func() error {
		a.runHeartbeatLoop(ctx)
		return ctx.Err()
	})

	g.Go(func() error {
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			return melonerrors.Wrap(melonerrors.Internal, "worker rpc listener failed", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return httpServer.Close()
	})

	err = g.Wait()
	a.awaitSupervisors()
	return err
}

// awaitSupervisors cancels every currently-assigned job's supervisor and
// blocks until each has exited and reported a best-effort FAILED result, so
// a graceful shutdown doesn't block on a job's full wall-clock deadline and
// the master can release the node's reservations promptly (§5).
func (a *Agent) awaitSupervisors() {
	supervisors := a.reg.all()
	for _, s := range supervisors {
		s.cancel()
	}
	for _, s := range supervisors {
		s.wait()
	}
}

func (a *Agent) currentNodeID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nodeID
}

// shutdownCtx returns the context supervisors should run under: the Agent's
// Run context once Run has started, or a background context for tests that
// construct an Agent and call handlers directly without Run.
func (a *Agent) shutdownCtx() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runCtx != nil {
		return a.runCtx
	}
	return context.Background()
}
