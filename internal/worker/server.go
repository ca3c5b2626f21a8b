// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jontk/melon/internal/job"
	"github.com/jontk/melon/internal/node"
	"github.com/jontk/melon/internal/rpc"
	melonerrors "github.com/jontk/melon/pkg/errors"
	"github.com/jontk/melon/pkg/retry"
)

// newWorkerRPCServer builds the *rpc.Server exposing the worker RPC surface
// (§6): AssignJob, CancelJob, ExtendJob, each called by the master.
func newWorkerRPCServer(a *Agent) *rpc.Server {
	srv := rpc.NewServer(a.logger)
	srv.Handle(rpc.MethodAssignJob, a.handleAssignJob)
	srv.Handle(rpc.MethodCancelJob, a.handleCancelJob)
	srv.Handle(rpc.MethodExtendJob, a.handleExtendJob)
	return srv
}

func (a *Agent) handleAssignJob(ctx context.Context, payload json.RawMessage) (any, error) {
	var req rpc.AssignJobRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, melonerrors.InvalidArgumentf("malformed AssignJob payload: %v", err)
	}

	if _, exists := a.reg.get(req.JobID); exists {
		return nil, melonerrors.AlreadyExistsf("job %d is already assigned to this worker", req.JobID)
	}

	want := node.Resources{CPUCount: req.Resources.CPUCount, MemoryBytes: req.Resources.MemoryBytes}

	a.selfMu.Lock()
	if !a.self.Fits(want) {
		a.selfMu.Unlock()
		return nil, melonerrors.ResourceExhaustedf("job %d requests more than this worker's free capacity", req.JobID)
	}
	if err := a.self.Debit(req.JobID, want); err != nil {
		a.selfMu.Unlock()
		return nil, err
	}
	a.selfMu.Unlock()

	deadline := time.Now().Unix() + int64(req.Resources.TimeMinutes)*60
	s := newSupervisor(req.JobID, req, deadline, a.cgroupMgr, a.cfg.KillGracePeriod, a.logger, a.reportResult)
	a.reg.add(req.JobID, s)

	go func() {
		s.run(a.shutdownCtx())
		a.reg.remove(req.JobID)

		a.selfMu.Lock()
		a.self.Credit(req.JobID, want)
		a.selfMu.Unlock()
	}()

	return rpc.AssignJobResponse{}, nil
}

func (a *Agent) handleCancelJob(ctx context.Context, payload json.RawMessage) (any, error) {
	var req rpc.CancelJobRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, melonerrors.InvalidArgumentf("malformed CancelJob payload: %v", err)
	}

	s, ok := a.reg.get(req.JobID)
	if !ok {
		return nil, melonerrors.NotFoundf("job %d is not assigned to this worker", req.JobID)
	}
	s.cancel()
	return rpc.CancelJobResponse{}, nil
}

func (a *Agent) handleExtendJob(ctx context.Context, payload json.RawMessage) (any, error) {
	var req rpc.ExtendJobRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, melonerrors.InvalidArgumentf("malformed ExtendJob payload: %v", err)
	}

	s, ok := a.reg.get(req.JobID)
	if !ok {
		return nil, melonerrors.NotFoundf("job %d is not assigned to this worker", req.JobID)
	}
	s.extend(req.ExtensionMins)
	return rpc.ExtendJobResponse{}, nil
}

// reportResult delivers a job's terminal status to the master, retrying a
// transient transport failure so a flaky connection doesn't strand a job
// RUNNING from the master's point of view until the liveness sweep evicts
// the node (§4.3).
func (a *Agent) reportResult(ctx context.Context, jobID uint64, status job.Status) {
	req := rpc.SubmitJobResultRequest{JobID: jobID, Status: status}
	policy := retry.NewExponentialBackoffPolicy()

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return a.masterClient.Call(ctx, rpc.MethodSubmitJobResult, req, &rpc.SubmitJobResultResponse{})
	})
	if err != nil {
		a.logger.Error("failed to report job result", "job_id", jobID, "status", status, "error", err)
	}
}
