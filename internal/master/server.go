// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package master

import (
	"context"
	"encoding/json"

	"github.com/jontk/melon/internal/rpc"
	melonerrors "github.com/jontk/melon/pkg/errors"
	"github.com/jontk/melon/pkg/logging"
)

// NewRPCServer builds the *rpc.Server exposing every method on the master
// RPC surface (§6), each handler delegating straight to the Scheduler.
func NewRPCServer(s *Scheduler, logger logging.Logger) *rpc.Server {
	srv := rpc.NewServer(logger)

	srv.Handle(rpc.MethodSubmitJob, s.handleSubmitJob)
	srv.Handle(rpc.MethodRegisterNode, s.handleRegisterNode)
	srv.Handle(rpc.MethodSendHeartbeat, s.handleSendHeartbeat)
	srv.Handle(rpc.MethodSubmitJobResult, s.handleSubmitJobResult)
	srv.Handle(rpc.MethodListJobs, s.handleListJobs)
	srv.Handle(rpc.MethodGetJobInfo, s.handleGetJobInfo)
	srv.Handle(rpc.MethodCancelJob, s.handleCancelJob)
	srv.Handle(rpc.MethodExtendJob, s.handleExtendJob)

	return srv
}

func decode(payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return melonerrors.InvalidArgumentf("malformed request payload: %v", err)
	}
	return nil
}

func (s *Scheduler) handleSubmitJob(ctx context.Context, payload json.RawMessage) (any, error) {
	var req rpc.SubmitJobRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	id, err := s.Submit(ctx, req.User, req.ScriptPath, req.Resources, req.ScriptArgs)
	if err != nil {
		return nil, err
	}
	return rpc.SubmitJobResponse{JobID: id}, nil
}

func (s *Scheduler) handleRegisterNode(ctx context.Context, payload json.RawMessage) (any, error) {
	var req rpc.RegisterNodeRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	id, err := s.RegisterNode(ctx, req.Address, req.Total)
	if err != nil {
		return nil, err
	}
	return rpc.RegisterNodeResponse{NodeID: id}, nil
}

func (s *Scheduler) handleSendHeartbeat(ctx context.Context, payload json.RawMessage) (any, error) {
	var req rpc.SendHeartbeatRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if err := s.Heartbeat(ctx, req.NodeID); err != nil {
		return nil, err
	}
	return rpc.SendHeartbeatResponse{}, nil
}

func (s *Scheduler) handleSubmitJobResult(ctx context.Context, payload json.RawMessage) (any, error) {
	var req rpc.SubmitJobResultRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if err := s.SubmitJobResult(ctx, req.JobID, req.Status); err != nil {
		return nil, err
	}
	return rpc.SubmitJobResultResponse{}, nil
}

func (s *Scheduler) handleListJobs(ctx context.Context, payload json.RawMessage) (any, error) {
	jobs, err := s.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	return rpc.ListJobsResponse{Jobs: jobs}, nil
}

func (s *Scheduler) handleGetJobInfo(ctx context.Context, payload json.RawMessage) (any, error) {
	var req rpc.GetJobInfoRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	j, err := s.GetJobInfo(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	return rpc.GetJobInfoResponse{Job: j}, nil
}

func (s *Scheduler) handleCancelJob(ctx context.Context, payload json.RawMessage) (any, error) {
	var req rpc.CancelJobRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if err := s.Cancel(ctx, req.JobID, req.User); err != nil {
		return nil, err
	}
	return rpc.CancelJobResponse{}, nil
}

func (s *Scheduler) handleExtendJob(ctx context.Context, payload json.RawMessage) (any, error) {
	var req rpc.ExtendJobRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if err := s.Extend(ctx, req.JobID, req.User, req.ExtensionMins); err != nil {
		return nil, err
	}
	return rpc.ExtendJobResponse{}, nil
}
