// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package rpc implements melon's typed master<->worker RPC protocol: method
// names, request/response payloads, a websocket-framed codec, and the
// Server/Client types built on it.
package rpc

import (
	"github.com/jontk/melon/internal/job"
	"github.com/jontk/melon/internal/node"
)

// Method names for the master RPC surface (§6, "RPC surface (master)").
const (
	MethodSubmitJob       = "SubmitJob"
	MethodRegisterNode    = "RegisterNode"
	MethodSendHeartbeat   = "SendHeartbeat"
	MethodSubmitJobResult = "SubmitJobResult"
	MethodListJobs        = "ListJobs"
	MethodGetJobInfo      = "GetJobInfo"
	MethodCancelJob       = "CancelJob"
	MethodExtendJob       = "ExtendJob"
)

// Method names for the worker RPC surface (§6, "RPC surface (worker)").
// CancelJob and ExtendJob share names with the master surface above but are
// distinct calls made over a different connection (master -> worker).
const (
	MethodAssignJob = "AssignJob"
)

// SubmitJobRequest is the payload for SubmitJob.
type SubmitJobRequest struct {
	ScriptPath string              `json:"script_path"`
	User       string              `json:"user"`
	Resources  job.ResourceRequest `json:"resources"`
	ScriptArgs []string            `json:"script_args"`
}

// SubmitJobResponse is the reply to SubmitJob.
type SubmitJobResponse struct {
	JobID uint64 `json:"job_id"`
}

// RegisterNodeRequest is the payload for RegisterNode.
type RegisterNodeRequest struct {
	Address string         `json:"address"`
	Total   node.Resources `json:"total"`
}

// RegisterNodeResponse is the reply to RegisterNode.
type RegisterNodeResponse struct {
	NodeID string `json:"node_id"`
}

// SendHeartbeatRequest is the payload for SendHeartbeat.
type SendHeartbeatRequest struct {
	NodeID string `json:"node_id"`
}

// SendHeartbeatResponse is the (empty) reply to SendHeartbeat.
type SendHeartbeatResponse struct{}

// SubmitJobResultRequest is the payload for SubmitJobResult.
type SubmitJobResultRequest struct {
	JobID  uint64     `json:"job_id"`
	Status job.Status `json:"status"`
}

// SubmitJobResultResponse is the (empty) reply to SubmitJobResult.
type SubmitJobResultResponse struct{}

// ListJobsRequest is the (empty) payload for ListJobs.
type ListJobsRequest struct{}

// ListJobsResponse is the reply to ListJobs.
type ListJobsResponse struct {
	Jobs []job.Job `json:"jobs"`
}

// GetJobInfoRequest is the payload for GetJobInfo.
type GetJobInfoRequest struct {
	JobID uint64 `json:"job_id"`
}

// GetJobInfoResponse is the reply to GetJobInfo.
type GetJobInfoResponse struct {
	Job job.Job `json:"job"`
}

// CancelJobRequest is the payload for CancelJob, sent by a user-facing
// caller to the master or by the master to the owning worker.
type CancelJobRequest struct {
	JobID uint64 `json:"job_id"`
	User  string `json:"user"`
}

// CancelJobResponse is the (empty) reply to CancelJob.
type CancelJobResponse struct{}

// ExtendJobRequest is the payload for ExtendJob, sent by a user-facing
// caller to the master or by the master to the owning worker.
type ExtendJobRequest struct {
	JobID         uint64 `json:"job_id"`
	User          string `json:"user"`
	ExtensionMins uint32 `json:"extension_mins"`
}

// ExtendJobResponse is the (empty) reply to ExtendJob.
type ExtendJobResponse struct{}

// AssignJobRequest is the payload the master sends a worker to place a job.
type AssignJobRequest struct {
	JobID      uint64              `json:"job_id"`
	ScriptPath string              `json:"script_path"`
	User       string              `json:"user"`
	Resources  job.ResourceRequest `json:"resources"`
	ScriptArgs []string            `json:"script_args"`
}

// AssignJobResponse is the (empty) reply to AssignJob.
type AssignJobResponse struct{}
