// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package job defines the Job record and its lifecycle state machine.
package job

import (
	melonerrors "github.com/jontk/melon/pkg/errors"
)

// Status is a job's lifecycle state.
type Status string

const (
	Pending   Status = "PENDING"
	Running   Status = "RUNNING"
	Completed Status = "COMPLETED"
	Failed    Status = "FAILED"
	Timeout   Status = "TIMEOUT"
)

// Terminal reports whether s is one of the three terminal states.
func (s Status) Terminal() bool {
	switch s {
	case Completed, Failed, Timeout:
		return true
	default:
		return false
	}
}

// ResourceRequest is the CPU/memory/wall-clock footprint a job asks for.
type ResourceRequest struct {
	CPUCount     uint32 `json:"cpu_count"`
	MemoryBytes  uint64 `json:"memory_bytes"`
	TimeMinutes  uint32 `json:"time_minutes"`
}

// Job is the master's record of a single submission. Identity is the
// monotonic Id assigned at Submit time; the record is never deleted, only
// transitioned.
type Job struct {
	ID             uint64          `json:"id"`
	User           string          `json:"user"`
	ScriptPath     string          `json:"script_path"`
	ScriptArgs     []string        `json:"script_args"`
	Resources      ResourceRequest `json:"resources"`
	SubmitTime     int64           `json:"submit_time"`
	StartTime      *int64          `json:"start_time,omitempty"`
	StopTime       *int64          `json:"stop_time,omitempty"`
	Status         Status          `json:"status"`
	AssignedNodeID string          `json:"assigned_node_id"`
}

// Deadline returns the job's effective wall-clock deadline in unix seconds:
// start_time + time_minutes*60, reflecting every granted extension. It is
// only meaningful once StartTime is set.
func (j *Job) Deadline() int64 {
	if j.StartTime == nil {
		return 0
	}
	return *j.StartTime + int64(j.Resources.TimeMinutes)*60
}

// transitions encodes the graph in §4.2: which events are legal from which
// state. A missing entry means the event is not legal from that state.
var transitions = map[Status]map[Status]bool{
	Pending: {Running: true, Failed: true},
	Running: {Completed: true, Failed: true, Timeout: true, Running: true},
}

// Transition validates a move from 'from' to 'to'. Any event received while
// already in a terminal state is a no-op, never an error, per §4.2 ("Any
// event received in a terminal state is acknowledged as a no-op"); callers
// should check Status.Terminal() first and skip the call entirely if they
// want to distinguish a true no-op from a rejected transition.
func Transition(from, to Status) error {
	if from.Terminal() {
		return nil
	}
	allowed, ok := transitions[from]
	if !ok || !allowed[to] {
		return melonerrors.Internalf("illegal job transition %s -> %s", from, to)
	}
	return nil
}
