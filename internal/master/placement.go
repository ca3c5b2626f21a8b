// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package master

import (
	"context"
	"sort"
	"time"

	"github.com/jontk/melon/internal/job"
	"github.com/jontk/melon/internal/node"
	"github.com/jontk/melon/internal/rpc"
)

// runPlacementLoop ticks every cfg.PlacementTick, attempting to assign
// pending jobs to fitting nodes. The ticker+select shape mirrors
// pkg/watch.JobPoller.pollLoop: an immediate first pass, then one pass per
// tick, with no two passes ever running concurrently since a slow pass
// simply delays the next tick rather than overlapping it (§4.1, "single
// consumer of the pending queue").
func (s *Scheduler) runPlacementLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PlacementTick)
	defer ticker.Stop()

	s.placementPass(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.placementPass(ctx)
		}
	}
}

// placementPass walks a snapshot of the pending queue in FIFO order,
// attempting to place each job once.
func (s *Scheduler) placementPass(ctx context.Context) {
	s.mu.Lock()
	snapshot := append([]uint64(nil), s.pending...)
	s.mu.Unlock()

	for _, jobID := range snapshot {
		s.tryPlace(ctx, jobID)
	}
}

// tryPlace attempts to assign jobID to the first node (in stable id order)
// with enough free capacity. Resources are debited under the scheduler
// lock before the AssignJob RPC and either committed (job -> RUNNING) or
// rolled back (credited back, left PENDING for the next tick) once the RPC
// returns, per §5's reserve -> RPC -> commit-or-rollback pattern.
func (s *Scheduler) tryPlace(ctx context.Context, jobID uint64) {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	if !ok || j.Status != job.Pending {
		s.mu.Unlock()
		return
	}

	req := node.Resources{CPUCount: j.Resources.CPUCount, MemoryBytes: j.Resources.MemoryBytes}
	target := s.findFittingNodeLocked(req)
	if target == nil {
		s.mu.Unlock()
		s.metr.RecordPlacementAttempt(false)
		return
	}

	if err := target.Debit(jobID, req); err != nil {
		s.mu.Unlock()
		s.logger.Error("debit failed during placement", "job_id", jobID, "node_id", target.ID, "error", err)
		return
	}
	nodeID, address := target.ID, target.Address
	assignReq := rpc.AssignJobRequest{
		JobID:      j.ID,
		ScriptPath: j.ScriptPath,
		User:       j.User,
		Resources:  j.Resources,
		ScriptArgs: j.ScriptArgs,
	}
	s.mu.Unlock()

	client, err := s.workerClient(address)
	if err == nil {
		err = client.AssignJob(ctx, assignReq)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n, present := s.nodes[nodeID]; err != nil && present {
		n.Credit(jobID, req)
	}
	if err != nil {
		s.logger.Warn("assign job failed, leaving pending for retry", "job_id", jobID, "node_id", nodeID, "error", err)
		s.metr.RecordPlacementAttempt(false)
		return
	}

	j, ok = s.jobs[jobID]
	if !ok || j.Status != job.Pending {
		// Job was cancelled while the RPC was outstanding; undoing the
		// assignment worker-side is out of scope (liveness/cancel cleanup
		// handles the orphaned worker-side job), but the tentative debit
		// above must still be released so the node's free capacity doesn't
		// leak.
		if n, present := s.nodes[nodeID]; present {
			n.Credit(jobID, req)
		}
		return
	}

	now := time.Now().Unix()
	j.Status = job.Running
	j.StartTime = &now
	j.AssignedNodeID = nodeID
	s.removePendingLocked(jobID)

	if err := s.repo.Put(j); err != nil {
		j.Status = job.Pending
		j.StartTime = nil
		j.AssignedNodeID = ""
		s.pending = append(s.pending, jobID)
		if n, present := s.nodes[nodeID]; present {
			n.Credit(jobID, req)
		}
		s.logger.Error("store write failed committing placement", "job_id", jobID, "error", err)
		s.metr.RecordPlacementAttempt(false)
		return
	}

	s.metr.RecordJobStatusChange(string(job.Pending), string(job.Running))
	s.metr.RecordPlacementAttempt(true)
	s.logger.Info("job placed", "job_id", jobID, "node_id", nodeID)
}

// findFittingNodeLocked returns the first registered node (by ascending id)
// with enough free capacity for req, or nil. Callers must hold mu.
func (s *Scheduler) findFittingNodeLocked(req node.Resources) *node.Node {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := s.nodes[id]
		if n.Fits(req) {
			return n
		}
	}
	return nil
}
