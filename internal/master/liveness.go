// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package master

import (
	"context"
	"time"

	"github.com/jontk/melon/internal/job"
)

// runLivenessSweep ticks every cfg.LivenessCheckInterval, evicting any node
// whose last heartbeat is older than cfg.LivenessThreshold. Every job still
// assigned to an evicted node is failed in place -- the worker is presumed
// gone, so there is no cancel RPC to send (§4.4). Shares the ticker+select
// shape with runPlacementLoop, grounded on pkg/watch.NodePoller.pollLoop.
func (s *Scheduler) runLivenessSweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.LivenessCheckInterval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Scheduler) sweep() {
	now := time.Now().Unix()
	threshold := int64(s.cfg.LivenessThreshold / time.Second)

	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []string
	for id, n := range s.nodes {
		if now-n.LastHeartbeat > threshold {
			stale = append(stale, id)
		}
	}

	for _, nodeID := range stale {
		n := s.nodes[nodeID]
		for jobID := range n.Jobs {
			j, ok := s.jobs[jobID]
			if !ok || j.Status.Terminal() {
				continue
			}
			s.finalizeLocked(j, job.Failed)
			if err := s.repo.Put(j); err != nil {
				s.logger.Error("store write failed finalizing orphaned job", "job_id", jobID, "error", err)
				continue
			}
			s.metr.RecordJobStatusChange(string(job.Running), string(job.Failed))
		}
		delete(s.nodes, nodeID)
		s.clientsMu.Lock()
		if c, ok := s.clients[n.Address]; ok {
			_ = c.Close()
			delete(s.clients, n.Address)
		}
		s.clientsMu.Unlock()
		s.logger.Warn("node evicted for stale heartbeat", "node_id", nodeID, "address", n.Address)
	}
}
