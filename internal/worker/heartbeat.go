// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"time"

	"github.com/jontk/melon/internal/rpc"
	"github.com/jontk/melon/pkg/retry"
)

// runHeartbeatLoop sends SendHeartbeat every cfg.HeartbeatInterval, retrying
// a transient transport failure with pkg/retry's exponential backoff before
// giving up on that tick (the master's liveness sweep is the backstop if a
// whole run of ticks fails, per §4.4). Shares the ticker+select shape used
// throughout melon, grounded on pkg/watch.JobPoller.pollLoop.
func (a *Agent) runHeartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	a.sendHeartbeat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sendHeartbeat(ctx)
		}
	}
}

func (a *Agent) sendHeartbeat(ctx context.Context) {
	policy := retry.NewExponentialBackoffPolicy()
	req := rpc.SendHeartbeatRequest{NodeID: a.currentNodeID()}

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return a.masterClient.Call(ctx, rpc.MethodSendHeartbeat, req, &rpc.SendHeartbeatResponse{})
	})
	if err != nil {
		a.logger.Warn("heartbeat failed", "node_id", req.NodeID, "error", err)
	}
}
