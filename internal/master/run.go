// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package master

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run starts the placement loop and liveness sweep as a managed group and
// blocks until ctx is cancelled or either goroutine returns an error. Both
// loops run for the lifetime of the process; cmd/melon-master wires this
// alongside the RPC and HTTP servers.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.runPlacementLoop(ctx)
		return ctx.Err()
	})
	g.Go(func() error {
		s.runLivenessSweep(ctx)
		return ctx.Err()
	})

	return g.Wait()
}
