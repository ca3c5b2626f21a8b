// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jontk/melon/internal/cgroup"
	"github.com/jontk/melon/internal/job"
	"github.com/jontk/melon/internal/rpc"
	"github.com/jontk/melon/pkg/logging"
)

const deadlinePollInterval = time.Second

// resultReporter delivers a job's terminal status to the master. Backed by
// SubmitJobResult over the Agent's master connection in production.
type resultReporter func(ctx context.Context, jobID uint64, status job.Status)

// supervisor owns one running job: it forks the job's script, confines it
// to a cgroup, and watches concurrently for exit, cancellation, and
// deadline expiry.
type supervisor struct {
	jobID     uint64
	req       rpc.AssignJobRequest
	cgroupMgr *cgroup.Manager
	killGrace time.Duration
	logger    logging.Logger
	report    resultReporter

	// deadline is a unix-seconds cell updated atomically so an Extend call
	// takes effect on the next poll without coordinating with the run
	// goroutine (§4.5's final paragraph).
	deadline atomic.Int64

	cancelOnce sync.Once
	cancelCh   chan struct{}
	done       chan struct{}
}

func newSupervisor(jobID uint64, req rpc.AssignJobRequest, deadlineUnix int64, cgroupMgr *cgroup.Manager, killGrace time.Duration, logger logging.Logger, report resultReporter) *supervisor {
	s := &supervisor{
		jobID:     jobID,
		req:       req,
		cgroupMgr: cgroupMgr,
		killGrace: killGrace,
		logger:    logger,
		report:    report,
		cancelCh:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.deadline.Store(deadlineUnix)
	return s
}

// extend pushes the supervisor's deadline out by extensionMins.
func (s *supervisor) extend(extensionMins uint32) {
	s.deadline.Add(int64(extensionMins) * 60)
}

// cancel asks the supervisor to terminate its job; safe to call more than once.
func (s *supervisor) cancel() {
	s.cancelOnce.Do(func() { close(s.cancelCh) })
}

// wait blocks until the supervisor's job has exited and its result has been reported.
func (s *supervisor) wait() {
	<-s.done
}

// run forks the job's script, adds it to a cgroup, and supervises it until
// it exits, is cancelled, hits its deadline, or ctx is cancelled (worker
// shutdown).
func (s *supervisor) run(ctx context.Context) {
	defer close(s.done)

	cmd := exec.Command(s.req.ScriptPath, s.req.ScriptArgs...)
	configurePlatform(cmd)

	if err := cmd.Start(); err != nil {
		s.logger.Error("failed to start job", "job_id", s.jobID, "error", err)
		s.report(context.Background(), s.jobID, job.Failed)
		return
	}

	group, err := s.cgroupMgr.Create(s.jobID, cgroup.Limits{
		CPUCount:    s.req.Resources.CPUCount,
		MemoryBytes: s.req.Resources.MemoryBytes,
	})
	if err != nil {
		s.logger.Warn("cgroup creation failed, job runs unconfined", "job_id", s.jobID, "error", err)
	} else if err := group.AddProcess(cmd.Process.Pid); err != nil {
		s.logger.Warn("failed to add job to cgroup, job runs unconfined", "job_id", s.jobID, "error", err)
	}

	exitCh := make(chan error, 1)
	go func() { exitCh <- cmd.Wait() }()

	ticker := time.NewTicker(deadlinePollInterval)
	defer ticker.Stop()

	status := s.supervise(ctx, cmd, exitCh, ticker)

	if group != nil {
		if err := group.Remove(); err != nil {
			s.logger.Warn("failed to remove cgroup", "job_id", s.jobID, "error", err)
		}
	}

	s.report(context.Background(), s.jobID, status)
}

func (s *supervisor) supervise(ctx context.Context, cmd *exec.Cmd, exitCh chan error, ticker *time.Ticker) job.Status {
	for {
		select {
		case err := <-exitCh:
			if err != nil {
				s.logger.Info("job exited with error", "job_id", s.jobID, "error", err)
				return job.Failed
			}
			return job.Completed

		case <-s.cancelCh:
			s.terminateAndWait(cmd, exitCh)
			return job.Failed

		case <-ticker.C:
			if time.Now().Unix() >= s.deadline.Load() {
				s.terminateAndWait(cmd, exitCh)
				return job.Timeout
			}

		case <-ctx.Done():
			// Worker shutdown: terminate the job and still report a
			// best-effort FAILED so the master can release the node's
			// reservation instead of waiting for the liveness sweep (§5).
			s.terminateAndWait(cmd, exitCh)
			return job.Failed
		}
	}
}

// terminateAndWait signals the job to stop and escalates to an unconditional
// kill if it hasn't exited within the configured grace period (§4.5).
func (s *supervisor) terminateAndWait(cmd *exec.Cmd, exitCh <-chan error) {
	_ = signalTerminate(cmd)

	select {
	case <-exitCh:
		return
	case <-time.After(s.killGrace):
	}

	_ = signalKill(cmd)
	<-exitCh
}
