// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package master implements melon-master's scheduler: job submission and
// lifecycle tracking, the worker node registry, the placement loop that
// assigns pending jobs to fitting nodes, and the liveness sweep that evicts
// nodes whose heartbeat has gone stale (§4).
package master

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jontk/melon/internal/job"
	"github.com/jontk/melon/internal/node"
	"github.com/jontk/melon/internal/rpc"
	"github.com/jontk/melon/internal/store"
	"github.com/jontk/melon/pkg/config"
	melonerrors "github.com/jontk/melon/pkg/errors"
	"github.com/jontk/melon/pkg/logging"
	"github.com/jontk/melon/pkg/metrics"
)

// Dialer opens a WorkerClient to the worker listening at address. Production
// callers pass DialWorker; tests substitute a fake to avoid real sockets.
type Dialer func(address string) (WorkerClient, error)

// Scheduler is melon-master's single source of truth for job and node
// state. All mutable state lives behind mu; outbound worker RPCs
// (AssignJob, CancelJob, ExtendJob) are made with mu released so a slow or
// unreachable worker never blocks the rest of the cluster, following the
// reserve-under-lock -> RPC -> commit-or-rollback pattern (§5).
type Scheduler struct {
	cfg    *config.MasterConfig
	repo   store.JobRepository
	logger logging.Logger
	metr   metrics.Collector
	dial   Dialer

	mu        sync.Mutex
	nextJobID uint64
	jobs      map[uint64]*job.Job
	pending   []uint64
	nodes     map[string]*node.Node

	clientsMu sync.Mutex
	clients   map[string]WorkerClient
}

// New creates a Scheduler. repo must already contain any jobs to recover
// from a prior run; New reloads them into the in-memory index and
// re-queues anything still PENDING (jobs that were RUNNING at last
// shutdown are left as-is for an operator to inspect, since their assigned
// worker's state is unknown).
func New(cfg *config.MasterConfig, repo store.JobRepository, logger logging.Logger, metr metrics.Collector, dial Dialer) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if metr == nil {
		metr = &metrics.NoOpCollector{}
	}

	s := &Scheduler{
		cfg:     cfg,
		repo:    repo,
		logger:  logger,
		metr:    metr,
		dial:    dial,
		jobs:    make(map[uint64]*job.Job),
		nodes:   make(map[string]*node.Node),
		clients: make(map[string]WorkerClient),
	}

	existing, err := repo.List()
	if err != nil {
		return nil, melonerrors.Wrap(melonerrors.Internal, "load existing jobs", err)
	}
	for _, j := range existing {
		s.jobs[j.ID] = j
		if j.ID >= s.nextJobID {
			s.nextJobID = j.ID + 1
		}
		if j.Status == job.Pending {
			s.pending = append(s.pending, j.ID)
		}
	}
	sort.Slice(s.pending, func(i, k int) bool { return s.pending[i] < s.pending[k] })

	return s, nil
}

// Submit validates req and admits a new PENDING job, returning its id.
func (s *Scheduler) Submit(ctx context.Context, user, scriptPath string, res job.ResourceRequest, scriptArgs []string) (uint64, error) {
	if user == "" {
		return 0, melonerrors.InvalidArgumentf("user is required")
	}
	if scriptPath == "" {
		return 0, melonerrors.InvalidArgumentf("script_path is required")
	}
	if res.CPUCount == 0 {
		return 0, melonerrors.InvalidArgumentf("cpu_count must be >= 1")
	}
	if res.TimeMinutes == 0 {
		return 0, melonerrors.InvalidArgumentf("time_minutes must be >= 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextJobID
	s.nextJobID++

	j := &job.Job{
		ID:         id,
		User:       user,
		ScriptPath: scriptPath,
		ScriptArgs: scriptArgs,
		Resources:  res,
		SubmitTime: time.Now().Unix(),
		Status:     job.Pending,
	}

	if err := s.repo.Put(j); err != nil {
		s.nextJobID--
		return 0, melonerrors.Wrap(melonerrors.Internal, "persist submitted job", err)
	}

	s.jobs[id] = j
	s.pending = append(s.pending, id)
	s.metr.RecordJobSubmitted()
	s.logger.Info("job submitted", "job_id", id, "user", user)

	return id, nil
}

// Cancel terminates jobID on behalf of user, who must own it. A PENDING job
// is dequeued and failed immediately; a RUNNING job is cancelled on its
// worker first (best effort -- an unreachable worker never blocks
// finalization, per §4.3). Cancelling an already-terminal job is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, jobID uint64, user string) error {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return melonerrors.NotFoundf("job %d not found", jobID)
	}
	if j.User != user {
		s.mu.Unlock()
		return melonerrors.PermissionDeniedf("job %d is not owned by %s", jobID, user)
	}
	if j.Status.Terminal() {
		s.mu.Unlock()
		return nil
	}

	if j.Status == job.Pending {
		s.removePendingLocked(jobID)
		s.finalizeLocked(j, job.Failed)
		err := s.repo.Put(j)
		s.mu.Unlock()
		if err != nil {
			return melonerrors.Wrap(melonerrors.Internal, "persist cancelled job", err)
		}
		s.metr.RecordJobStatusChange(string(job.Pending), string(job.Failed))
		return nil
	}

	nodeID := j.AssignedNodeID
	var address string
	if n, ok := s.nodes[nodeID]; ok {
		address = n.Address
	}
	res := node.Resources{CPUCount: j.Resources.CPUCount, MemoryBytes: j.Resources.MemoryBytes}
	s.mu.Unlock()

	if address != "" {
		if client, err := s.workerClient(address); err == nil {
			if err := client.CancelJob(ctx, rpc.CancelJobRequest{JobID: jobID, User: user}); err != nil {
				s.logger.Warn("worker cancel failed, finalizing anyway", "job_id", jobID, "node_id", nodeID, "error", err)
			}
		} else {
			s.logger.Warn("could not reach worker to cancel job, finalizing anyway", "job_id", jobID, "node_id", nodeID, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok = s.jobs[jobID]
	if !ok || j.Status.Terminal() {
		return nil
	}
	s.finalizeLocked(j, job.Failed)
	if n, ok := s.nodes[nodeID]; ok {
		n.Credit(jobID, res)
	}
	if err := s.repo.Put(j); err != nil {
		return melonerrors.Wrap(melonerrors.Internal, "persist cancelled job", err)
	}
	s.metr.RecordJobStatusChange(string(job.Running), string(job.Failed))
	return nil
}

// Extend grants jobID extensionMins more wall-clock time. A PENDING job's
// request is extended in place; a RUNNING job's deadline extension is
// forwarded to its worker, which applies it immediately without pausing
// the job (§1, §4.5). If the job raced to a terminal state while the
// worker call was in flight, cancel wins and Extend reports Unavailable.
func (s *Scheduler) Extend(ctx context.Context, jobID uint64, user string, extensionMins uint32) error {
	if extensionMins == 0 {
		return melonerrors.InvalidArgumentf("extension_mins must be >= 1")
	}

	s.mu.Lock()
	j, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return melonerrors.NotFoundf("job %d not found", jobID)
	}
	if j.User != user {
		s.mu.Unlock()
		return melonerrors.PermissionDeniedf("job %d is not owned by %s", jobID, user)
	}
	if j.Status.Terminal() {
		s.mu.Unlock()
		return melonerrors.Unavailablef("job %d already reached a terminal state", jobID)
	}

	if j.Status == job.Pending {
		j.Resources.TimeMinutes += extensionMins
		err := s.repo.Put(j)
		s.mu.Unlock()
		if err != nil {
			return melonerrors.Wrap(melonerrors.Internal, "persist extended job", err)
		}
		return nil
	}

	var address string
	if n, ok := s.nodes[j.AssignedNodeID]; ok {
		address = n.Address
	}
	s.mu.Unlock()

	if address == "" {
		return melonerrors.Unavailablef("job %d's worker is not registered", jobID)
	}
	client, err := s.workerClient(address)
	if err != nil {
		return err
	}
	if err := client.ExtendJob(ctx, rpc.ExtendJobRequest{JobID: jobID, User: user, ExtensionMins: extensionMins}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok = s.jobs[jobID]
	if !ok || j.Status.Terminal() {
		return melonerrors.Unavailablef("job %d transitioned before the extension could be recorded", jobID)
	}
	j.Resources.TimeMinutes += extensionMins
	if err := s.repo.Put(j); err != nil {
		return melonerrors.Wrap(melonerrors.Internal, "persist extended job", err)
	}
	return nil
}

// RegisterNode admits a new worker into the cluster and returns its minted id.
func (s *Scheduler) RegisterNode(ctx context.Context, address string, total node.Resources) (string, error) {
	if address == "" {
		return "", melonerrors.InvalidArgumentf("address is required")
	}
	if total.CPUCount == 0 {
		return "", melonerrors.InvalidArgumentf("cpu_count must be >= 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.nodes[id] = node.New(id, address, total, time.Now().Unix())
	s.logger.Info("node registered", "node_id", id, "address", address)
	return id, nil
}

// Heartbeat refreshes nodeID's liveness timestamp.
func (s *Scheduler) Heartbeat(ctx context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return melonerrors.NotFoundf("node %s is not registered", nodeID)
	}
	n.LastHeartbeat = time.Now().Unix()
	s.metr.RecordHeartbeat(nodeID)
	return nil
}

// SubmitJobResult records a worker's terminal report for jobID. Results for
// an unknown job are rejected; results for an already-terminal job are
// acknowledged as a no-op, since the worker may retry delivery (§4.2, §4.3).
func (s *Scheduler) SubmitJobResult(ctx context.Context, jobID uint64, status job.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return melonerrors.NotFoundf("job %d not found", jobID)
	}
	if j.Status.Terminal() {
		return nil
	}
	if err := job.Transition(j.Status, status); err != nil {
		return err
	}

	from := j.Status
	s.finalizeLocked(j, status)
	if n, ok := s.nodes[j.AssignedNodeID]; ok {
		n.Credit(jobID, node.Resources{CPUCount: j.Resources.CPUCount, MemoryBytes: j.Resources.MemoryBytes})
	}
	if err := s.repo.Put(j); err != nil {
		return melonerrors.Wrap(melonerrors.Internal, "persist job result", err)
	}
	s.metr.RecordJobStatusChange(string(from), string(status))
	return nil
}

// ListJobs returns a snapshot of every job known to the scheduler.
func (s *Scheduler) ListJobs(ctx context.Context) ([]job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]job.Job, 0, len(s.jobs))
	ids := make([]uint64, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, k int) bool { return ids[i] < ids[k] })
	for _, id := range ids {
		out = append(out, *s.jobs[id])
	}
	return out, nil
}

// GetJobInfo returns a snapshot of a single job.
func (s *Scheduler) GetJobInfo(ctx context.Context, jobID uint64) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return job.Job{}, melonerrors.NotFoundf("job %d not found", jobID)
	}
	return *j, nil
}

// Stats reports aggregated job and cluster metrics.
func (s *Scheduler) Stats() *metrics.Stats {
	return s.metr.GetStats()
}

// finalizeLocked moves j to status, stamping StopTime. Callers must hold mu.
func (s *Scheduler) finalizeLocked(j *job.Job, status job.Status) {
	now := time.Now().Unix()
	j.Status = status
	j.StopTime = &now
}

// removePendingLocked drops jobID from the pending queue. Callers must hold mu.
func (s *Scheduler) removePendingLocked(jobID uint64) {
	for i, id := range s.pending {
		if id == jobID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}
