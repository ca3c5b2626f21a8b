// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package cgroup

import (
	"fmt"
	"os"
	"path/filepath"

	melonerrors "github.com/jontk/melon/pkg/errors"
)

const cpuPeriodUs = 100000

// Manager creates and tears down per-job cgroup v2 groups under a single
// parent hierarchy.
type Manager struct {
	root string
}

// NewManager returns a Manager rooted at the configured parent hierarchy
// (e.g. /sys/fs/cgroup/melon), which must already exist and be delegated to
// the worker process.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Group is one job's cgroup.
type Group struct {
	path string
}

// Create makes a new child group under root for jobID and writes cpu.max
// and memory.max from limits.
func (m *Manager) Create(jobID uint64, limits Limits) (*Group, error) {
	path := filepath.Join(m.root, fmt.Sprintf("job-%d", jobID))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, melonerrors.Wrap(melonerrors.Internal, "create cgroup directory", err)
	}

	quota := int64(limits.CPUCount) * cpuPeriodUs
	if err := writeFile(filepath.Join(path, "cpu.max"), fmt.Sprintf("%d %d", quota, cpuPeriodUs)); err != nil {
		return nil, melonerrors.Wrap(melonerrors.Internal, "write cpu.max", err)
	}
	if err := writeFile(filepath.Join(path, "memory.max"), fmt.Sprintf("%d", limits.MemoryBytes)); err != nil {
		return nil, melonerrors.Wrap(melonerrors.Internal, "write memory.max", err)
	}

	return &Group{path: path}, nil
}

// AddProcess adds pid to the group's process set, subjecting it (and every
// process it forks) to the group's limits.
func (g *Group) AddProcess(pid int) error {
	if err := writeFile(filepath.Join(g.path, "cgroup.procs"), fmt.Sprintf("%d", pid)); err != nil {
		return melonerrors.Wrap(melonerrors.Internal, "add process to cgroup", err)
	}
	return nil
}

// Remove deletes the group directory and anything left inside it. The kernel
// refuses to rmdir a group with live processes, so this is expected to run
// only after the job's process has exited.
func (g *Group) Remove() error {
	if err := os.RemoveAll(g.path); err != nil && !os.IsNotExist(err) {
		return melonerrors.Wrap(melonerrors.Internal, "remove cgroup", err)
	}
	return nil
}

// SweepStale best-effort removes any job-* groups left behind by a prior
// worker process that crashed before cleaning up. A group still holding a
// live process fails to rmdir and is silently left for the next sweep.
func (m *Manager) SweepStale() {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match("job-*", entry.Name()); !ok {
			continue
		}
		_ = os.Remove(filepath.Join(m.root, entry.Name()))
	}
}

func writeFile(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}
