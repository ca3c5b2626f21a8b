// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package node defines the worker registration record held by the master's
// node registry, and the free-resource debit/credit arithmetic that backs
// placement decisions.
package node

import (
	melonerrors "github.com/jontk/melon/pkg/errors"
)

// Resources is a CPU/memory capacity pair, used both for a node's total
// advertised capacity and for its current free capacity.
type Resources struct {
	CPUCount    uint32 `json:"cpu_count"`
	MemoryBytes uint64 `json:"memory_bytes"`
}

// Node is the master's record of a registered worker. Id is minted once at
// RegisterNode and never reused; a worker that re-registers gets a new one.
type Node struct {
	ID            string          `json:"id"`
	Address       string          `json:"address"`
	Total         Resources       `json:"total"`
	Free          Resources       `json:"free"`
	LastHeartbeat int64           `json:"last_heartbeat"`
	Jobs          map[uint64]bool `json:"-"`
}

// New creates a Node with Free initialized to Total and an empty job set.
func New(id, address string, total Resources, now int64) *Node {
	return &Node{
		ID:            id,
		Address:       address,
		Total:         total,
		Free:          total,
		LastHeartbeat: now,
		Jobs:          make(map[uint64]bool),
	}
}

// Fits reports whether the node's free capacity can satisfy req.
func (n *Node) Fits(req Resources) bool {
	return n.Free.CPUCount >= req.CPUCount && n.Free.MemoryBytes >= req.MemoryBytes
}

// Debit reserves req against the node's free capacity for jobID, enforcing
// 0 <= free <= total. Returns Internal if the debit would violate that
// invariant (callers must check Fits first; this is a guard against a bug,
// not an expected path).
func (n *Node) Debit(jobID uint64, req Resources) error {
	if req.CPUCount > n.Free.CPUCount || req.MemoryBytes > n.Free.MemoryBytes {
		return melonerrors.Internalf("node %s: debit would overcommit free capacity", n.ID)
	}
	n.Free.CPUCount -= req.CPUCount
	n.Free.MemoryBytes -= req.MemoryBytes
	n.Jobs[jobID] = true
	return nil
}

// Credit returns req to the node's free capacity, capped at Total, and
// removes jobID from the assigned set. Capping at Total guards against a
// double-credit landing the node's free resources above what it advertised.
func (n *Node) Credit(jobID uint64, req Resources) {
	n.Free.CPUCount += req.CPUCount
	if n.Free.CPUCount > n.Total.CPUCount {
		n.Free.CPUCount = n.Total.CPUCount
	}
	n.Free.MemoryBytes += req.MemoryBytes
	if n.Free.MemoryBytes > n.Total.MemoryBytes {
		n.Free.MemoryBytes = n.Total.MemoryBytes
	}
	delete(n.Jobs, jobID)
}
