// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package cgroup provisions a cgroup v2 group per job on Linux, enforcing
// the CPU and memory limits from the job's resource request (§4.5/§9). On
// non-Linux platforms it is a no-op so the rest of melon-worker builds and
// runs unchanged in development.
package cgroup

// Limits is the CPU/memory ceiling applied to a job's cgroup.
type Limits struct {
	CPUCount    uint32
	MemoryBytes uint64
}
