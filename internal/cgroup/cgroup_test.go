// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package cgroup

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestManager_CreateAddRemove exercises the platform-independent contract:
// Create never errors for a sane Limits value, AddProcess and Remove on the
// returned Group never error for a well-formed pid. On Linux the Manager is
// rooted at a temporary directory, so the group's control files are plain
// files there, and the test is skipped if Create fails; on every other
// platform it exercises the no-op stub directly.
func TestManager_CreateAddRemove(t *testing.T) {
	m := NewManager(t.TempDir())

	g, err := m.Create(1, Limits{CPUCount: 2, MemoryBytes: 1 << 20})
	if err != nil {
		t.Skipf("cgroup not available in this environment: %v", err)
	}
	require.NotNil(t, g)

	assert.NoError(t, g.AddProcess(os.Getpid()))
	assert.NoError(t, g.Remove())
}

func TestManager_SweepStaleNeverPanics(t *testing.T) {
	m := NewManager(t.TempDir())
	assert.NotPanics(t, func() { m.SweepStale() })
}
