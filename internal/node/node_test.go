// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	n := New("node-1", "10.0.0.1:9000", Resources{CPUCount: 4, MemoryBytes: 4 << 30}, 1000)

	assert.Equal(t, n.Total, n.Free)
	assert.Equal(t, int64(1000), n.LastHeartbeat)
	assert.Empty(t, n.Jobs)
}

func TestNode_Fits(t *testing.T) {
	n := New("node-1", "addr", Resources{CPUCount: 4, MemoryBytes: 4 << 30}, 0)

	assert.True(t, n.Fits(Resources{CPUCount: 4, MemoryBytes: 4 << 30}))
	assert.False(t, n.Fits(Resources{CPUCount: 5, MemoryBytes: 1}))
	assert.False(t, n.Fits(Resources{CPUCount: 1, MemoryBytes: 5 << 30}))
}

func TestNode_DebitCredit(t *testing.T) {
	n := New("node-1", "addr", Resources{CPUCount: 4, MemoryBytes: 4 << 30}, 0)

	require.NoError(t, n.Debit(1, Resources{CPUCount: 1, MemoryBytes: 1 << 30}))
	assert.Equal(t, uint32(3), n.Free.CPUCount)
	assert.Equal(t, uint64(3<<30), n.Free.MemoryBytes)
	assert.True(t, n.Jobs[1])

	n.Credit(1, Resources{CPUCount: 1, MemoryBytes: 1 << 30})
	assert.Equal(t, n.Total, n.Free)
	assert.False(t, n.Jobs[1])
}

func TestNode_DebitOvercommitRejected(t *testing.T) {
	n := New("node-1", "addr", Resources{CPUCount: 1, MemoryBytes: 1 << 30}, 0)

	err := n.Debit(1, Resources{CPUCount: 2, MemoryBytes: 1})
	assert.Error(t, err)
	assert.Equal(t, n.Total, n.Free)
}

func TestNode_CreditCapsAtTotal(t *testing.T) {
	n := New("node-1", "addr", Resources{CPUCount: 2, MemoryBytes: 2 << 30}, 0)

	n.Credit(1, Resources{CPUCount: 5, MemoryBytes: 5 << 30})
	assert.Equal(t, n.Total, n.Free)
}
