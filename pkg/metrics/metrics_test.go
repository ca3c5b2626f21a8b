// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemoryCollector(t *testing.T) {
	collector := NewInMemoryCollector()

	require.NotNil(t, collector)
	assert.NotNil(t, collector.jobsByStatus)
	assert.NotNil(t, collector.heartbeatsByNode)
	assert.NotNil(t, collector.rpcCallsByMethod)
	assert.NotNil(t, collector.rpcErrorsByMethod)
	assert.NotNil(t, collector.rpcDuration)
	assert.NotNil(t, collector.rpcDurationByMethod)
	assert.False(t, collector.startTime.IsZero())
}

func TestInMemoryCollector_RecordJobSubmitted(t *testing.T) {
	collector := NewInMemoryCollector()

	collector.RecordJobSubmitted()
	collector.RecordJobSubmitted()

	stats := collector.GetStats()
	assert.Equal(t, int64(2), stats.TotalJobsSubmitted)
	assert.Equal(t, int64(2), stats.JobsByStatus["PENDING"])
}

func TestInMemoryCollector_RecordJobStatusChange(t *testing.T) {
	collector := NewInMemoryCollector()

	collector.RecordJobSubmitted()
	collector.RecordJobStatusChange("PENDING", "RUNNING")
	collector.RecordJobStatusChange("RUNNING", "COMPLETED")

	stats := collector.GetStats()
	assert.Equal(t, int64(1), stats.JobsByStatus["RUNNING"])
	assert.Equal(t, int64(1), stats.JobsByStatus["COMPLETED"])
}

func TestInMemoryCollector_RecordPlacementAttempt(t *testing.T) {
	collector := NewInMemoryCollector()

	collector.RecordPlacementAttempt(true)
	collector.RecordPlacementAttempt(false)
	collector.RecordPlacementAttempt(false)

	stats := collector.GetStats()
	assert.Equal(t, int64(3), stats.PlacementAttempts)
	assert.Equal(t, int64(2), stats.PlacementFailures)
}

func TestInMemoryCollector_RecordHeartbeat(t *testing.T) {
	collector := NewInMemoryCollector()

	collector.RecordHeartbeat("node-1")
	collector.RecordHeartbeat("node-1")
	collector.RecordHeartbeat("node-2")

	stats := collector.GetStats()
	assert.Equal(t, int64(3), stats.TotalHeartbeats)
	assert.Equal(t, int64(2), stats.HeartbeatsByNode["node-1"])
	assert.Equal(t, int64(1), stats.HeartbeatsByNode["node-2"])
}

func TestInMemoryCollector_RecordRPCCall(t *testing.T) {
	collector := NewInMemoryCollector()

	collector.RecordRPCCall("AssignJob", 100*time.Millisecond, nil)
	collector.RecordRPCCall("AssignJob", 200*time.Millisecond, nil)
	collector.RecordRPCCall("CancelJob", 50*time.Millisecond, errors.New("dial timeout"))

	stats := collector.GetStats()
	assert.Equal(t, int64(3), stats.TotalRPCCalls)
	assert.Equal(t, int64(1), stats.RPCErrors)
	assert.Equal(t, int64(2), stats.RPCCallsByMethod["AssignJob"])
	assert.Equal(t, int64(1), stats.RPCCallsByMethod["CancelJob"])
	assert.Equal(t, int64(1), stats.RPCErrorsByMethod["CancelJob"])

	assert.Equal(t, int64(3), stats.RPCDurationStats.Count)
	assert.Equal(t, 350*time.Millisecond, stats.RPCDurationStats.Total)

	assignStats := stats.RPCDurationByMethod["AssignJob"]
	assert.Equal(t, int64(2), assignStats.Count)
	assert.Equal(t, 150*time.Millisecond, assignStats.Average)
}

func TestInMemoryCollector_Reset(t *testing.T) {
	collector := NewInMemoryCollector()

	collector.RecordJobSubmitted()
	collector.RecordPlacementAttempt(true)
	collector.RecordHeartbeat("node-1")
	collector.RecordRPCCall("AssignJob", 100*time.Millisecond, errors.New("boom"))

	stats := collector.GetStats()
	assert.Positive(t, stats.TotalJobsSubmitted)
	assert.Positive(t, stats.PlacementAttempts)
	assert.Positive(t, stats.TotalHeartbeats)
	assert.Positive(t, stats.TotalRPCCalls)

	collector.Reset()

	stats = collector.GetStats()
	assert.Equal(t, int64(0), stats.TotalJobsSubmitted)
	assert.Equal(t, int64(0), stats.PlacementAttempts)
	assert.Equal(t, int64(0), stats.PlacementFailures)
	assert.Equal(t, int64(0), stats.TotalHeartbeats)
	assert.Equal(t, int64(0), stats.TotalRPCCalls)
	assert.Equal(t, int64(0), stats.RPCErrors)
	assert.Empty(t, stats.JobsByStatus)
	assert.Empty(t, stats.HeartbeatsByNode)
	assert.Empty(t, stats.RPCCallsByMethod)
	assert.Empty(t, stats.RPCDurationByMethod)
	assert.Equal(t, int64(0), stats.RPCDurationStats.Count)
}

func TestDurationAggregator(t *testing.T) {
	agg := newDurationAggregator()

	t.Run("initial state", func(t *testing.T) {
		stats := agg.stats()
		assert.Equal(t, int64(0), stats.Count)
		assert.Equal(t, time.Duration(0), stats.Total)
		assert.Equal(t, time.Duration(0), stats.Min)
		assert.Equal(t, time.Duration(0), stats.Max)
		assert.Equal(t, time.Duration(0), stats.Average)
	})

	t.Run("single value", func(t *testing.T) {
		agg.add(100 * time.Millisecond)

		stats := agg.stats()
		assert.Equal(t, int64(1), stats.Count)
		assert.Equal(t, 100*time.Millisecond, stats.Total)
		assert.Equal(t, 100*time.Millisecond, stats.Min)
		assert.Equal(t, 100*time.Millisecond, stats.Max)
		assert.Equal(t, 100*time.Millisecond, stats.Average)
	})

	t.Run("multiple values", func(t *testing.T) {
		agg.add(200 * time.Millisecond)
		agg.add(50 * time.Millisecond)

		stats := agg.stats()
		assert.Equal(t, int64(3), stats.Count)
		assert.Equal(t, 350*time.Millisecond, stats.Total)
		assert.Equal(t, 50*time.Millisecond, stats.Min)
		assert.Equal(t, 200*time.Millisecond, stats.Max)
		expected := time.Duration(350000000 / 3) // 116.666666ms
		assert.Equal(t, expected, stats.Average)
	})
}

func TestDurationAggregator_Concurrency(t *testing.T) {
	agg := newDurationAggregator()

	const numGoroutines = 10
	const numOperations = 100

	var wg sync.WaitGroup

	for i := range numGoroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range numOperations {
				agg.add(time.Duration(id*numOperations+j) * time.Millisecond)
			}
		}(i)
	}

	wg.Wait()

	stats := agg.stats()
	assert.Equal(t, int64(numGoroutines*numOperations), stats.Count)
	assert.Greater(t, stats.Total, time.Duration(0))
	assert.Greater(t, stats.Max, stats.Min)
	assert.Greater(t, stats.Average, time.Duration(0))
}

func TestInMemoryCollector_Concurrency(t *testing.T) {
	collector := NewInMemoryCollector()

	const numGoroutines = 10
	const numOperations = 100

	var wg sync.WaitGroup

	for i := range numGoroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range numOperations {
				collector.RecordJobSubmitted()
				collector.RecordRPCCall("Heartbeat", time.Duration(j)*time.Millisecond, nil)
				if j%10 == 0 {
					collector.RecordRPCCall("AssignJob", time.Millisecond, errors.New("test error"))
				}
				collector.RecordHeartbeat("node-1")
			}
		}(i)
	}

	wg.Wait()

	stats := collector.GetStats()
	assert.Equal(t, int64(numGoroutines*numOperations), stats.TotalJobsSubmitted)
	assert.Equal(t, int64(numGoroutines*numOperations)+int64(numGoroutines*10), stats.TotalRPCCalls)
	assert.Equal(t, int64(numGoroutines*10), stats.RPCErrors)
	assert.Equal(t, int64(numGoroutines*numOperations), stats.TotalHeartbeats)
}

func TestNoOpCollector(t *testing.T) {
	collector := NoOpCollector{}

	collector.RecordJobSubmitted()
	collector.RecordJobStatusChange("PENDING", "RUNNING")
	collector.RecordPlacementAttempt(true)
	collector.RecordHeartbeat("node-1")
	collector.RecordRPCCall("AssignJob", 100*time.Millisecond, errors.New("test error"))

	stats := collector.GetStats()
	require.NotNil(t, stats)

	assert.Equal(t, int64(0), stats.TotalJobsSubmitted)
	assert.Equal(t, int64(0), stats.PlacementAttempts)
	assert.Equal(t, int64(0), stats.TotalHeartbeats)
	assert.Equal(t, int64(0), stats.TotalRPCCalls)

	collector.Reset()
}

func TestDefaultCollector(t *testing.T) {
	defaultCol := GetDefaultCollector()
	assert.IsType(t, &NoOpCollector{}, defaultCol)

	newCollector := NewInMemoryCollector()
	SetDefaultCollector(newCollector)

	assert.Equal(t, newCollector, GetDefaultCollector())

	SetDefaultCollector(nil)
	assert.IsType(t, &NoOpCollector{}, GetDefaultCollector())

	SetDefaultCollector(&NoOpCollector{})
}

func TestCollectorInterface(t *testing.T) {
	var _ Collector = (*InMemoryCollector)(nil)
	var _ Collector = NoOpCollector{}
}

func TestStatsStructure(t *testing.T) {
	collector := NewInMemoryCollector()

	collector.RecordJobSubmitted()
	collector.RecordJobStatusChange("PENDING", "RUNNING")
	collector.RecordPlacementAttempt(true)
	collector.RecordHeartbeat("node-1")
	collector.RecordRPCCall("AssignJob", 50*time.Millisecond, nil)
	collector.RecordRPCCall("CancelJob", 150*time.Millisecond, errors.New("not found"))

	stats := collector.GetStats()

	assert.NotZero(t, stats.TotalJobsSubmitted)
	assert.NotZero(t, stats.PlacementAttempts)
	assert.NotZero(t, stats.TotalHeartbeats)
	assert.NotZero(t, stats.TotalRPCCalls)
	assert.NotZero(t, stats.RPCErrors)
	assert.NotEmpty(t, stats.JobsByStatus)
	assert.NotEmpty(t, stats.HeartbeatsByNode)
	assert.NotEmpty(t, stats.RPCCallsByMethod)
	assert.NotEmpty(t, stats.RPCDurationByMethod)
	assert.NotZero(t, stats.RPCDurationStats.Count)
	assert.False(t, stats.StartTime.IsZero())
	assert.GreaterOrEqual(t, stats.Duration, time.Duration(0))
}

func TestIncrementMapCounter(t *testing.T) {
	var mu sync.RWMutex
	m := make(map[string]*int64)

	incrementMapCounter(&mu, m, "test-key")

	mu.RLock()
	counter, exists := m["test-key"]
	mu.RUnlock()

	assert.True(t, exists)
	assert.Equal(t, int64(1), *counter)

	incrementMapCounter(&mu, m, "test-key")

	mu.RLock()
	counter = m["test-key"]
	mu.RUnlock()

	assert.Equal(t, int64(2), *counter)
}
