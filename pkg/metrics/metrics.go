// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides in-process metrics collection for melon-master
// and melon-worker: job throughput, placement outcomes, and RPC call
// latency/error rates.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the interface for metrics collection. The master's scheduler
// records into it; the worker agent holds one but records nothing, and the
// RPC transport does not call RecordRPCCall.
type Collector interface {
	// RecordJobSubmitted records a new job entering PENDING.
	RecordJobSubmitted()

	// RecordJobStatusChange records a job transitioning from one status to
	// another (e.g. "PENDING" -> "RUNNING").
	RecordJobStatusChange(from, to string)

	// RecordPlacementAttempt records one pass of the placement loop
	// attempting to assign a pending job to a node.
	RecordPlacementAttempt(success bool)

	// RecordHeartbeat records a heartbeat received from a node.
	RecordHeartbeat(nodeID string)

	// RecordRPCCall records an outbound or inbound RPC call.
	RecordRPCCall(method string, duration time.Duration, err error)

	// GetStats returns current metrics statistics.
	GetStats() *Stats

	// Reset resets all metrics.
	Reset()
}

// Stats contains aggregated metrics statistics.
type Stats struct {
	// Job metrics
	TotalJobsSubmitted int64
	JobsByStatus       map[string]int64

	// Placement metrics
	PlacementAttempts int64
	PlacementFailures int64

	// Heartbeat metrics
	TotalHeartbeats  int64
	HeartbeatsByNode map[string]int64

	// RPC metrics
	TotalRPCCalls       int64
	RPCErrors           int64
	RPCCallsByMethod    map[string]int64
	RPCErrorsByMethod   map[string]int64
	RPCDurationStats    DurationStats
	RPCDurationByMethod map[string]DurationStats

	// Timing
	StartTime time.Time
	Duration  time.Duration
}

// DurationStats contains statistics for duration measurements.
type DurationStats struct {
	Count   int64
	Total   time.Duration
	Min     time.Duration
	Max     time.Duration
	Average time.Duration
}

// InMemoryCollector is an in-memory implementation of Collector.
type InMemoryCollector struct {
	mu sync.RWMutex

	totalJobsSubmitted int64
	jobsByStatus       map[string]*int64

	placementAttempts int64
	placementFailures int64

	totalHeartbeats  int64
	heartbeatsByNode map[string]*int64

	totalRPCCalls       int64
	rpcErrors           int64
	rpcCallsByMethod    map[string]*int64
	rpcErrorsByMethod   map[string]*int64
	rpcDuration         *durationAggregator
	rpcDurationByMethod map[string]*durationAggregator

	startTime time.Time
}

// NewInMemoryCollector creates a new in-memory metrics collector.
func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		jobsByStatus:        make(map[string]*int64),
		heartbeatsByNode:    make(map[string]*int64),
		rpcCallsByMethod:    make(map[string]*int64),
		rpcErrorsByMethod:   make(map[string]*int64),
		rpcDuration:         newDurationAggregator(),
		rpcDurationByMethod: make(map[string]*durationAggregator),
		startTime:           time.Now(),
	}
}

// RecordJobSubmitted records a new job entering PENDING.
func (c *InMemoryCollector) RecordJobSubmitted() {
	atomic.AddInt64(&c.totalJobsSubmitted, 1)
	incrementMapCounter(&c.mu, c.jobsByStatus, "PENDING")
}

// RecordJobStatusChange records a status transition.
func (c *InMemoryCollector) RecordJobStatusChange(from, to string) {
	incrementMapCounter(&c.mu, c.jobsByStatus, to)
}

// RecordPlacementAttempt records one placement loop pass.
func (c *InMemoryCollector) RecordPlacementAttempt(success bool) {
	atomic.AddInt64(&c.placementAttempts, 1)
	if !success {
		atomic.AddInt64(&c.placementFailures, 1)
	}
}

// RecordHeartbeat records a heartbeat from a node.
func (c *InMemoryCollector) RecordHeartbeat(nodeID string) {
	atomic.AddInt64(&c.totalHeartbeats, 1)
	incrementMapCounter(&c.mu, c.heartbeatsByNode, nodeID)
}

// RecordRPCCall records an RPC call's outcome and latency.
func (c *InMemoryCollector) RecordRPCCall(method string, duration time.Duration, err error) {
	atomic.AddInt64(&c.totalRPCCalls, 1)
	incrementMapCounter(&c.mu, c.rpcCallsByMethod, method)

	if err != nil {
		atomic.AddInt64(&c.rpcErrors, 1)
		incrementMapCounter(&c.mu, c.rpcErrorsByMethod, method)
	}

	c.rpcDuration.add(duration)

	c.mu.Lock()
	agg, exists := c.rpcDurationByMethod[method]
	if !exists {
		agg = newDurationAggregator()
		c.rpcDurationByMethod[method] = agg
	}
	c.mu.Unlock()
	agg.add(duration)
}

// GetStats returns current metrics statistics.
func (c *InMemoryCollector) GetStats() *Stats {
	stats := &Stats{
		TotalJobsSubmitted:  atomic.LoadInt64(&c.totalJobsSubmitted),
		JobsByStatus:        c.copyMapCounters(c.jobsByStatus),
		PlacementAttempts:   atomic.LoadInt64(&c.placementAttempts),
		PlacementFailures:   atomic.LoadInt64(&c.placementFailures),
		TotalHeartbeats:     atomic.LoadInt64(&c.totalHeartbeats),
		HeartbeatsByNode:    c.copyMapCounters(c.heartbeatsByNode),
		TotalRPCCalls:       atomic.LoadInt64(&c.totalRPCCalls),
		RPCErrors:           atomic.LoadInt64(&c.rpcErrors),
		RPCCallsByMethod:    c.copyMapCounters(c.rpcCallsByMethod),
		RPCErrorsByMethod:   c.copyMapCounters(c.rpcErrorsByMethod),
		RPCDurationStats:    c.rpcDuration.stats(),
		RPCDurationByMethod: c.copyDurationStats(c.rpcDurationByMethod),
		StartTime:           c.startTime,
		Duration:            time.Since(c.startTime),
	}

	return stats
}

// Reset resets all metrics.
func (c *InMemoryCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	atomic.StoreInt64(&c.totalJobsSubmitted, 0)
	atomic.StoreInt64(&c.placementAttempts, 0)
	atomic.StoreInt64(&c.placementFailures, 0)
	atomic.StoreInt64(&c.totalHeartbeats, 0)
	atomic.StoreInt64(&c.totalRPCCalls, 0)
	atomic.StoreInt64(&c.rpcErrors, 0)

	c.jobsByStatus = make(map[string]*int64)
	c.heartbeatsByNode = make(map[string]*int64)
	c.rpcCallsByMethod = make(map[string]*int64)
	c.rpcErrorsByMethod = make(map[string]*int64)
	c.rpcDuration = newDurationAggregator()
	c.rpcDurationByMethod = make(map[string]*durationAggregator)

	c.startTime = time.Now()
}

// incrementMapCounter safely increments a counter in a map.
func incrementMapCounter(mu *sync.RWMutex, m map[string]*int64, key string) {
	mu.Lock()
	counter, exists := m[key]
	if !exists {
		var v int64
		counter = &v
		m[key] = counter
	}
	mu.Unlock()

	atomic.AddInt64(counter, 1)
}

// copyMapCounters creates a copy of string map counters.
func (c *InMemoryCollector) copyMapCounters(m map[string]*int64) map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64, len(m))
	for k, v := range m {
		result[k] = atomic.LoadInt64(v)
	}
	return result
}

// copyDurationStats creates a copy of duration statistics.
func (c *InMemoryCollector) copyDurationStats(m map[string]*durationAggregator) map[string]DurationStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]DurationStats, len(m))
	for k, v := range m {
		result[k] = v.stats()
	}
	return result
}

// durationAggregator aggregates duration statistics.
type durationAggregator struct {
	mu    sync.Mutex
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

func newDurationAggregator() *durationAggregator {
	return &durationAggregator{
		min: time.Duration(1<<63 - 1), // MaxInt64
	}
}

func (d *durationAggregator) add(duration time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.count++
	d.total += duration

	if duration < d.min {
		d.min = duration
	}
	if duration > d.max {
		d.max = duration
	}
}

func (d *durationAggregator) stats() DurationStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := DurationStats{
		Count: d.count,
		Total: d.total,
		Min:   d.min,
		Max:   d.max,
	}

	if d.count > 0 {
		stats.Average = time.Duration(int64(d.total) / d.count)
	}
	if d.count == 0 {
		stats.Min = 0
	}

	return stats
}

// NoOpCollector is a no-op implementation of Collector.
type NoOpCollector struct{}

func (NoOpCollector) RecordJobSubmitted()                                           {}
func (NoOpCollector) RecordJobStatusChange(from, to string)                         {}
func (NoOpCollector) RecordPlacementAttempt(success bool)                           {}
func (NoOpCollector) RecordHeartbeat(nodeID string)                                 {}
func (NoOpCollector) RecordRPCCall(method string, duration time.Duration, err error) {}
func (NoOpCollector) GetStats() *Stats                                              { return &Stats{} }
func (NoOpCollector) Reset()                                                        {}

// Global default collector.
var defaultCollector Collector = &NoOpCollector{}

// SetDefaultCollector sets the default metrics collector.
func SetDefaultCollector(collector Collector) {
	if collector == nil {
		collector = &NoOpCollector{}
	}
	defaultCollector = collector
}

// GetDefaultCollector returns the default metrics collector.
func GetDefaultCollector() Collector {
	return defaultCollector
}
