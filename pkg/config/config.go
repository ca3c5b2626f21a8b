// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package config holds configuration for the melon master and worker daemons.
package config

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// MasterConfig holds configuration for melon-master.
type MasterConfig struct {
	// ListenAddr is the RPC address melon-master listens on for worker
	// connections (RegisterNode, SendHeartbeat, SubmitJobResult, and the
	// submission-side RPCs).
	ListenAddr string

	// HTTPListenAddr is the address for the optional read-only HTTP/JSON API.
	// Empty disables the HTTP API.
	HTTPListenAddr string

	// StorePath is the path to the embedded job store database file.
	StorePath string

	// PlacementTick is how often the placement loop runs (§4.1).
	PlacementTick time.Duration

	// LivenessCheckInterval is how often the liveness sweep runs (§4.4).
	LivenessCheckInterval time.Duration

	// LivenessThreshold is how stale a node's last heartbeat may be before
	// the sweep evicts it (§4.4).
	LivenessThreshold time.Duration

	// RPCTimeout is loaded and validated but not read by the scheduler;
	// outbound AssignJob/CancelJob/ExtendJob calls are bounded by the RPC
	// client's fixed 5s default (§5).
	RPCTimeout time.Duration

	// Debug enables debug-level logging.
	Debug bool
}

// NewMasterDefault returns a MasterConfig populated with the recommended
// values from spec §4.1/§4.4/§5, overridable via environment variables.
func NewMasterDefault() *MasterConfig {
	return &MasterConfig{
		ListenAddr:            getEnvOrDefault("MELON_LISTEN_ADDR", ":6817"),
		HTTPListenAddr:        getEnvOrDefault("MELON_HTTP_LISTEN_ADDR", ":6818"),
		StorePath:             getEnvOrDefault("MELON_STORE_PATH", "melon.db"),
		PlacementTick:         getEnvDurationOrDefault("MELON_PLACEMENT_TICK", time.Second),
		LivenessCheckInterval: getEnvDurationOrDefault("MELON_LIVENESS_CHECK_INTERVAL", 5*time.Second),
		LivenessThreshold:     getEnvDurationOrDefault("MELON_LIVENESS_THRESHOLD", 30*time.Second),
		RPCTimeout:            getEnvDurationOrDefault("MELON_RPC_TIMEOUT", 5*time.Second),
		Debug:                 getEnvBoolOrDefault("MELON_DEBUG", false),
	}
}

// Load re-reads environment overrides into an existing MasterConfig.
func (c *MasterConfig) Load() {
	c.ListenAddr = getEnvOrDefault("MELON_LISTEN_ADDR", c.ListenAddr)
	c.HTTPListenAddr = getEnvOrDefault("MELON_HTTP_LISTEN_ADDR", c.HTTPListenAddr)
	c.StorePath = getEnvOrDefault("MELON_STORE_PATH", c.StorePath)
	c.PlacementTick = getEnvDurationOrDefault("MELON_PLACEMENT_TICK", c.PlacementTick)
	c.LivenessCheckInterval = getEnvDurationOrDefault("MELON_LIVENESS_CHECK_INTERVAL", c.LivenessCheckInterval)
	c.LivenessThreshold = getEnvDurationOrDefault("MELON_LIVENESS_THRESHOLD", c.LivenessThreshold)
	c.RPCTimeout = getEnvDurationOrDefault("MELON_RPC_TIMEOUT", c.RPCTimeout)
	c.Debug = getEnvBoolOrDefault("MELON_DEBUG", c.Debug)
}

// Validate validates the MasterConfig.
func (c *MasterConfig) Validate() error {
	if c.ListenAddr == "" {
		return ErrMissingListenAddr
	}
	if c.StorePath == "" {
		return ErrMissingStorePath
	}
	if c.PlacementTick <= 0 {
		return ErrInvalidPlacementTick
	}
	if c.LivenessThreshold <= c.LivenessCheckInterval {
		return ErrInvalidLivenessThreshold
	}
	if c.RPCTimeout <= 0 {
		return ErrInvalidRPCTimeout
	}
	return nil
}

// WorkerConfig holds configuration for melon-worker.
type WorkerConfig struct {
	// MasterAddr is the melon-master RPC address to register with.
	MasterAddr string

	// ListenAddr is the address this worker listens on for master-initiated
	// RPCs (AssignJob, CancelJob, ExtendJob).
	ListenAddr string

	// HeartbeatInterval is how often the worker sends SendHeartbeat (§4.4).
	HeartbeatInterval time.Duration

	// CgroupRoot is the parent cgroup hierarchy melon-worker creates
	// per-job cgroups under, on platforms where cgroups are enabled (§4.5/§9).
	CgroupRoot string

	// CgroupEnabled gates only the startup sweep of stale job groups under
	// CgroupRoot. Supervisors create a per-job cgroup under CgroupRoot
	// whatever its value, and run the job unconfined if that fails.
	CgroupEnabled bool

	// KillGracePeriod is how long the supervisor waits between SIGTERM and
	// SIGKILL when a deadline, cancel, or shutdown fires (§4.5).
	KillGracePeriod time.Duration

	// TotalCPUCount is the CPU count this worker advertises at RegisterNode.
	// Defaults to the host's logical CPU count.
	TotalCPUCount uint32

	// TotalMemoryBytes is the memory capacity this worker advertises at
	// RegisterNode. There is no portable stdlib way to query total system
	// memory, so this defaults to a conservative 4GiB and is normally set
	// explicitly via MELON_TOTAL_MEMORY_BYTES in production.
	TotalMemoryBytes uint64

	// Debug enables debug-level logging.
	Debug bool
}

// NewWorkerDefault returns a WorkerConfig populated with the recommended
// values from spec §4.4/§4.5/§9, overridable via environment variables.
func NewWorkerDefault() *WorkerConfig {
	return &WorkerConfig{
		MasterAddr:        getEnvOrDefault("MELON_MASTER_ADDR", "localhost:6817"),
		ListenAddr:        getEnvOrDefault("MELON_LISTEN_ADDR", ":6819"),
		HeartbeatInterval: getEnvDurationOrDefault("MELON_HEARTBEAT_INTERVAL", 5*time.Second),
		CgroupRoot:        getEnvOrDefault("MELON_CGROUP_ROOT", "/sys/fs/cgroup/melon"),
		CgroupEnabled:     getEnvBoolOrDefault("MELON_CGROUP_ENABLED", true),
		KillGracePeriod:   getEnvDurationOrDefault("MELON_KILL_GRACE_PERIOD", 5*time.Second),
		TotalCPUCount:     getEnvUint32OrDefault("MELON_TOTAL_CPU_COUNT", uint32(runtime.NumCPU())),
		TotalMemoryBytes:  getEnvUint64OrDefault("MELON_TOTAL_MEMORY_BYTES", 4<<30),
		Debug:             getEnvBoolOrDefault("MELON_DEBUG", false),
	}
}

// Load re-reads environment overrides into an existing WorkerConfig.
func (c *WorkerConfig) Load() {
	c.MasterAddr = getEnvOrDefault("MELON_MASTER_ADDR", c.MasterAddr)
	c.ListenAddr = getEnvOrDefault("MELON_LISTEN_ADDR", c.ListenAddr)
	c.HeartbeatInterval = getEnvDurationOrDefault("MELON_HEARTBEAT_INTERVAL", c.HeartbeatInterval)
	c.CgroupRoot = getEnvOrDefault("MELON_CGROUP_ROOT", c.CgroupRoot)
	c.CgroupEnabled = getEnvBoolOrDefault("MELON_CGROUP_ENABLED", c.CgroupEnabled)
	c.KillGracePeriod = getEnvDurationOrDefault("MELON_KILL_GRACE_PERIOD", c.KillGracePeriod)
	c.TotalCPUCount = getEnvUint32OrDefault("MELON_TOTAL_CPU_COUNT", c.TotalCPUCount)
	c.TotalMemoryBytes = getEnvUint64OrDefault("MELON_TOTAL_MEMORY_BYTES", c.TotalMemoryBytes)
	c.Debug = getEnvBoolOrDefault("MELON_DEBUG", c.Debug)
}

// Validate validates the WorkerConfig.
func (c *WorkerConfig) Validate() error {
	if c.MasterAddr == "" {
		return ErrMissingMasterAddr
	}
	if c.ListenAddr == "" {
		return ErrMissingListenAddr
	}
	if c.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if c.TotalCPUCount == 0 {
		return ErrInvalidTotalCPUCount
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvUint32OrDefault(key string, defaultValue uint32) uint32 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseUint(value, 10, 32); err == nil {
			return uint32(n)
		}
	}
	return defaultValue
}

func getEnvUint64OrDefault(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseUint(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
