package config

import "errors"

var (
	// ErrMissingListenAddr is returned when a daemon's RPC listen address is not set.
	ErrMissingListenAddr = errors.New("listen address is required")

	// ErrMissingMasterAddr is returned when a worker has no master address to register with.
	ErrMissingMasterAddr = errors.New("master address is required")

	// ErrMissingStorePath is returned when the master's job store path is not set.
	ErrMissingStorePath = errors.New("store path is required")

	// ErrInvalidPlacementTick is returned when the placement tick is not positive.
	ErrInvalidPlacementTick = errors.New("placement tick must be greater than 0")

	// ErrInvalidLivenessThreshold is returned when the liveness threshold is not
	// larger than the liveness check interval.
	ErrInvalidLivenessThreshold = errors.New("liveness threshold must be greater than the liveness check interval")

	// ErrInvalidRPCTimeout is returned when the RPC timeout is not positive.
	ErrInvalidRPCTimeout = errors.New("rpc timeout must be greater than 0")

	// ErrInvalidHeartbeatInterval is returned when the heartbeat interval is not positive.
	ErrInvalidHeartbeatInterval = errors.New("heartbeat interval must be greater than 0")

	// ErrInvalidTotalCPUCount is returned when a worker has no CPU capacity to advertise.
	ErrInvalidTotalCPUCount = errors.New("total cpu count must be greater than 0")
)
