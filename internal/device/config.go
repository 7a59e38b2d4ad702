package device

import "time"

// Config holds device runtime settings.
type Config struct {
	// TransferTimeout bounds every blocking copy whose context has no deadline.
	// Zero keeps copies unbounded.
	TransferTimeout time.Duration

	// MaxFailures consecutive transfer failures open the circuit breaker.
	// Zero disables the breaker.
	MaxFailures int

	// BreakerCooldown is how long an open breaker rejects transfers before probing.
	BreakerCooldown time.Duration

	// Capacity caps HostDevice allocations in bytes. Zero means unbounded.
	Capacity int64

	// PoolEnabled recycles freed HostDevice regions.
	PoolEnabled bool

	// PoolMaxBytes caps the bytes held by the pool. Zero means unbounded.
	PoolMaxBytes int64
}

// DefaultConfig returns the settings used by the CLI when no flags are given.
func DefaultConfig() Config {
	return Config{
		TransferTimeout: 0,
		MaxFailures:     5,
		BreakerCooldown: 5 * time.Second,
		Capacity:        0,
		PoolEnabled:     true,
		PoolMaxBytes:    256 << 20,
	}
}
