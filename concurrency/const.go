// concurrency/const.go
package concurrency

import "time"

const (
	// DefaultMaxConcurrency is the number of requests allowed in flight when none is configured.
	DefaultMaxConcurrency = 10

	// MinConcurrency is the smallest accepted limit.
	MinConcurrency = 1

	// MaxConcurrency is the largest accepted limit.
	MaxConcurrency = 100

	// DefaultPermitTimeout bounds how long a request waits for a permit.
	DefaultPermitTimeout = 10 * time.Second
)
