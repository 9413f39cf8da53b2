package runtime

import (
	"context"
	"time"

	"github.com/oterdem/mcptab/config"
	"golang.org/x/sync/semaphore"
)

// Limits captures the concurrency and result-size guardrails configured for
// the server.
type Limits struct {
	// Concurrency cap
	MaxConcurrentRequests int

	// Result bounds
	MaxRows          int
	HeadRows         int
	MaxSearchResults int

	// Dispatcher guard threshold for repeated identical failures
	RepeatedErrorLimit int

	// Timeouts
	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
	RateFetchTimeout      time.Duration
}

// NewLimits initializes Limits with sensible fallbacks when values are unset.
func NewLimits(maxConcurrentRequests, maxRows int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxRows <= 0 {
		maxRows = config.DefaultMaxRows
	}

	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxRows:               maxRows,
		HeadRows:              config.DefaultHeadRows,
		MaxSearchResults:      config.DefaultMaxSearchResults,
		RepeatedErrorLimit:    config.DefaultRepeatedErrorLimit,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
		RateFetchTimeout:      config.DefaultRateFetchTimeout,
	}
}

// Controller coordinates the request semaphore guardrail. The dataset itself
// is single-writer by contract; the request gate bounds how many tool calls
// can be in flight at once regardless.
type Controller struct {
	limits           Limits
	requestSemaphore *semaphore.Weighted
}

// NewController constructs a Controller backed by a weighted semaphore.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:           limits,
		requestSemaphore: semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
	}
}

// AcquireRequest reserves capacity for an incoming request.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	return c.requestSemaphore.Acquire(ctx, 1)
}

// ReleaseRequest frees previously-acquired request capacity.
func (c *Controller) ReleaseRequest() {
	c.requestSemaphore.Release(1)
}

// LimitsSnapshot exposes the configured guardrails for telemetry and discovery.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
