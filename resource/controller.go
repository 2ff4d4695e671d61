// Package resource gates the engine's shared resources: how many matrix
// solves run at once, how much memory they may reserve, and how fast new
// jobs may be submitted.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// SolveBytes estimates the working-set memory of one mixed-model solve of
// dimension n: the relationship matrix, its factorization, and the
// smoother, each n x n float64.
func SolveBytes(n int) int64 {
	return 3 * int64(n) * int64(n) * 8
}

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for reserved solve memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxConcurrentSolves is the maximum number of solves running at once.
	// If 0, defaults to 1.
	MaxConcurrentSolves int64

	// SubmitRatePerSec is the maximum job submission rate.
	// If 0, unlimited.
	SubmitRatePerSec float64
}

// Controller manages global resources (memory, solve concurrency,
// submission rate). A nil *Controller enforces nothing.
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Solve concurrency
	solveSem *semaphore.Weighted

	// Submission throttling
	submitLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentSolves <= 0 {
		cfg.MaxConcurrentSolves = 1
	}

	c := &Controller{
		cfg:      cfg,
		solveSem: semaphore.NewWeighted(cfg.MaxConcurrentSolves),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.SubmitRatePerSec > 0 {
		burst := int(cfg.SubmitRatePerSec)
		if burst < 1 {
			burst = 1
		}
		c.submitLimiter = rate.NewLimiter(rate.Limit(cfg.SubmitRatePerSec), burst)
	}

	return c
}

// AcquireMemory attempts to reserve memory.
// If a hard limit is configured and usage would exceed it,
// this blocks until memory is available or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if the limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil {
		return true
	}
	if bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current reserved memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireSolve reserves a solve slot. Blocks if all slots are busy.
func (c *Controller) AcquireSolve(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.solveSem.Acquire(ctx, 1)
}

// TryAcquireSolve reserves a solve slot without blocking.
func (c *Controller) TryAcquireSolve() bool {
	if c == nil {
		return true
	}
	return c.solveSem.TryAcquire(1)
}

// ReleaseSolve releases a solve slot.
func (c *Controller) ReleaseSolve() {
	if c == nil {
		return
	}
	c.solveSem.Release(1)
}

// AcquireSubmit waits until the submission limiter allows another job.
func (c *Controller) AcquireSubmit(ctx context.Context) error {
	if c == nil || c.submitLimiter == nil {
		return nil
	}
	return c.submitLimiter.Wait(ctx)
}
