// Package jobs runs engine computations asynchronously: a submission
// becomes a tracked job with a queued → running → terminal lifecycle,
// executed on a fixed worker pool. Callers poll with Get or block with
// Wait; Cancel marks a job and discards its result, since a matrix
// factorization cannot be interrupted midway without re-running.
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ID identifies a submitted job.
type ID string

// NewID returns a fresh job identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// Kind labels what a job computes. Used for logging and metrics only.
type Kind string

const (
	KindBuildGRM Kind = "build_grm"
	KindSolve    Kind = "solve"
	KindRun      Kind = "run"
	KindCrossval Kind = "crossval"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Task is the unit of work a job executes. The context is cancelled when
// the job is cancelled or the manager closes; tasks that cannot observe it
// run to completion and have their result discarded.
type Task func(ctx context.Context) (any, error)

// Snapshot is a point-in-time view of a job. Result is nil unless Status
// is StatusCompleted; Err is nil unless Status is StatusFailed.
type Snapshot struct {
	ID       ID
	Kind     Kind
	Status   Status
	Result   any
	Err      error
	Created  time.Time
	Started  time.Time
	Finished time.Time
}
