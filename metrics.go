package gblup

import (
	"sync/atomic"
	"time"

	"github.com/breedkit/gblup/jobs"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordBuildGRM is called after each relationship-matrix build.
	// n is the number of individuals, err is nil if successful.
	RecordBuildGRM(n int, duration time.Duration, err error)

	// RecordSolve is called after each mixed-model solve.
	RecordSolve(n int, duration time.Duration, err error)

	// RecordJob is called when a submitted job reaches a terminal state.
	// duration covers queue wait plus execution.
	RecordJob(kind jobs.Kind, status jobs.Status, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuildGRM(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordSolve(int, time.Duration, error)           {}
func (NoopMetricsCollector) RecordJob(jobs.Kind, jobs.Status, time.Duration) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildGRMCount      atomic.Int64
	BuildGRMErrors     atomic.Int64
	BuildGRMTotalNanos atomic.Int64
	SolveCount         atomic.Int64
	SolveErrors        atomic.Int64
	SolveTotalNanos    atomic.Int64
	JobsCompleted      atomic.Int64
	JobsFailed         atomic.Int64
	JobsCancelled      atomic.Int64
}

// RecordBuildGRM implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuildGRM(n int, duration time.Duration, err error) {
	b.BuildGRMCount.Add(1)
	b.BuildGRMTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildGRMErrors.Add(1)
	}
}

// RecordSolve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSolve(n int, duration time.Duration, err error) {
	b.SolveCount.Add(1)
	b.SolveTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SolveErrors.Add(1)
	}
}

// RecordJob implements MetricsCollector.
func (b *BasicMetricsCollector) RecordJob(kind jobs.Kind, status jobs.Status, duration time.Duration) {
	switch status {
	case jobs.StatusCompleted:
		b.JobsCompleted.Add(1)
	case jobs.StatusFailed:
		b.JobsFailed.Add(1)
	case jobs.StatusCancelled:
		b.JobsCancelled.Add(1)
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector counters.
type BasicMetricsStats struct {
	BuildGRMCount    int64
	BuildGRMErrors   int64
	BuildGRMAvgNanos int64
	SolveCount       int64
	SolveErrors      int64
	SolveAvgNanos    int64
	JobsCompleted    int64
	JobsFailed       int64
	JobsCancelled    int64
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildGRMCount:    b.BuildGRMCount.Load(),
		BuildGRMErrors:   b.BuildGRMErrors.Load(),
		BuildGRMAvgNanos: avgNanos(b.BuildGRMCount.Load(), b.BuildGRMTotalNanos.Load()),
		SolveCount:       b.SolveCount.Load(),
		SolveErrors:      b.SolveErrors.Load(),
		SolveAvgNanos:    avgNanos(b.SolveCount.Load(), b.SolveTotalNanos.Load()),
		JobsCompleted:    b.JobsCompleted.Load(),
		JobsFailed:       b.JobsFailed.Load(),
		JobsCancelled:    b.JobsCancelled.Load(),
	}
}

func avgNanos(count, total int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}
