package gblup

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/breedkit/gblup/artifact"
	"github.com/breedkit/gblup/codec"
	"github.com/breedkit/gblup/crossval"
	"github.com/breedkit/gblup/genotype"
	"github.com/breedkit/gblup/grm"
	"github.com/breedkit/gblup/jobs"
	"github.com/breedkit/gblup/resource"
	"github.com/breedkit/gblup/solver"
)

// Engine is the embedded genomic prediction engine. It is stateless per
// invocation: every call is a pure function of its inputs, and concurrent
// calls on independent inputs are safe. The only mutable state the engine
// owns is the async job table.
type Engine struct {
	logger     *Logger
	metrics    MetricsCollector
	controller *resource.Controller
	store      artifact.Store
	codec      codec.Codec
	jobs       *jobs.Manager
	closed     atomic.Bool

	scaleEpsilon         float64
	reliabilityTolerance float64
}

// New creates an engine.
func New(optFns ...Option) (*Engine, error) {
	opts := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		codec:            codec.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Engine{
		logger:               opts.logger,
		metrics:              opts.metricsCollector,
		controller:           opts.controller,
		store:                opts.store,
		codec:                opts.codec,
		scaleEpsilon:         opts.scaleEpsilon,
		reliabilityTolerance: opts.reliabilityTolerance,
	}
	e.jobs = jobs.NewManager(opts.numWorkers, opts.controller)
	return e, nil
}

// Close shuts down the async worker pool. Running jobs are cancelled and
// their results discarded. Sync calls in flight are unaffected. Idempotent.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.jobs.Close()
	return nil
}

// GRMRequest carries the inputs of a relationship-matrix build.
// Markers is n individuals by m dosages in row-major order; missing calls
// are NaN or -1. Ploidy zero defaults to 2, the only supported value.
type GRMRequest struct {
	Markers [][]float64 `json:"markers"`
	Ploidy  int         `json:"ploidy,omitempty"`
}

// GRMResult is the wire form of a built relationship matrix.
type GRMResult struct {
	Matrix          [][]float64            `json:"matrix"`
	NIndividuals    int                    `json:"n_individuals"`
	NMarkersUsed    int                    `json:"n_markers_used"`
	NMarkersDropped int                    `json:"n_markers_dropped"`
	MeanDiagonal    float64                `json:"mean_diagonal"`
	MeanOffDiagonal float64                `json:"mean_off_diagonal"`
	MarkerReport    []genotype.MarkerStats `json:"marker_report,omitempty"`
}

// SolveRequest carries the inputs of a mixed-model solve against a
// previously built (or externally supplied) relationship matrix.
type SolveRequest struct {
	Phenotypes   []float64   `json:"phenotypes"`
	GMatrix      [][]float64 `json:"g_matrix"`
	Heritability float64     `json:"heritability"`
}

// RunRequest is the combined call for callers that do not need the
// intermediate relationship matrix.
type RunRequest struct {
	Markers      [][]float64 `json:"markers"`
	Ploidy       int         `json:"ploidy,omitempty"`
	Phenotypes   []float64   `json:"phenotypes"`
	Heritability float64     `json:"heritability"`
}

// RunResult couples the GRM build summary with the solver output.
type RunResult struct {
	GRM    *GRMResult     `json:"grm"`
	Result *solver.Result `json:"result"`
}

// BuildGRM validates the dosage matrix, estimates allele frequencies and
// builds the VanRaden Method 1 relationship matrix. Blocks until done.
func (e *Engine) BuildGRM(ctx context.Context, req GRMRequest) (*GRMResult, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	res, _, err := e.buildGRM(ctx, req.Markers, req.Ploidy)
	err = translateError(err)

	n := len(req.Markers)
	e.metrics.RecordBuildGRM(n, time.Since(start), err)
	e.logger.LogBuildGRM(ctx, n, markersUsed(res), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Solve fits the GBLUP mixed model against a caller-supplied relationship
// matrix. Blocks until the factorization completes; callers that need a
// responsive context run it through the job API and discard on cancel.
func (e *Engine) Solve(ctx context.Context, req SolveRequest) (*solver.Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	res, err := e.solve(ctx, req)
	err = translateError(err)

	e.metrics.RecordSolve(len(req.Phenotypes), time.Since(start), err)
	e.logger.LogSolve(ctx, len(req.Phenotypes), req.Heritability, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Run is the combined call: genotypes + phenotypes + heritability in one
// pass, with the relationship matrix handed to the solver directly instead
// of round-tripping through the wire form. Each phase is recorded under its
// own metric, so a combined run and the equivalent two-step sequence meter
// identically.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	grmRes, g, err := e.buildGRM(ctx, req.Markers, req.Ploidy)
	err = translateError(err)
	e.metrics.RecordBuildGRM(len(req.Markers), time.Since(start), err)
	e.logger.LogBuildGRM(ctx, len(req.Markers), markersUsed(grmRes), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	solveStart := time.Now()
	res, err := e.solveOn(ctx, g, req.Phenotypes, req.Heritability)
	err = translateError(err)
	e.metrics.RecordSolve(len(req.Phenotypes), time.Since(solveStart), err)
	e.logger.LogSolve(ctx, len(req.Phenotypes), req.Heritability, time.Since(solveStart), err)
	if err != nil {
		return nil, err
	}
	return &RunResult{GRM: grmRes, Result: res}, nil
}

// CrossValidate estimates the predictive ability of the configured model by
// repeated k-fold cross-validation. Blocks until every fold is evaluated.
func (e *Engine) CrossValidate(ctx context.Context, cfg crossval.Config) (*crossval.Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	res, err := crossval.KFold(ctx, cfg)
	if err != nil {
		return nil, translateError(err)
	}
	return res, nil
}

func (e *Engine) buildGRM(ctx context.Context, markers [][]float64, ploidy int) (*GRMResult, *grm.Matrix, error) {
	if ploidy == 0 {
		ploidy = genotype.Ploidy
	}

	mx, err := genotype.Encode(markers, ploidy)
	if err != nil {
		return nil, nil, err
	}

	ft, err := mx.Frequencies()
	if err != nil {
		return nil, nil, err
	}

	if err := e.acquire(ctx, int64(mx.Individuals())*int64(mx.Individuals())*8); err != nil {
		return nil, nil, err
	}
	defer e.release(int64(mx.Individuals()) * int64(mx.Individuals()) * 8)

	g, err := grm.BuildFromFrequencies(ctx, mx, ft, e.grmOptions()...)
	if err != nil {
		return nil, nil, err
	}

	res := &GRMResult{
		Matrix:          g.Rows(),
		NIndividuals:    g.N(),
		NMarkersUsed:    g.MarkersUsed(),
		NMarkersDropped: ft.ExcludedCount(),
		MeanDiagonal:    g.MeanDiagonal(),
		MeanOffDiagonal: g.MeanOffDiagonal(),
		MarkerReport:    ft.Report(),
	}
	return res, g, nil
}

func (e *Engine) solve(ctx context.Context, req SolveRequest) (*solver.Result, error) {
	g, err := grm.FromDense(req.GMatrix)
	if err != nil {
		return nil, err
	}
	return e.solveOn(ctx, g, req.Phenotypes, req.Heritability)
}

func (e *Engine) solveOn(ctx context.Context, g *grm.Matrix, y []float64, h2 float64) (*solver.Result, error) {
	if e.controller != nil {
		if err := e.controller.AcquireSolve(ctx); err != nil {
			return nil, err
		}
		defer e.controller.ReleaseSolve()
	}
	if err := e.acquire(ctx, resource.SolveBytes(g.N())); err != nil {
		return nil, err
	}
	defer e.release(resource.SolveBytes(g.N()))

	return solver.Solve(ctx, g, y, h2, e.solverOptions()...)
}

func (e *Engine) acquire(ctx context.Context, bytes int64) error {
	return e.controller.AcquireMemory(ctx, bytes)
}

func (e *Engine) release(bytes int64) {
	e.controller.ReleaseMemory(bytes)
}

func (e *Engine) grmOptions() []grm.Option {
	if e.scaleEpsilon <= 0 {
		return nil
	}
	return []grm.Option{grm.WithScaleEpsilon(e.scaleEpsilon)}
}

func (e *Engine) solverOptions() []solver.Option {
	if e.reliabilityTolerance <= 0 {
		return nil
	}
	return []solver.Option{solver.WithReliabilityTolerance(e.reliabilityTolerance)}
}

func markersUsed(res *GRMResult) int {
	if res == nil {
		return 0
	}
	return res.NMarkersUsed
}

// SubmitBuildGRM enqueues a relationship-matrix build and returns its job ID.
func (e *Engine) SubmitBuildGRM(ctx context.Context, req GRMRequest) (jobs.ID, error) {
	return e.submit(ctx, jobs.KindBuildGRM, func(ctx context.Context) (any, error) {
		return e.BuildGRM(ctx, req)
	})
}

// SubmitSolve enqueues a mixed-model solve and returns its job ID.
func (e *Engine) SubmitSolve(ctx context.Context, req SolveRequest) (jobs.ID, error) {
	return e.submit(ctx, jobs.KindSolve, func(ctx context.Context) (any, error) {
		return e.Solve(ctx, req)
	})
}

// SubmitRun enqueues a combined build-and-solve and returns its job ID.
func (e *Engine) SubmitRun(ctx context.Context, req RunRequest) (jobs.ID, error) {
	return e.submit(ctx, jobs.KindRun, func(ctx context.Context) (any, error) {
		return e.Run(ctx, req)
	})
}

// SubmitCrossval enqueues a cross-validation run and returns its job ID.
func (e *Engine) SubmitCrossval(ctx context.Context, cfg crossval.Config) (jobs.ID, error) {
	return e.submit(ctx, jobs.KindCrossval, func(ctx context.Context) (any, error) {
		return e.CrossValidate(ctx, cfg)
	})
}

func (e *Engine) submit(ctx context.Context, kind jobs.Kind, task jobs.Task) (jobs.ID, error) {
	if e.closed.Load() {
		return "", ErrClosed
	}

	id, err := e.jobs.Submit(ctx, kind, task)
	if err != nil {
		return "", err
	}
	e.logger.LogJob(ctx, id, kind, jobs.StatusQueued)

	// Observe the terminal state for logging, metrics and persistence
	// without holding the submitter.
	go e.observe(id, kind)

	return id, nil
}

func (e *Engine) observe(id jobs.ID, kind jobs.Kind) {
	snap, err := e.jobs.Wait(context.Background(), id)
	if err != nil {
		return
	}

	e.metrics.RecordJob(kind, snap.Status, snap.Finished.Sub(snap.Created))
	e.logger.LogJob(context.Background(), id, kind, snap.Status)

	if snap.Status == jobs.StatusCompleted && e.store != nil {
		if err := e.persist(snap); err != nil {
			e.logger.Warn("job result persistence failed", "job_id", string(id), "error", err)
		}
	}
}

func (e *Engine) persist(snap *jobs.Snapshot) error {
	data, err := e.codec.Marshal(snap.Result)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return e.store.Put(ctx, ResultKey(snap.ID), data)
}

// ResultKey returns the artifact key a completed job's result is persisted
// under.
func ResultKey(id jobs.ID) string {
	return "jobs/" + string(id) + "/result"
}

// Job returns a point-in-time snapshot of a submitted job.
func (e *Engine) Job(id jobs.ID) (*jobs.Snapshot, error) {
	return e.jobs.Get(id)
}

// WaitJob blocks until the job reaches a terminal state or ctx expires.
func (e *Engine) WaitJob(ctx context.Context, id jobs.ID) (*jobs.Snapshot, error) {
	return e.jobs.Wait(ctx, id)
}

// CancelJob marks a job cancelled. A queued job never starts; a running
// job's result is discarded when the computation returns.
func (e *Engine) CancelJob(id jobs.ID) error {
	return e.jobs.Cancel(id)
}
