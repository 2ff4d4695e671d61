// Package crossval estimates the predictive ability of genomic selection
// models by repeated k-fold cross-validation. Individuals are shuffled
// under a fixed seed and split into folds; each fold is predicted from a
// model trained on the remaining individuals, and the per-fold correlation
// between predicted and observed phenotypes is aggregated into a mean with
// a normal-approximation confidence interval.
package crossval

import (
	"context"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/breedkit/gblup/genotype"
	"github.com/breedkit/gblup/grm"
	"github.com/breedkit/gblup/internal/linalg"
	"github.com/breedkit/gblup/rrblup"
	"github.com/breedkit/gblup/solver"
)

// Method selects the model trained inside each fold.
type Method string

const (
	MethodGBLUP  Method = "gblup"
	MethodRRBLUP Method = "rrblup"
)

// Defaults applied to zero-valued Config fields.
const (
	DefaultFolds        = 5
	DefaultRepeats      = 1
	DefaultSeed         = 42
	DefaultHeritability = 0.5
)

// Config describes one cross-validation run.
type Config struct {
	// Markers is the n x m dosage matrix, missing calls as NaN.
	Markers [][]float64 `json:"markers"`

	// Phenotypes holds one observation per individual.
	Phenotypes []float64 `json:"phenotypes"`

	// Heritability is the narrow-sense h2 handed to the per-fold model.
	// Zero selects DefaultHeritability.
	Heritability float64 `json:"heritability,omitempty"`

	// Method picks the model; empty selects MethodGBLUP.
	Method Method `json:"method,omitempty"`

	Folds   int   `json:"folds,omitempty"`
	Repeats int   `json:"repeats,omitempty"`
	Seed    int64 `json:"seed,omitempty"`
}

// Result aggregates per-fold predictive correlations. PerFoldAccuracy is
// ordered by repeat, then fold.
type Result struct {
	Method          Method    `json:"method"`
	Folds           int       `json:"n_folds"`
	Repeats         int       `json:"n_repeats"`
	PerFoldAccuracy []float64 `json:"per_fold_accuracy"`
	MeanAccuracy    float64   `json:"mean_accuracy"`
	SEAccuracy      float64   `json:"se_accuracy"`
	CILower         float64   `json:"ci_lower"`
	CIUpper         float64   `json:"ci_upper"`
	NIndividuals    int       `json:"n_individuals"`
	NMarkers        int       `json:"n_markers"`
}

// KFold runs the configured cross-validation. Folds run concurrently,
// bounded by GOMAXPROCS; a fold whose model cannot be fit scores zero
// rather than failing the run.
func KFold(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Folds == 0 {
		cfg.Folds = DefaultFolds
	}
	if cfg.Repeats == 0 {
		cfg.Repeats = DefaultRepeats
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	if cfg.Heritability == 0 {
		cfg.Heritability = DefaultHeritability
	}
	if cfg.Method == "" {
		cfg.Method = MethodGBLUP
	}

	if cfg.Folds < 2 {
		return nil, ErrBadFoldCount
	}
	if cfg.Repeats < 1 {
		return nil, ErrBadRepeats
	}
	if cfg.Method != MethodGBLUP && cfg.Method != MethodRRBLUP {
		return nil, &MethodError{Method: cfg.Method}
	}
	if h2 := cfg.Heritability; math.IsNaN(h2) || h2 <= 0 || h2 >= 1 {
		return nil, &solver.HeritabilityError{Value: h2}
	}

	mx, err := genotype.Encode(cfg.Markers, 2)
	if err != nil {
		return nil, err
	}
	n := mx.Individuals()
	if len(cfg.Phenotypes) != n {
		return nil, &solver.DimensionError{Phenotypes: len(cfg.Phenotypes), Individuals: n}
	}
	for i, v := range cfg.Phenotypes {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &solver.PhenotypeError{Index: i, Value: v}
		}
	}
	if n < cfg.Folds {
		return nil, &FoldCountError{Folds: cfg.Folds, Individuals: n}
	}

	// All permutations come from one seeded stream, drawn before any fold
	// runs, so results do not depend on goroutine scheduling.
	rng := rand.New(rand.NewSource(cfg.Seed))
	splits := make([]split, 0, cfg.Folds*cfg.Repeats)
	for rep := 0; rep < cfg.Repeats; rep++ {
		splits = append(splits, partition(rng.Perm(n), cfg.Folds)...)
	}

	accuracies := make([]float64, len(splits))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for slot, sp := range splits {
		g.Go(func() error {
			r, err := evaluateFold(ctx, mx, cfg, sp)
			if err != nil {
				return err
			}
			accuracies[slot] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mean := stat.Mean(accuracies, nil)
	se := stat.PopStdDev(accuracies, nil) / math.Sqrt(float64(len(accuracies)))
	return &Result{
		Method:          cfg.Method,
		Folds:           cfg.Folds,
		Repeats:         cfg.Repeats,
		PerFoldAccuracy: accuracies,
		MeanAccuracy:    mean,
		SEAccuracy:      se,
		CILower:         mean - 1.96*se,
		CIUpper:         mean + 1.96*se,
		NIndividuals:    n,
		NMarkers:        mx.Markers(),
	}, nil
}

type split struct {
	train, test []int
}

// partition slices a permutation into k contiguous folds. The first n%k
// folds take one extra element, so every individual lands in exactly one
// test fold.
func partition(perm []int, k int) []split {
	n := len(perm)
	q, r := n/k, n%k

	blocks := make([][]int, k)
	offset := 0
	for f := 0; f < k; f++ {
		size := q
		if f < r {
			size++
		}
		blocks[f] = perm[offset : offset+size]
		offset += size
	}

	splits := make([]split, k)
	for f := 0; f < k; f++ {
		train := make([]int, 0, n-len(blocks[f]))
		for o := 0; o < k; o++ {
			if o != f {
				train = append(train, blocks[o]...)
			}
		}
		splits[f] = split{train: train, test: blocks[f]}
	}
	return splits
}

func evaluateFold(ctx context.Context, mx *genotype.Matrix, cfg Config, sp split) (float64, error) {
	trainMx := mx.Subset(sp.train)
	testMx := mx.Subset(sp.test)
	yTrain := pick(cfg.Phenotypes, sp.train)
	yTest := pick(cfg.Phenotypes, sp.test)

	var predicted []float64
	var err error
	switch cfg.Method {
	case MethodRRBLUP:
		predicted, err = predictRRBLUP(ctx, trainMx, testMx, yTrain, cfg.Heritability)
	default:
		predicted, err = predictGBLUP(ctx, trainMx, testMx, yTrain, cfg.Heritability)
	}
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, nil
	}
	return foldAccuracy(predicted, yTest), nil
}

// predictGBLUP scores held-out individuals through their genomic
// relationship to the training set: gebv = G_test,train (G+lambda*I)^-1
// (y - mu) + mu, with allele frequencies and the VanRaden scale taken
// from the training fold only.
func predictGBLUP(ctx context.Context, trainMx, testMx *genotype.Matrix, yTrain []float64, h2 float64) ([]float64, error) {
	ft, err := trainMx.Frequencies()
	if err != nil {
		return nil, err
	}
	gTrain, err := grm.BuildFromFrequencies(ctx, trainMx, ft)
	if err != nil {
		return nil, err
	}
	res, err := solver.Solve(ctx, gTrain, yTrain, h2)
	if err != nil {
		return nil, err
	}
	cross, err := grm.Cross(ctx, testMx, trainMx, ft)
	if err != nil {
		return nil, err
	}

	nt := gTrain.N()
	v := mat.NewSymDense(nt, nil)
	v.CopySym(gTrain.Sym())
	lambda := (1 - h2) / h2
	for i := 0; i < nt; i++ {
		v.SetSym(i, i, v.At(i, i)+lambda)
	}
	spd, err := linalg.NewSPDSolver(v)
	if err != nil {
		return nil, err
	}
	yc := make([]float64, nt)
	for i, p := range yTrain {
		yc[i] = p - res.Mean
	}
	w, err := spd.SolveVec(yc)
	if err != nil {
		return nil, err
	}

	var pred mat.VecDense
	pred.MulVec(cross, mat.NewVecDense(nt, w))
	out := make([]float64, testMx.Individuals())
	for i := range out {
		out[i] = pred.AtVec(i) + res.Mean
	}
	return out, nil
}

func predictRRBLUP(ctx context.Context, trainMx, testMx *genotype.Matrix, yTrain []float64, h2 float64) ([]float64, error) {
	fit, err := rrblup.Fit(ctx, trainMx, yTrain, h2)
	if err != nil {
		return nil, err
	}
	return fit.Predict(ctx, testMx)
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, ix := range idx {
		out[i] = values[ix]
	}
	return out
}

// foldAccuracy is cor(predicted, observed), zero whenever the correlation
// is undefined: a single observation, flat predictions, or flat
// phenotypes.
func foldAccuracy(predicted, observed []float64) float64 {
	if len(observed) < 2 {
		return 0
	}
	if stat.StdDev(predicted, nil) == 0 || stat.StdDev(observed, nil) == 0 {
		return 0
	}
	r := stat.Correlation(predicted, observed, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}
