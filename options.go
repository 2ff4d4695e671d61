package gblup

import (
	"github.com/breedkit/gblup/artifact"
	"github.com/breedkit/gblup/codec"
	"github.com/breedkit/gblup/resource"
)

type options struct {
	logger               *Logger
	metricsCollector     MetricsCollector
	controller           *resource.Controller
	store                artifact.Store
	codec                codec.Codec
	numWorkers           int
	scaleEpsilon         float64
	reliabilityTolerance float64
}

// Option configures engine constructor behavior.
type Option func(*options)

// WithLogger configures structured logging. Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(o *options) {
		if collector == nil {
			collector = NoopMetricsCollector{}
		}
		o.metricsCollector = collector
	}
}

// WithResourceController bounds solve concurrency, reserved memory and job
// submission rate. A nil controller enforces nothing.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithArtifactStore configures persistence of completed job results under
// the key "jobs/<id>/result". Without a store, results live only in the
// job table.
func WithArtifactStore(s artifact.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithCodec configures the codec used for persisted job results.
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithNumWorkers configures the size of the async job worker pool.
// numWorkers <= 0 selects GOMAXPROCS.
func WithNumWorkers(numWorkers int) Option {
	return func(o *options) {
		o.numWorkers = numWorkers
	}
}

// WithTolerances overrides the numeric thresholds: the degenerate-scale
// epsilon for GRM builds and the reliability clamp band for solves.
// Non-positive values keep the defaults.
func WithTolerances(scaleEpsilon, reliabilityTolerance float64) Option {
	return func(o *options) {
		if scaleEpsilon > 0 {
			o.scaleEpsilon = scaleEpsilon
		}
		if reliabilityTolerance > 0 {
			o.reliabilityTolerance = reliabilityTolerance
		}
	}
}
