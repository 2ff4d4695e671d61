// Package gblup is an embedded genomic prediction engine.
//
// The engine builds a genomic relationship matrix (GRM, VanRaden Method 1)
// from marker dosages and solves the GBLUP mixed model to produce genomic
// estimated breeding values (GEBV) with per-individual reliability and
// accuracy. Heritability is always a supplied parameter; variance-component
// estimation is out of scope.
//
// Two calling shapes are supported:
//
//   - Embedded/synchronous: BuildGRM, Solve and Run block until the
//     computation finishes. Each call is a pure function of its inputs and
//     concurrent calls on independent inputs are safe.
//   - Asynchronous jobs: SubmitBuildGRM, SubmitSolve and SubmitRun enqueue
//     the computation on a worker pool and return a job ID with a
//     queued → running → completed|failed|cancelled lifecycle. Results can
//     be persisted through a configured artifact store.
//
// The two-step workflow threads the relationship matrix explicitly:
//
//	g, err := eng.BuildGRM(ctx, gblup.GRMRequest{Markers: dosages})
//	res, err := eng.Solve(ctx, gblup.SolveRequest{
//		Phenotypes:   phenotypes,
//		GMatrix:      g.Matrix,
//		Heritability: 0.5,
//	})
//
// There is no hidden shared state between the two calls.
//
// Supporting packages cover the rest of the pipeline: genotype (dosage
// validation and allele frequencies), grm (matrix construction and
// population summaries), solver (the mixed model), rrblup (marker-effect
// model), popgen (LD, HWE, eigenspectrum, selection indices), crossval
// (k-fold predictive-ability estimation), jobs, resource, codec and
// artifact.
package gblup
