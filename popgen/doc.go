// Package popgen provides population-genetics diagnostics around the core
// pipeline: linkage disequilibrium, Hardy-Weinberg tests, MAF filtering,
// GRM eigenspectra for population structure, and multi-trait summaries
// (genetic correlations, selection indices).
package popgen
