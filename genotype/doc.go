// Package genotype validates raw marker calls and derives the per-marker
// statistics the rest of the engine consumes.
//
// The central type is Matrix, an immutable n individuals x m markers dosage
// matrix with an explicit missing-call mask. Encode is the only constructor;
// once built, a Matrix never changes, which is what allows a single genotype
// panel to feed GRM construction, marker-effect models and population
// statistics concurrently.
//
// Dosages follow the additive diploid coding: 0 (homozygous reference),
// 1 (heterozygous), 2 (homozygous alternate). Missing calls are NaN or -1 on
// the wire and are tracked in a Roaring bitmap rather than being coerced to a
// fake dosage.
package genotype
