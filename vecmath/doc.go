// Package vecmath provides the vector arithmetic used for similarity scoring.
//
// All functions are pure and safe for concurrent use. Inputs of unequal length
// fail with *core.DimensionMismatchError; nothing is truncated or padded.
// Accumulation happens in float64 regardless of the float32 storage type.
package vecmath
