// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package vecmath

import (
	"math"

	"github.com/poiesic/codesense/core"
)

func checkLen(a, b []float32) error {
	if len(a) != len(b) {
		return core.NewDimensionMismatch(len(a), len(b))
	}
	return nil
}

// Dot returns the dot product of a and b.
func Dot(a, b []float32) (float64, error) {
	if err := checkLen(a, b); err != nil {
		return 0, err
	}
	return dot(a, b), nil
}

// Cosine returns dot(a,b) / (|a|*|b|).
// When either vector has zero norm the similarity is defined as 0.
func Cosine(a, b []float32) (float64, error) {
	if err := checkLen(a, b); err != nil {
		return 0, err
	}
	var ab, aa, bb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		ab += x * y
		aa += x * x
		bb += y * y
	}
	if aa == 0 || bb == 0 {
		return 0, nil
	}
	sim := ab / (math.Sqrt(aa) * math.Sqrt(bb))
	// rounding can push |sim| just past 1
	return math.Max(-1, math.Min(1, sim)), nil
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b []float32) (float64, error) {
	if err := checkLen(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Manhattan returns the L1 distance between a and b.
func Manhattan(a, b []float32) (float64, error) {
	if err := checkLen(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i]) - float64(b[i]))
	}
	return sum, nil
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

// Normalize returns a unit-length copy of v.
// A zero vector yields a zero vector of the same length.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
