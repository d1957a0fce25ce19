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


package core

import (
	"fmt"
	"math"
)

// ValidateEmbedding validates the parts of an Embedding a caller supplies.
//
// Validation rules:
//   - EntityID must not be empty
//   - Vector must not be empty
//   - Every vector component must be finite
//
// NOT validated (populated by stores):
//   - Checksum
//   - InsertedAt / UpdatedAt
func ValidateEmbedding(entityID string, vector []float32) error {
	if entityID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, ErrEmptyEntityID)
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, ErrEmptyVector)
	}
	if !IsFinite(vector) {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, ErrNonFiniteVector)
	}
	return nil
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// CheckDimension returns a DimensionMismatchError when len(v) != expected.
// An expected dimension of 0 accepts any length.
func CheckDimension(expected int, v []float32) error {
	if expected != 0 && len(v) != expected {
		return NewDimensionMismatch(expected, len(v))
	}
	return nil
}
