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
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidEmbedding indicates an Embedding failed validation.
	ErrInvalidEmbedding = errors.New("invalid embedding")

	// ErrEmptyEntityID indicates the entity identifier is empty.
	ErrEmptyEntityID = errors.New("entity id cannot be empty")

	// ErrEmptyVector indicates the vector has no components.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrNonFiniteVector indicates the vector contains NaN or Inf.
	ErrNonFiniteVector = errors.New("vector contains non-finite values")

	// ErrInvalidEntityType indicates an unrecognised entity type name.
	ErrInvalidEntityType = errors.New("invalid entity type")

	// ErrDimensionMismatch matches any DimensionMismatchError via errors.Is.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// DimensionMismatchError reports a vector whose length disagrees with the expected one.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is allows errors.Is(err, ErrDimensionMismatch).
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// NewDimensionMismatch builds a DimensionMismatchError.
func NewDimensionMismatch(expected, actual int) error {
	return &DimensionMismatchError{Expected: expected, Actual: actual}
}
