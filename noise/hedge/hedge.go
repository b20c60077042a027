// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hedge randomly inverts bit vector positions to hedge against clients
// that submit shares of values other than 0 or 1.
//
// All parties holding shares of the same bit vector must apply the same Vector.
// Inverting position i maps every share s to 1/k - s, so the reconstructed value
// b becomes 1 - b. A client that does not know which positions are inverted
// cannot bias the noise in a chosen direction.
package hedge

import (
	"fmt"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/noise"
	"github.com/google/privacy-sandbox-distributed-noise/randomness"
)

// Vector holds one inversion flag per bit position.
type Vector []bool

// NewVector draws n independent uniformly random inversion flags.
func NewVector(n int, src randomness.Source) (Vector, error) {
	flags, err := randomness.Bools(src, n)
	if err != nil {
		return nil, fmt.Errorf("generating hedge vector: %w", err)
	}
	return Vector(flags), nil
}

// Apply returns a copy of share with every flagged position replaced by 1/k - share[i].
func Apply[E field.Element[E]](f field.Field[E], share []E, v Vector, k int) ([]E, error) {
	if len(share) != len(v) {
		return nil, fmt.Errorf("%w: share has length %d, hedge vector has length %d", noise.ErrLengthMismatch, len(share), len(v))
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: expect positive share count, got %d", noise.ErrConfiguration, k)
	}
	kInv, err := field.InvUint64(f, uint64(k))
	if err != nil {
		return nil, fmt.Errorf("%w: share count %d is not invertible: %v", noise.ErrConfiguration, k, err)
	}

	result := make([]E, len(share))
	for i, s := range share {
		if v[i] {
			result[i] = kInv.Sub(s)
		} else {
			result[i] = s
		}
	}
	return result, nil
}

// Inverted returns the number of flagged positions.
func (v Vector) Inverted() int {
	var count int
	for _, b := range v {
		if b {
			count++
		}
	}
	return count
}
