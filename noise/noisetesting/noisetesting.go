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

// Package noisetesting contains helpers for simulating clients in tests and simulations.
//
// Nothing in this package is meant for production clients.
package noisetesting

import (
	"fmt"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/randomness"
)

// RandomBitvec returns n independent uniformly random bits embedded in f.
func RandomBitvec[E field.Element[E]](f field.Field[E], n int, src randomness.Source) ([]E, error) {
	flags, err := randomness.Bools(src, n)
	if err != nil {
		return nil, err
	}
	return BitsToVector(f, flags), nil
}

// BitsToVector embeds bits in f.
func BitsToVector[E field.Element[E]](f field.Field[E], bits []bool) []E {
	result := make([]E, len(bits))
	for i, b := range bits {
		if b {
			result[i] = f.One()
		} else {
			result[i] = f.Zero()
		}
	}
	return result
}

// FixedBitvec returns a vector of length n whose first ones entries are 1.
func FixedBitvec[E field.Element[E]](f field.Field[E], n, ones int) ([]E, error) {
	if ones < 0 || ones > n {
		return nil, fmt.Errorf("expect 0 <= ones <= %d, got %d", n, ones)
	}
	bits := make([]bool, n)
	for i := 0; i < ones; i++ {
		bits[i] = true
	}
	return BitsToVector(f, bits), nil
}
