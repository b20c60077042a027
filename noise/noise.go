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

// Package noise defines the interface shared by the secret-shared noise mechanisms.
package noise

import (
	"errors"

	"github.com/google/privacy-sandbox-distributed-noise/field"
)

var (
	// ErrConfiguration is returned for mechanism parameters that cannot be used.
	ErrConfiguration = errors.New("invalid noise configuration")
	// ErrLengthMismatch is returned when a vector does not have the expected length.
	ErrLengthMismatch = errors.New("vector length mismatch")
)

// Noise samples a share of a noise value from a share of a secret bit vector.
//
// Summing the outputs of every party, each calling SampleFromBitvec on its own
// share with the same numShares, gives the noise for the reconstructed bit vector.
type Noise[E field.Element[E]] interface {
	SampleFromBitvec(bitvec []E, numShares int) ([]E, error)
	BitvecLen() int
}
