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

// Package secretshare contains functions for splitting vectors into additive shares and combining them.
package secretshare

import (
	"errors"
	"fmt"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/noise"
	"github.com/google/privacy-sandbox-distributed-noise/randomness"
)

// Split returns k shares of value whose elementwise sum is value.
//
// The first k-1 shares are drawn uniformly from src, so any k-1 of the shares
// are independent of value. Splitting into one share consumes no randomness.
func Split[E field.Element[E]](f field.Field[E], value []E, k int, src randomness.Source) ([][]E, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: expect positive share count, got %d", noise.ErrConfiguration, k)
	}

	last := make([]E, len(value))
	copy(last, value)
	shares := make([][]E, 0, k)
	for i := 1; i < k; i++ {
		share, err := randomness.Vector(f, src, len(value))
		if err != nil {
			return nil, err
		}
		for j := range last {
			last[j] = last[j].Sub(share[j])
		}
		shares = append(shares, share)
	}
	return append(shares, last), nil
}

// Combine adds up the shares elementwise.
func Combine[E field.Element[E]](f field.Field[E], shares [][]E) ([]E, error) {
	if len(shares) == 0 {
		return nil, errors.New("empty input shares")
	}
	n := len(shares[0])
	result := make([]E, n)
	for i := range result {
		result[i] = f.Zero()
	}
	for i, share := range shares {
		if len(share) != n {
			return nil, fmt.Errorf("%w: share %d has length %d, want %d", noise.ErrLengthMismatch, i, len(share), n)
		}
		for j, e := range share {
			result[j] = result[j].Add(e)
		}
	}
	return result, nil
}
