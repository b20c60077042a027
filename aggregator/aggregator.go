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

// Package aggregator contains the per-party computation of the secret-shared noise.
//
// Every aggregator holds one share of a client bit vector and computes one share
// of the noise without talking to the other aggregators. The noise shares are
// summed in any order to get the noise that is added to the aggregate.
package aggregator

import (
	"context"
	"errors"
	"fmt"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/noise"
	"github.com/google/privacy-sandbox-distributed-noise/noise/hedge"
	"github.com/google/privacy-sandbox-distributed-noise/secretshare"
)

// Party is the stateless handler of one aggregator.
type Party[E field.Element[E]] struct {
	// Index of the share held by this party, starting from 0.
	Index int
	// Total number of shares of each bit vector.
	NumShares int
	Field     field.Field[E]
	Noise     noise.Noise[E]
}

// SampleShare applies the hedge vector, when not nil, to the party's bit vector
// share and returns the party's share of the noise.
func (p *Party[E]) SampleShare(share []E, v hedge.Vector) ([]E, error) {
	if p.Index < 0 || p.Index >= p.NumShares {
		return nil, fmt.Errorf("%w: party index %d out of range for %d shares", noise.ErrConfiguration, p.Index, p.NumShares)
	}
	if v != nil {
		var err error
		if share, err = hedge.Apply(p.Field, share, v, p.NumShares); err != nil {
			return nil, err
		}
		log.V(2).Infof("party %d inverted %d of %d positions", p.Index, v.Inverted(), len(v))
	}
	return p.Noise.SampleFromBitvec(share, p.NumShares)
}

// Combine adds up the noise shares from all parties. The order of the shares
// does not matter.
func Combine[E field.Element[E]](f field.Field[E], samples ...[]E) ([]E, error) {
	if len(samples) == 0 {
		return nil, errors.New("no noise shares to combine")
	}
	return secretshare.Combine(f, samples)
}

// SampleNoise runs one Party per share concurrently and combines their outputs.
//
// It is a local stand-in for the distributed execution, used by simulations
// and tests.
func SampleNoise[E field.Element[E]](ctx context.Context, f field.Field[E], dist noise.Noise[E], shares [][]E, v hedge.Vector) ([]E, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no bit vector shares", noise.ErrConfiguration)
	}

	samples := make([][]E, len(shares))
	g, ctx := errgroup.WithContext(ctx)
	for i := range shares {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			party := &Party[E]{Index: i, NumShares: len(shares), Field: f, Noise: dist}
			sample, err := party.SampleShare(shares[i], v)
			if err != nil {
				return fmt.Errorf("party %d: %w", i, err)
			}
			samples[i] = sample
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Combine(f, samples...)
}
