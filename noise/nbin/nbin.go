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

// Package nbin implements the centered binomial noise mechanism from ia.cr/2022/1391.
//
// The noise is (sum(b) - n/2) / m for a vector b of n uniformly random bits. The
// bits are secret shared between the aggregators, and each aggregator derives
// its share of the noise from its share of the bits.
package nbin

import (
	"fmt"
	"math/big"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/noise"
)

// NBin is an immutable configuration of the mechanism.
type NBin[E field.Element[E]] struct {
	f     field.Field[E]
	n     int
	m     uint64
	nDiv2 E
	mInv  E
}

var _ noise.Noise[field.Elem128] = (*NBin[field.Elem128])(nil)

// New validates the parameters and returns the mechanism for n bits scaled by 1/m.
func New[E field.Element[E]](f field.Field[E], n int, m uint64) (*NBin[E], error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: expect positive bit count, got %d", noise.ErrConfiguration, n)
	}
	nElem, err := f.FromBig(big.NewInt(int64(n)))
	if err != nil {
		return nil, fmt.Errorf("%w: bit count %d: %v", noise.ErrConfiguration, n, err)
	}
	twoInv, err := field.InvUint64(f, 2)
	if err != nil {
		return nil, fmt.Errorf("%w: 2 is not invertible in %s", noise.ErrConfiguration, f.Name())
	}
	mInv, err := field.InvUint64(f, m)
	if err != nil {
		return nil, fmt.Errorf("%w: scale %d is not invertible in %s: %v", noise.ErrConfiguration, m, f.Name(), err)
	}
	return &NBin[E]{
		f:     f,
		n:     n,
		m:     m,
		nDiv2: nElem.Mul(twoInv),
		mInv:  mInv,
	}, nil
}

// BitvecLen returns the length of the bit vectors consumed by SampleFromBitvec.
func (d *NBin[E]) BitvecLen() int {
	return d.n
}

// SampleFromBitvec computes one party's share of the noise, m^-1 * (sum(bitvec) - n/(2k)).
//
// bitvec is the party's share of the bit vector, or the bit vector itself when
// numShares is 1. The result has exactly one element.
func (d *NBin[E]) SampleFromBitvec(bitvec []E, numShares int) ([]E, error) {
	if got := len(bitvec); got != d.n {
		return nil, fmt.Errorf("%w: expect %d bits, got %d", noise.ErrLengthMismatch, d.n, got)
	}
	if numShares < 1 {
		return nil, fmt.Errorf("%w: expect positive share count, got %d", noise.ErrConfiguration, numShares)
	}
	numSharesInv, err := field.InvUint64(d.f, uint64(numShares))
	if err != nil {
		return nil, fmt.Errorf("%w: share count %d is not invertible: %v", noise.ErrConfiguration, numShares, err)
	}
	y := field.Sum(d.f, bitvec)
	return []E{d.mInv.Mul(y.Sub(d.nDiv2.Mul(numSharesInv)))}, nil
}

// Value returns the reconstructed noise in sample as an exact rational number,
// for a mechanism with scale m.
//
// Samples are multiples of 1/(2m), so 2m*sample is decoded as a signed integer.
func Value[E field.Element[E]](f field.Field[E], sample E, m uint64) (*big.Rat, error) {
	if m == 0 {
		return nil, fmt.Errorf("%w: scale must be positive", noise.ErrConfiguration)
	}
	mElem, err := f.FromBig(new(big.Int).SetUint64(m))
	if err != nil {
		return nil, fmt.Errorf("%w: scale %d: %v", noise.ErrConfiguration, m, err)
	}
	num := field.DecodeSigned(f, sample.Mul(mElem.Add(mElem)))
	denom := new(big.Int).Lsh(new(big.Int).SetUint64(m), 1)
	return new(big.Rat).SetFrac(num, denom), nil
}

// Variance returns the variance of the reconstructed noise, n / (4m^2).
func (d *NBin[E]) Variance() float64 {
	m := float64(d.m)
	return float64(d.n) / (4 * m * m)
}
