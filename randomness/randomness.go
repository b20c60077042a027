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

// Package randomness provides the random sources used for secret sharing and hedging.
package randomness

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/google/privacy-sandbox-distributed-noise/field"
)

// ErrRandomnessFailure is wrapped by every error caused by a source failing to
// produce output.
var ErrRandomnessFailure = errors.New("randomness source failure")

// Source is a stream of uniformly random bytes.
//
// Production code must use NewCryptoSource. Seeded sources are for tests and
// simulations only.
type Source interface {
	io.Reader
}

type cryptoSource struct{}

func (cryptoSource) Read(p []byte) (int, error) { return rand.Read(p) }

// NewCryptoSource returns a source backed by the operating system CSPRNG.
func NewCryptoSource() Source {
	return cryptoSource{}
}

// NewSeededSource returns a deterministic SHAKE128 stream keyed by seed.
//
// The returned source is not safe for concurrent use.
func NewSeededSource(seed []byte) Source {
	h := sha3.NewShake128()
	h.Write([]byte("distributed-noise seeded source"))
	h.Write(seed)
	return h
}

// NewSeededSourceForStream derives an independent deterministic source for
// stream index i from a common seed.
func NewSeededSourceForStream(seed []byte, i uint64) Source {
	b := make([]byte, len(seed)+8)
	copy(b, seed)
	binary.BigEndian.PutUint64(b[len(seed):], i)
	return NewSeededSource(b)
}

// Bool returns a uniformly random boolean.
func Bool(src Source) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(src, b[:]); err != nil {
		return false, fmt.Errorf("%w: %v", ErrRandomnessFailure, err)
	}
	return b[0]&1 == 1, nil
}

// Bools returns n independent uniformly random booleans.
func Bools(src Source, n int) ([]bool, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(src, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomnessFailure, err)
	}
	result := make([]bool, n)
	for i := range b {
		result[i] = b[i]&1 == 1
	}
	return result, nil
}

// Element returns a uniformly random element of f.
func Element[E field.Element[E]](f field.Field[E], src Source) (E, error) {
	e, err := f.Random(src)
	if err != nil {
		return f.Zero(), fmt.Errorf("%w: %v", ErrRandomnessFailure, err)
	}
	return e, nil
}

// Vector returns n independent uniformly random elements of f.
func Vector[E field.Element[E]](f field.Field[E], src Source, n int) ([]E, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	result := make([]E, n)
	for i := range result {
		e, err := Element(f, src)
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}
