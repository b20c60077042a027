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

// Package field contains the prime fields used for secret sharing the noise inputs.
//
// The noise and sharing code is generic over Element and Field, so any prime
// field with an integer encoding can be plugged in.
package field

import (
	"errors"
	"fmt"
	"io"
	"math/big"
)

// ErrNotInvertible is returned when inverting the additive identity.
var ErrNotInvertible = errors.New("field element is not invertible")

// Element is a value in a prime field. Implementations are immutable values.
type Element[E any] interface {
	comparable

	Add(E) E
	Sub(E) E
	Mul(E) E
	Neg() E
	// Inv returns the multiplicative inverse, or ErrNotInvertible for zero.
	Inv() (E, error)
	IsZero() bool
	Equal(E) bool
	// Big returns the canonical integer representative in [0, modulus).
	Big() *big.Int
	// Bytes returns the big-endian encoding of length Field.EncodedLen().
	Bytes() []byte
	String() string
}

// Field describes a prime field whose elements have type E.
type Field[E Element[E]] interface {
	// Name identifies the field in serialized records.
	Name() string
	Zero() E
	One() E
	// FromUint64 returns the element with integer representative x. It fails if
	// x is not below the modulus.
	FromUint64(x uint64) (E, error)
	// FromBig returns the element with integer representative x. It fails if x
	// is negative or not below the modulus.
	FromBig(x *big.Int) (E, error)
	Modulus() *big.Int
	EncodedLen() int
	// Decode parses the output of Element.Bytes.
	Decode(b []byte) (E, error)
	// Random draws a uniformly distributed element using bytes from r.
	Random(r io.Reader) (E, error)
}

// Sum adds up the input elements. The sum of no elements is zero.
func Sum[E Element[E]](f Field[E], elems []E) E {
	sum := f.Zero()
	for _, e := range elems {
		sum = sum.Add(e)
	}
	return sum
}

// InvUint64 returns the inverse of the integer x embedded in the field.
func InvUint64[E Element[E]](f Field[E], x uint64) (E, error) {
	e, err := f.FromUint64(x)
	if err != nil {
		return f.Zero(), err
	}
	return e.Inv()
}

// EncodeSigned embeds a signed integer in the field, mapping negative values
// to modulus - |x|.
func EncodeSigned[E Element[E]](f Field[E], x int64) (E, error) {
	v := big.NewInt(x)
	if v.Sign() < 0 {
		v.Add(v, f.Modulus())
	}
	return f.FromBig(v)
}

// DecodeSigned interprets elements above modulus/2 as negative integers.
func DecodeSigned[E Element[E]](f Field[E], e E) *big.Int {
	v := e.Big()
	half := new(big.Int).Rsh(f.Modulus(), 1)
	if v.Cmp(half) > 0 {
		v.Sub(v, f.Modulus())
	}
	return v
}

// DecodeSignedInt64 is DecodeSigned for results known to fit in an int64.
func DecodeSignedInt64[E Element[E]](f Field[E], e E) (int64, error) {
	v := DecodeSigned(f, e)
	if !v.IsInt64() {
		return 0, fmt.Errorf("decoded value %s overflows int64", v.String())
	}
	return v.Int64(), nil
}

// Names returns the name of every field implemented in this package.
func Names() []string {
	return []string{Field64{}.Name(), Field128{}.Name()}
}

func readExactly(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
