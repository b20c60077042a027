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

package field

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"math/bits"
	"strconv"
)

// modulus64 is 2^64 - 2^32 + 1.
const modulus64 uint64 = 0xffffffff00000001

// Field64 is the prime field of order 2^64 - 2^32 + 1.
type Field64 struct{}

// Elem64 is an element of Field64, stored as its canonical representative.
type Elem64 struct {
	v uint64
}

var _ Field[Elem64] = Field64{}

// Name implements Field.
func (Field64) Name() string { return "Field64" }

// Zero implements Field.
func (Field64) Zero() Elem64 { return Elem64{} }

// One implements Field.
func (Field64) One() Elem64 { return Elem64{v: 1} }

// FromUint64 implements Field.
func (Field64) FromUint64(x uint64) (Elem64, error) {
	if x >= modulus64 {
		return Elem64{}, fmt.Errorf("integer %d is not below the Field64 modulus", x)
	}
	return Elem64{v: x}, nil
}

// FromBig implements Field.
func (f Field64) FromBig(x *big.Int) (Elem64, error) {
	if x.Sign() < 0 || !x.IsUint64() {
		return Elem64{}, fmt.Errorf("integer %s is out of the Field64 range", x.String())
	}
	return f.FromUint64(x.Uint64())
}

// Modulus implements Field.
func (Field64) Modulus() *big.Int { return new(big.Int).SetUint64(modulus64) }

// EncodedLen implements Field.
func (Field64) EncodedLen() int { return 8 }

// Decode implements Field.
func (f Field64) Decode(b []byte) (Elem64, error) {
	if want, got := f.EncodedLen(), len(b); want != got {
		return Elem64{}, fmt.Errorf("expect %d bytes, got %d", want, got)
	}
	return f.FromUint64(binary.BigEndian.Uint64(b))
}

// Random implements Field with rejection sampling.
func (Field64) Random(r io.Reader) (Elem64, error) {
	for {
		b, err := readExactly(r, 8)
		if err != nil {
			return Elem64{}, err
		}
		if v := binary.BigEndian.Uint64(b); v < modulus64 {
			return Elem64{v: v}, nil
		}
	}
}

// Add implements Element.
func (a Elem64) Add(b Elem64) Elem64 {
	s, carry := bits.Add64(a.v, b.v, 0)
	if carry != 0 || s >= modulus64 {
		s -= modulus64
	}
	return Elem64{v: s}
}

// Sub implements Element.
func (a Elem64) Sub(b Elem64) Elem64 {
	d, borrow := bits.Sub64(a.v, b.v, 0)
	if borrow != 0 {
		d += modulus64
	}
	return Elem64{v: d}
}

// Mul implements Element.
func (a Elem64) Mul(b Elem64) Elem64 {
	hi, lo := bits.Mul64(a.v, b.v)
	return Elem64{v: bits.Rem64(hi, lo, modulus64)}
}

// Neg implements Element.
func (a Elem64) Neg() Elem64 {
	if a.v == 0 {
		return a
	}
	return Elem64{v: modulus64 - a.v}
}

// Inv implements Element using Fermat's little theorem.
func (a Elem64) Inv() (Elem64, error) {
	if a.v == 0 {
		return Elem64{}, ErrNotInvertible
	}
	result, base := Elem64{v: 1}, a
	for e := modulus64 - 2; e > 0; e >>= 1 {
		if e&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
	}
	return result, nil
}

// IsZero implements Element.
func (a Elem64) IsZero() bool { return a.v == 0 }

// Equal implements Element.
func (a Elem64) Equal(b Elem64) bool { return a.v == b.v }

// Big implements Element.
func (a Elem64) Big() *big.Int { return new(big.Int).SetUint64(a.v) }

// Uint64 returns the canonical representative.
func (a Elem64) Uint64() uint64 { return a.v }

// Bytes implements Element.
func (a Elem64) Bytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, a.v)
	return b
}

// String implements Element.
func (a Elem64) String() string { return strconv.FormatUint(a.v, 10) }
