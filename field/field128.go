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

	"lukechampine.com/uint128"
)

// modulus128 is 2^128 - 28*2^64 + 1.
var (
	modulus128    = uint128.New(1, 0xffffffffffffffe4)
	modulus128Big = modulus128.Big()
)

// Field128 is the prime field of order 2^128 - 28*2^64 + 1.
type Field128 struct{}

// Elem128 is an element of Field128, stored as its canonical representative.
type Elem128 struct {
	v uint128.Uint128
}

var _ Field[Elem128] = Field128{}

// Name implements Field.
func (Field128) Name() string { return "Field128" }

// Zero implements Field.
func (Field128) Zero() Elem128 { return Elem128{} }

// One implements Field.
func (Field128) One() Elem128 { return Elem128{v: uint128.From64(1)} }

// FromUint64 implements Field. Every uint64 is below the modulus.
func (Field128) FromUint64(x uint64) (Elem128, error) {
	return Elem128{v: uint128.From64(x)}, nil
}

// FromUint128 returns the element with integer representative x.
func (Field128) FromUint128(x uint128.Uint128) (Elem128, error) {
	if x.Cmp(modulus128) >= 0 {
		return Elem128{}, fmt.Errorf("integer %s is not below the Field128 modulus", x.String())
	}
	return Elem128{v: x}, nil
}

// FromBig implements Field.
func (f Field128) FromBig(x *big.Int) (Elem128, error) {
	if x.Sign() < 0 || x.Cmp(modulus128Big) >= 0 {
		return Elem128{}, fmt.Errorf("integer %s is out of the Field128 range", x.String())
	}
	return Elem128{v: uint128.FromBig(x)}, nil
}

// Modulus implements Field.
func (Field128) Modulus() *big.Int { return new(big.Int).Set(modulus128Big) }

// EncodedLen implements Field.
func (Field128) EncodedLen() int { return 16 }

// Decode implements Field.
func (f Field128) Decode(b []byte) (Elem128, error) {
	if want, got := f.EncodedLen(), len(b); want != got {
		return Elem128{}, fmt.Errorf("expect %d bytes, got %d", want, got)
	}
	return f.FromUint128(uint128.New(binary.BigEndian.Uint64(b[8:16]), binary.BigEndian.Uint64(b[0:8])))
}

// Random implements Field with rejection sampling.
func (Field128) Random(r io.Reader) (Elem128, error) {
	for {
		b, err := readExactly(r, 16)
		if err != nil {
			return Elem128{}, err
		}
		v := uint128.New(binary.BigEndian.Uint64(b[8:16]), binary.BigEndian.Uint64(b[0:8]))
		if v.Cmp(modulus128) < 0 {
			return Elem128{v: v}, nil
		}
	}
}

// Add implements Element.
func (a Elem128) Add(b Elem128) Elem128 {
	s := a.v.AddWrap(b.v)
	// Both operands are below the modulus, so a wrapped sum lost exactly 2^128.
	if s.Cmp(a.v) < 0 || s.Cmp(modulus128) >= 0 {
		s = s.SubWrap(modulus128)
	}
	return Elem128{v: s}
}

// Sub implements Element.
func (a Elem128) Sub(b Elem128) Elem128 {
	d := a.v.SubWrap(b.v)
	if a.v.Cmp(b.v) < 0 {
		d = d.AddWrap(modulus128)
	}
	return Elem128{v: d}
}

// Mul implements Element.
func (a Elem128) Mul(b Elem128) Elem128 {
	p := new(big.Int).Mul(a.v.Big(), b.v.Big())
	return Elem128{v: uint128.FromBig(p.Mod(p, modulus128Big))}
}

// Neg implements Element.
func (a Elem128) Neg() Elem128 {
	if a.v.IsZero() {
		return a
	}
	return Elem128{v: modulus128.SubWrap(a.v)}
}

// Inv implements Element.
func (a Elem128) Inv() (Elem128, error) {
	if a.v.IsZero() {
		return Elem128{}, ErrNotInvertible
	}
	return Elem128{v: uint128.FromBig(new(big.Int).ModInverse(a.v.Big(), modulus128Big))}, nil
}

// IsZero implements Element.
func (a Elem128) IsZero() bool { return a.v.IsZero() }

// Equal implements Element.
func (a Elem128) Equal(b Elem128) bool { return a.v.Equals(b.v) }

// Big implements Element.
func (a Elem128) Big() *big.Int { return a.v.Big() }

// Uint128 returns the canonical representative.
func (a Elem128) Uint128() uint128.Uint128 { return a.v }

// Bytes implements Element.
func (a Elem128) Bytes() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], a.v.Hi)
	binary.BigEndian.PutUint64(b[8:16], a.v.Lo)
	return b
}

// String implements Element.
func (a Elem128) String() string { return a.v.String() }
