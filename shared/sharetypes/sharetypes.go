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

// Package sharetypes contains the records exchanged as files between the client
// simulator and the aggregators, and functions to read and write them.
package sharetypes

import (
	"context"
	"fmt"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/noise/hedge"
	"github.com/google/privacy-sandbox-distributed-noise/shared/utils"
)

// BitvecShare is one aggregator's share of a client bit vector.
type BitvecShare struct {
	ReportID   string   `json:"report_id"`
	Field      string   `json:"field"`
	ShareIndex int      `json:"share_index"`
	NumShares  int      `json:"num_shares"`
	Elements   [][]byte `json:"elements"`
}

// HedgeVector holds the inversion flags agreed on by all aggregators for a report.
type HedgeVector struct {
	ReportID string `json:"report_id"`
	Invert   []bool `json:"invert"`
}

// SampleShare is one aggregator's share of the noise.
type SampleShare struct {
	ReportID   string `json:"report_id"`
	Field      string `json:"field"`
	ShareIndex int    `json:"share_index"`
	NumShares  int    `json:"num_shares"`
	// Length of the bit vector and scale of the mechanism that produced the sample.
	Bits   int      `json:"bits"`
	M      uint64   `json:"m"`
	Sample [][]byte `json:"sample"`
}

// EncodeElements serializes field elements.
func EncodeElements[E field.Element[E]](elems []E) [][]byte {
	result := make([][]byte, len(elems))
	for i, e := range elems {
		result[i] = e.Bytes()
	}
	return result
}

// DecodeElements parses elements serialized by EncodeElements.
func DecodeElements[E field.Element[E]](f field.Field[E], encoded [][]byte) ([]E, error) {
	result := make([]E, len(encoded))
	for i, b := range encoded {
		e, err := f.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("element %d: %v", i, err)
		}
		result[i] = e
	}
	return result, nil
}

// NewBitvecShare builds the record for share shareIndex of numShares.
func NewBitvecShare[E field.Element[E]](f field.Field[E], reportID string, shareIndex, numShares int, share []E) *BitvecShare {
	return &BitvecShare{
		ReportID:   reportID,
		Field:      f.Name(),
		ShareIndex: shareIndex,
		NumShares:  numShares,
		Elements:   EncodeElements(share),
	}
}

// Validate checks the record is in the named field and has a valid share index.
func (s *BitvecShare) Validate(fieldName string) error {
	if s.Field != fieldName {
		return fmt.Errorf("share of report %q is in field %q, expect %q", s.ReportID, s.Field, fieldName)
	}
	if s.ShareIndex < 0 || s.ShareIndex >= s.NumShares {
		return fmt.Errorf("share index %d out of range for %d shares", s.ShareIndex, s.NumShares)
	}
	return nil
}

// BitvecShareElements validates the record against f and decodes its elements.
func BitvecShareElements[E field.Element[E]](f field.Field[E], s *BitvecShare) ([]E, error) {
	if err := s.Validate(f.Name()); err != nil {
		return nil, err
	}
	return DecodeElements(f, s.Elements)
}

// NewSampleShare builds the record for a noise share of a mechanism with the
// given bit vector length and scale.
func NewSampleShare[E field.Element[E]](f field.Field[E], reportID string, shareIndex, numShares, bits int, m uint64, sample []E) *SampleShare {
	return &SampleShare{
		ReportID:   reportID,
		Field:      f.Name(),
		ShareIndex: shareIndex,
		NumShares:  numShares,
		Bits:       bits,
		M:          m,
		Sample:     EncodeElements(sample),
	}
}

// SampleShareElements validates the record against f and decodes the sample.
func SampleShareElements[E field.Element[E]](f field.Field[E], s *SampleShare) ([]E, error) {
	if s.Field != f.Name() {
		return nil, fmt.Errorf("sample share of report %q is in field %q, expect %q", s.ReportID, s.Field, f.Name())
	}
	return DecodeElements(f, s.Sample)
}

// Vector returns the hedge flags.
func (h *HedgeVector) Vector() hedge.Vector {
	return hedge.Vector(h.Invert)
}

func writeRecord(ctx context.Context, v interface{}, filename string) error {
	b, err := utils.MarshalCBOR(v)
	if err != nil {
		return err
	}
	return utils.WriteBytes(ctx, b, filename)
}

func readRecord(ctx context.Context, filename string, v interface{}) error {
	b, err := utils.ReadBytes(ctx, filename)
	if err != nil {
		return err
	}
	if err := utils.UnmarshalCBOR(b, v); err != nil {
		return fmt.Errorf("parsing %q: %v", filename, err)
	}
	return nil
}

// WriteBitvecShare writes a bit vector share to a local or GCS file.
func WriteBitvecShare(ctx context.Context, s *BitvecShare, filename string) error {
	return writeRecord(ctx, s, filename)
}

// ReadBitvecShare reads a bit vector share from a local or GCS file.
func ReadBitvecShare(ctx context.Context, filename string) (*BitvecShare, error) {
	s := &BitvecShare{}
	if err := readRecord(ctx, filename, s); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteHedgeVector writes a hedge vector to a local or GCS file.
func WriteHedgeVector(ctx context.Context, h *HedgeVector, filename string) error {
	return writeRecord(ctx, h, filename)
}

// ReadHedgeVector reads a hedge vector from a local or GCS file.
func ReadHedgeVector(ctx context.Context, filename string) (*HedgeVector, error) {
	h := &HedgeVector{}
	if err := readRecord(ctx, filename, h); err != nil {
		return nil, err
	}
	return h, nil
}

// WriteSampleShare writes a noise share to a local or GCS file.
func WriteSampleShare(ctx context.Context, s *SampleShare, filename string) error {
	return writeRecord(ctx, s, filename)
}

// ReadSampleShare reads a noise share from a local or GCS file.
func ReadSampleShare(ctx context.Context, filename string) (*SampleShare, error) {
	s := &SampleShare{}
	if err := readRecord(ctx, filename, s); err != nil {
		return nil, err
	}
	return s, nil
}
