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

// Package shareprocess runs the client, aggregator and merge steps of the noise
// protocol on share files stored locally or in GCS.
//
// The client only splits its bit vector. The hedge vector is generated on the
// aggregator side after the shares are submitted, so the client cannot predict
// which positions will be inverted.
package shareprocess

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	log "github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/google/privacy-sandbox-distributed-noise/aggregator"
	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/noise"
	"github.com/google/privacy-sandbox-distributed-noise/noise/hedge"
	"github.com/google/privacy-sandbox-distributed-noise/noise/nbin"
	"github.com/google/privacy-sandbox-distributed-noise/noise/noisetesting"
	"github.com/google/privacy-sandbox-distributed-noise/randomness"
	"github.com/google/privacy-sandbox-distributed-noise/secretshare"
	"github.com/google/privacy-sandbox-distributed-noise/shared/sharetypes"
	"github.com/google/privacy-sandbox-distributed-noise/shared/utils"
)

// ShareFileName returns the file name of share i in outputDir.
func ShareFileName(outputDir, reportID string, i int) string {
	return utils.JoinPath(outputDir, fmt.Sprintf("%s_share-%d.cbor", reportID, i))
}

// HedgeFileName returns the file name of the hedge vector in outputDir.
func HedgeFileName(outputDir, reportID string) string {
	return utils.JoinPath(outputDir, fmt.Sprintf("%s_hedge.cbor", reportID))
}

// ParseBitvec parses a comma-separated list of 0s and 1s.
func ParseBitvec(s string) ([]bool, error) {
	if s == "" {
		return nil, nil
	}
	cols := strings.Split(s, ",")
	bits := make([]bool, len(cols))
	for i, c := range cols {
		switch strings.TrimSpace(c) {
		case "0":
		case "1":
			bits[i] = true
		default:
			return nil, fmt.Errorf("invalid bit %q at position %d", c, i)
		}
	}
	return bits, nil
}

// SplitBitvecParams contains necessary parameters for function SplitBitvec().
type SplitBitvecParams struct {
	// Length of the bit vector.
	Bits int
	// Number of aggregators.
	NumShares int
	// Bits to share. A random bit vector is used when empty.
	Bitvec []bool
	// Directory for the share files.
	OutputDir string
	// ReportID names the output files. A random UUID is used when empty.
	ReportID string
}

// SplitBitvec is the client step: it splits a bit vector into share files, one
// per aggregator, and returns the report ID.
func SplitBitvec[E field.Element[E]](ctx context.Context, f field.Field[E], src randomness.Source, params *SplitBitvecParams) (string, error) {
	if params.Bits < 1 {
		return "", fmt.Errorf("%w: expect positive bit count, got %d", noise.ErrConfiguration, params.Bits)
	}
	reportID := params.ReportID
	if reportID == "" {
		reportID = uuid.New().String()
	}

	var (
		bitvec []E
		err    error
	)
	if len(params.Bitvec) > 0 {
		if len(params.Bitvec) != params.Bits {
			return "", fmt.Errorf("%w: expect %d bits, got %d", noise.ErrLengthMismatch, params.Bits, len(params.Bitvec))
		}
		bitvec = noisetesting.BitsToVector(f, params.Bitvec)
	} else if bitvec, err = noisetesting.RandomBitvec(f, params.Bits, src); err != nil {
		return "", err
	}

	shares, err := secretshare.Split(f, bitvec, params.NumShares, src)
	if err != nil {
		return "", err
	}
	for i, share := range shares {
		record := sharetypes.NewBitvecShare(f, reportID, i, params.NumShares, share)
		if err := sharetypes.WriteBitvecShare(ctx, record, ShareFileName(params.OutputDir, reportID, i)); err != nil {
			return "", err
		}
	}
	log.Infof("report %s: wrote %d shares of %d bits to %s", reportID, params.NumShares, params.Bits, params.OutputDir)
	return reportID, nil
}

// GenerateHedgeVectorParams contains necessary parameters for function GenerateHedgeVector().
type GenerateHedgeVectorParams struct {
	// Any aggregator's share of the report, which fixes the report ID and the length.
	ShareURI string
	// Directory for the hedge vector file.
	OutputDir string
}

// GenerateHedgeVector is run by the aggregators once the shares of a report are
// submitted. It draws the inversion flags and returns the hedge vector file name.
func GenerateHedgeVector(ctx context.Context, src randomness.Source, params *GenerateHedgeVectorParams) (string, error) {
	record, err := sharetypes.ReadBitvecShare(ctx, params.ShareURI)
	if err != nil {
		return "", err
	}
	if len(record.Elements) == 0 {
		return "", fmt.Errorf("%w: share of report %q is empty", noise.ErrLengthMismatch, record.ReportID)
	}
	v, err := hedge.NewVector(len(record.Elements), src)
	if err != nil {
		return "", err
	}
	hedgeURI := HedgeFileName(params.OutputDir, record.ReportID)
	if err := sharetypes.WriteHedgeVector(ctx, &sharetypes.HedgeVector{ReportID: record.ReportID, Invert: v}, hedgeURI); err != nil {
		return "", err
	}
	log.Infof("report %s: wrote hedge vector inverting %d of %d positions", record.ReportID, v.Inverted(), len(v))
	return hedgeURI, nil
}

// ComputeSampleShareParams contains necessary parameters for function ComputeSampleShare().
type ComputeSampleShareParams struct {
	// Input bit vector share of this aggregator.
	ShareURI string
	// Optional hedge vector shared by all aggregators.
	HedgeURI string
	// Output noise share.
	SampleShareURI string
	// Scale of the noise.
	M uint64
	// Replace an existing output file.
	Overwrite bool
}

// ComputeSampleShare is the aggregator step: it reads one bit vector share and
// writes the aggregator's noise share.
func ComputeSampleShare[E field.Element[E]](ctx context.Context, f field.Field[E], params *ComputeSampleShareParams) error {
	if !params.Overwrite {
		exist, err := utils.IsFileExist(ctx, params.SampleShareURI)
		if err != nil {
			return err
		}
		if exist {
			return fmt.Errorf("output %q already exists", params.SampleShareURI)
		}
	}

	record, err := sharetypes.ReadBitvecShare(ctx, params.ShareURI)
	if err != nil {
		return err
	}
	share, err := sharetypes.BitvecShareElements(f, record)
	if err != nil {
		return err
	}

	var v hedge.Vector
	if params.HedgeURI != "" {
		h, err := sharetypes.ReadHedgeVector(ctx, params.HedgeURI)
		if err != nil {
			return err
		}
		if h.ReportID != record.ReportID {
			return fmt.Errorf("hedge vector is for report %q, share is for report %q", h.ReportID, record.ReportID)
		}
		v = h.Vector()
	}

	dist, err := nbin.New(f, len(share), params.M)
	if err != nil {
		return err
	}
	party := &aggregator.Party[E]{Index: record.ShareIndex, NumShares: record.NumShares, Field: f, Noise: dist}
	sample, err := party.SampleShare(share, v)
	if err != nil {
		return err
	}
	log.V(1).Infof("report %s: computed noise share %d of %d", record.ReportID, record.ShareIndex, record.NumShares)
	result := sharetypes.NewSampleShare(f, record.ReportID, record.ShareIndex, record.NumShares, len(share), params.M, sample)
	return sharetypes.WriteSampleShare(ctx, result, params.SampleShareURI)
}

// MergeSampleShares reads the noise shares of every aggregator and returns the
// reconstructed noise. All shares must come from the same report and the same
// mechanism parameters.
func MergeSampleShares[E field.Element[E]](ctx context.Context, f field.Field[E], sampleShareURIs []string) (*big.Rat, error) {
	if len(sampleShareURIs) == 0 {
		return nil, fmt.Errorf("no sample share files")
	}

	var (
		first   *sharetypes.SampleShare
		samples [][]E
	)
	seen := make(map[int]bool)
	for _, uri := range sampleShareURIs {
		record, err := sharetypes.ReadSampleShare(ctx, uri)
		if err != nil {
			return nil, err
		}
		if first == nil {
			first = record
		} else if record.ReportID != first.ReportID {
			return nil, fmt.Errorf("sample share %q is for report %q, expect %q", uri, record.ReportID, first.ReportID)
		} else if record.M != first.M || record.Bits != first.Bits {
			return nil, fmt.Errorf("%w: sample share %q has bits=%d m=%d, expect bits=%d m=%d", noise.ErrConfiguration, uri, record.Bits, record.M, first.Bits, first.M)
		}
		if record.NumShares != len(sampleShareURIs) {
			return nil, fmt.Errorf("sample share %q expects %d shares, got %d files", uri, record.NumShares, len(sampleShareURIs))
		}
		if seen[record.ShareIndex] {
			return nil, fmt.Errorf("duplicate sample share with index %d", record.ShareIndex)
		}
		seen[record.ShareIndex] = true

		sample, err := sharetypes.SampleShareElements(f, record)
		if err != nil {
			return nil, err
		}
		if len(sample) != 1 {
			return nil, fmt.Errorf("%w: sample share %q has %d elements, expect 1", noise.ErrLengthMismatch, uri, len(sample))
		}
		samples = append(samples, sample)
	}

	combined, err := aggregator.Combine(f, samples...)
	if err != nil {
		return nil, err
	}
	return nbin.Value(f, combined[0], first.M)
}
