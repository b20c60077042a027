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

package shareprocess

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/noise"
	"github.com/google/privacy-sandbox-distributed-noise/randomness"
	"github.com/google/privacy-sandbox-distributed-noise/shared/sharetypes"
	"github.com/google/privacy-sandbox-distributed-noise/shared/utils"
)

type testCase struct {
	numShares int
	m         uint64
	noHedge   bool
}

func runProtocol[E field.Element[E]](t *testing.T, f field.Field[E], tc testCase, bits []bool) (*big.Rat, string, string) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	reportID, err := SplitBitvec(ctx, f, randomness.NewSeededSource([]byte("shareprocess")), &SplitBitvecParams{
		Bits:      len(bits),
		NumShares: tc.numShares,
		Bitvec:    bits,
		OutputDir: dir,
	})
	if err != nil {
		t.Fatal(err)
	}

	var hedgeURI string
	if !tc.noHedge {
		hedgeURI, err = GenerateHedgeVector(ctx, randomness.NewSeededSource([]byte("aggregator hedge")), &GenerateHedgeVectorParams{
			ShareURI:  ShareFileName(dir, reportID, 0),
			OutputDir: dir,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	var sampleURIs []string
	for i := 0; i < tc.numShares; i++ {
		sampleURI := path.Join(dir, fmt.Sprintf("sample-%d.cbor", i))
		if err := ComputeSampleShare(ctx, f, &ComputeSampleShareParams{
			ShareURI:       ShareFileName(dir, reportID, i),
			HedgeURI:       hedgeURI,
			SampleShareURI: sampleURI,
			M:              tc.m,
		}); err != nil {
			t.Fatal(err)
		}
		sampleURIs = append(sampleURIs, sampleURI)
	}

	got, err := MergeSampleShares(ctx, f, sampleURIs)
	if err != nil {
		t.Fatal(err)
	}
	return got, dir, reportID
}

func testProtocol[E field.Element[E]](t *testing.T, f field.Field[E]) {
	bits := []bool{true, true, true, false, true, false, true, true, false, true}
	for _, tc := range []testCase{
		{numShares: 1, m: 1, noHedge: true},
		{numShares: 2, m: 1, noHedge: true},
		{numShares: 3, m: 2, noHedge: true},
		{numShares: 2, m: 1},
		{numShares: 5, m: 3},
	} {
		got, dir, reportID := runProtocol(t, f, tc, bits)

		flipped := make([]bool, len(bits))
		if !tc.noHedge {
			h, err := sharetypes.ReadHedgeVector(context.Background(), HedgeFileName(dir, reportID))
			if err != nil {
				t.Fatal(err)
			}
			flipped = h.Invert
		}
		var ones int64
		for i, b := range bits {
			if b != flipped[i] {
				ones++
			}
		}
		want := big.NewRat(2*ones-int64(len(bits)), 2*int64(tc.m))
		if got.Cmp(want) != 0 {
			t.Errorf("%s %+v: want noise %s, got %s", f.Name(), tc, want.RatString(), got.RatString())
		}
	}
}

func TestProtocol(t *testing.T) {
	testProtocol[field.Elem64](t, field.Field64{})
	testProtocol[field.Elem128](t, field.Field128{})
}

func TestRandomBitvec(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := field.Field128{}
	reportID, err := SplitBitvec[field.Elem128](ctx, f, randomness.NewCryptoSource(), &SplitBitvecParams{
		Bits:      16,
		NumShares: 2,
		OutputDir: dir,
	})
	if err != nil {
		t.Fatal(err)
	}
	if reportID == "" {
		t.Fatal("expect a generated report ID")
	}
	record, err := sharetypes.ReadBitvecShare(ctx, ShareFileName(dir, reportID, 1))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(record.Elements), 16; got != want {
		t.Errorf("want %d elements, got %d", want, got)
	}
}

func TestMergeErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := field.Field64{}
	one := []field.Elem64{f.One()}

	write := func(name, reportID string, index, numShares int, m uint64, sample []field.Elem64) string {
		uri := path.Join(dir, name)
		if err := sharetypes.WriteSampleShare(ctx, sharetypes.NewSampleShare[field.Elem64](f, reportID, index, numShares, 10, m, sample), uri); err != nil {
			t.Fatal(err)
		}
		return uri
	}
	a0 := write("a0.cbor", "a", 0, 2, 1, one)
	a0dup := write("a0dup.cbor", "a", 0, 2, 1, one)
	a1 := write("a1.cbor", "a", 1, 2, 1, one)
	b1 := write("b1.cbor", "b", 1, 2, 1, one)
	a3 := write("a3.cbor", "a", 0, 3, 1, one)
	a1m3 := write("a1m3.cbor", "a", 1, 2, 3, one)
	a1empty := write("a1empty.cbor", "a", 1, 2, 1, nil)
	a1long := write("a1long.cbor", "a", 1, 2, 1, []field.Elem64{f.One(), f.One()})

	if _, err := MergeSampleShares[field.Elem64](ctx, f, []string{a0, a1}); err != nil {
		t.Fatalf("expect valid shares to merge, got %v", err)
	}
	for _, tc := range []struct {
		name    string
		uris    []string
		wantErr error
	}{
		{name: "no files"},
		{name: "duplicate index", uris: []string{a0, a0dup}},
		{name: "mixed reports", uris: []string{a0, b1}},
		{name: "wrong share count", uris: []string{a0, a3}},
		{name: "mixed scales", uris: []string{a0, a1m3}, wantErr: noise.ErrConfiguration},
		{name: "empty sample", uris: []string{a0, a1empty}, wantErr: noise.ErrLengthMismatch},
		{name: "long sample", uris: []string{a1long, a0}, wantErr: noise.ErrLengthMismatch},
	} {
		_, err := MergeSampleShares[field.Elem64](ctx, f, tc.uris)
		if err == nil {
			t.Errorf("%s: expect error merging %v", tc.name, tc.uris)
		} else if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: expect %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestComputeSampleShareRejectsOtherReportHedge(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := field.Field64{}
	src := randomness.NewSeededSource([]byte("other report"))
	for _, id := range []string{"first", "second"} {
		if _, err := SplitBitvec[field.Elem64](ctx, f, src, &SplitBitvecParams{Bits: 4, NumShares: 2, OutputDir: dir, ReportID: id}); err != nil {
			t.Fatal(err)
		}
		if _, err := GenerateHedgeVector(ctx, src, &GenerateHedgeVectorParams{ShareURI: ShareFileName(dir, id, 1), OutputDir: dir}); err != nil {
			t.Fatal(err)
		}
	}
	err := ComputeSampleShare[field.Elem64](ctx, f, &ComputeSampleShareParams{
		ShareURI:       ShareFileName(dir, "first", 0),
		HedgeURI:       HedgeFileName(dir, "second"),
		SampleShareURI: path.Join(dir, "sample.cbor"),
		M:              1,
	})
	if err == nil {
		t.Error("expect error for a hedge vector of another report")
	}
}

func TestParseBitvec(t *testing.T) {
	got, err := ParseBitvec("1,0, 1,1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]bool{true, false, true, true}, got); diff != "" {
		t.Errorf("bit vector mismatch (-want +got):\n%s", diff)
	}
	if got, err := ParseBitvec(""); err != nil || got != nil {
		t.Errorf("expect nil for an empty string, got %v, %v", got, err)
	}
	if _, err := ParseBitvec("1,2"); err == nil {
		t.Error("expect error for an invalid bit")
	}
}

func TestSplitBitvecInvalidParams(t *testing.T) {
	ctx := context.Background()
	f := field.Field128{}
	src := randomness.NewSeededSource([]byte("invalid"))
	for _, params := range []*SplitBitvecParams{
		{Bits: -1, NumShares: 2},
		{Bits: 0, NumShares: 2},
		{Bits: 3, NumShares: 0},
		{Bits: 3, NumShares: 2, Bitvec: []bool{true, false}},
	} {
		params.OutputDir = t.TempDir()
		if _, err := SplitBitvec[field.Elem128](ctx, f, src, params); err == nil {
			t.Errorf("expect error for params %+v", params)
		}
	}
}

func TestSplitBitvecWritesNoHedge(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	reportID, err := SplitBitvec[field.Elem64](ctx, field.Field64{}, randomness.NewSeededSource([]byte("client")), &SplitBitvecParams{
		Bits:      8,
		NumShares: 3,
		OutputDir: dir,
	})
	if err != nil {
		t.Fatal(err)
	}
	exist, err := utils.IsFileExist(ctx, HedgeFileName(dir, reportID))
	if err != nil {
		t.Fatal(err)
	}
	if exist {
		t.Error("the client step should not write a hedge vector")
	}

	hedgeURI, err := GenerateHedgeVector(ctx, randomness.NewSeededSource([]byte("aggregator")), &GenerateHedgeVectorParams{
		ShareURI:  ShareFileName(dir, reportID, 2),
		OutputDir: dir,
	})
	if err != nil {
		t.Fatal(err)
	}
	h, err := sharetypes.ReadHedgeVector(ctx, hedgeURI)
	if err != nil {
		t.Fatal(err)
	}
	if h.ReportID != reportID || len(h.Invert) != 8 {
		t.Errorf("want hedge vector of 8 flags for report %q, got %d flags for report %q", reportID, len(h.Invert), h.ReportID)
	}
}

func TestComputeSampleShareOverwrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := field.Field64{}
	reportID, err := SplitBitvec[field.Elem64](ctx, f, randomness.NewSeededSource([]byte("overwrite")), &SplitBitvecParams{
		Bits:      4,
		NumShares: 2,
		OutputDir: dir,
	})
	if err != nil {
		t.Fatal(err)
	}
	params := &ComputeSampleShareParams{
		ShareURI:       ShareFileName(dir, reportID, 0),
		SampleShareURI: path.Join(dir, "sample.cbor"),
		M:              1,
	}
	if err := ComputeSampleShare[field.Elem64](ctx, f, params); err != nil {
		t.Fatal(err)
	}
	if err := ComputeSampleShare[field.Elem64](ctx, f, params); err == nil {
		t.Error("expect error for an existing output file")
	}
	params.Overwrite = true
	if err := ComputeSampleShare[field.Elem64](ctx, f, params); err != nil {
		t.Errorf("expect the output to be replaced, got %v", err)
	}

	record, err := sharetypes.ReadSampleShare(ctx, params.SampleShareURI)
	if err != nil {
		t.Fatal(err)
	}
	if record.Bits != 4 || record.M != 1 {
		t.Errorf("want bits=4 m=1 in the sample share, got bits=%d m=%d", record.Bits, record.M)
	}
}
