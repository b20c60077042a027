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

package nbinsimulator

import (
	"context"
	"fmt"
	"math"
	"path"
	"testing"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/testing/passert"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/testing/ptest"
	"github.com/google/go-cmp/cmp"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/noise/distributednoise"
	"github.com/google/privacy-sandbox-distributed-noise/noise/nbin"
	"github.com/google/privacy-sandbox-distributed-noise/randomness"
	"github.com/google/privacy-sandbox-distributed-noise/shared/utils"

	_ "github.com/apache/beam/sdks/v2/go/pkg/beam/io/filesystem/local"
)

func init() {
	beam.RegisterFunction(isNoiseOf10Bits)
	beam.RegisterFunction(isInteger)
}

func isInteger(sample float64) bool {
	return sample == math.Trunc(sample)
}

// isNoiseOf10Bits checks the samples of a 10-bit mechanism with scale 1.
func isNoiseOf10Bits(sample float64) bool {
	return sample >= -5 && sample <= 5 && sample == math.Trunc(sample)
}

func TestSimulateNoise(t *testing.T) {
	for _, fieldName := range field.Names() {
		pipeline, scope := beam.NewPipelineWithRoot()
		samples := SimulateNoise(scope, &SimulateParams{
			Trials:    100,
			Bits:      10,
			M:         1,
			NumShares: 3,
			Hedge:     true,
			Field:     fieldName,
			Seed:      []byte("simulate"),
		})
		passert.Count(scope, samples, "samples", 100)
		passert.True(scope, samples, isNoiseOf10Bits)

		if err := ptest.Run(pipeline); err != nil {
			t.Fatalf("%s: pipeline failed: %s", fieldName, err)
		}
	}
}

func TestSimulateWriteHistogram(t *testing.T) {
	ctx := context.Background()
	histogramURI := path.Join(t.TempDir(), "histogram.txt")
	const trials = 200

	params := &SimulateParams{
		Trials:       trials,
		Bits:         8,
		M:            2,
		NumShares:    2,
		Field:        field.Field64{}.Name(),
		Seed:         []byte("histogram"),
		HistogramURI: histogramURI,
	}
	pipeline, scope := beam.NewPipelineWithRoot()
	if err := Simulate(scope, params); err != nil {
		t.Fatal(err)
	}
	if err := ptest.Run(pipeline); err != nil {
		t.Fatalf("pipeline failed: %s", err)
	}

	buckets, err := ReadHistogram(ctx, histogramURI)
	if err != nil {
		t.Fatal(err)
	}
	total, _, _ := Summarize(buckets)
	if total != trials {
		t.Errorf("want %d samples in the histogram, got %d", trials, total)
	}

	summary, err := WriteSummary(ctx, params)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total != trials || summary.ExpectedVariance != 0.5 {
		t.Errorf("want %d samples and expected variance 0.5, got %+v", trials, summary)
	}
	lines, err := utils.ReadLines(ctx, path.Join(path.Dir(histogramURI), "histogram_summary.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := lines[0], fmt.Sprintf("total,%d", trials); got != want {
		t.Errorf("want summary line %q, got %q", want, got)
	}
	for _, b := range buckets {
		// Values of 8 bits scaled by 1/2 lie in [-2, 2] with a step of 1/2.
		if b.Value < -2 || b.Value > 2 || b.Value*2 != math.Trunc(b.Value*2) {
			t.Errorf("unexpected noise value %v", b.Value)
		}
	}
}

func TestSimulateInvalidParams(t *testing.T) {
	for _, params := range []*SimulateParams{
		{Trials: 0, Bits: 10, M: 1, NumShares: 2, Field: "Field64"},
		{Trials: 10, Bits: 0, M: 1, NumShares: 2, Field: "Field64"},
		{Trials: 10, Bits: 10, M: 0, NumShares: 2, Field: "Field128"},
		{Trials: 10, Bits: 10, M: 1, NumShares: 0, Field: "Field128"},
		{Trials: 10, Bits: 10, M: 1, NumShares: 2, Field: "Field32"},
		{Trials: 10, Bits: 10, M: 1, NumShares: 2, Field: "Field64", Mechanism: "laplace"},
		{Trials: 10, NumShares: 2, Field: "Field64", Mechanism: MechanismGeometric, Epsilon: 0, L1Sensitivity: 1},
		{Trials: 10, NumShares: 2, Field: "Field64", Mechanism: MechanismGeometric, Epsilon: 1, L1Sensitivity: 0},
		// The Field64 modulus is zero in Field64.
		{Trials: 10, Bits: 10, M: 0xffffffff00000001, NumShares: 2, Field: "Field64"},
	} {
		_, scope := beam.NewPipelineWithRoot()
		if err := Simulate(scope, params); err == nil {
			t.Errorf("expect error for params %+v", params)
		}
	}
}

func TestSimulateTrialDeterministic(t *testing.T) {
	ctx := context.Background()
	f := field.Field128{}
	dist, err := nbin.New[field.Elem128](f, 64, 1)
	if err != nil {
		t.Fatal(err)
	}
	seed := []byte("deterministic")
	for trial := int64(0); trial < 5; trial++ {
		first, err := simulateTrial[field.Elem128](ctx, f, dist, 1, 4, true, trialSource(seed, trial))
		if err != nil {
			t.Fatal(err)
		}
		second, err := simulateTrial[field.Elem128](ctx, f, dist, 1, 4, true, trialSource(seed, trial))
		if err != nil {
			t.Fatal(err)
		}
		if first.Cmp(second) != 0 {
			t.Errorf("trial %d: got %s and %s from the same seed", trial, first.RatString(), second.RatString())
		}
	}
}

// The reconstructed noise should follow the centered binomial distribution
// with mean 0 and variance n/(4m^2), with or without the hedge.
func TestSimulateTrialMoments(t *testing.T) {
	ctx := context.Background()
	const (
		trials = 20000
		n      = 32
		m      = 2
	)
	f := field.Field64{}
	dist, err := nbin.New[field.Elem64](f, n, m)
	if err != nil {
		t.Fatal(err)
	}
	wantVariance := dist.Variance()

	for _, useHedge := range []bool{false, true} {
		src := randomness.NewSeededSource([]byte("moments"))
		counts := make(map[float64]int)
		for i := 0; i < trials; i++ {
			value, err := simulateTrial[field.Elem64](ctx, f, dist, m, 3, useHedge, src)
			if err != nil {
				t.Fatal(err)
			}
			sample, _ := value.Float64()
			counts[sample]++
		}
		var buckets []Bucket
		for value, count := range counts {
			buckets = append(buckets, Bucket{Value: value, Count: count})
		}
		total, mean, variance := Summarize(buckets)
		if total != trials {
			t.Fatalf("want %d samples, got %d", trials, total)
		}

		stdErr := math.Sqrt(wantVariance / trials)
		if math.Abs(mean) > 5*stdErr {
			t.Errorf("hedge=%t: mean %v is too far from 0 (standard error %v)", useHedge, mean, stdErr)
		}
		if math.Abs(variance-wantVariance)/wantVariance > 5e-2 {
			t.Errorf("hedge=%t: want variance %v, got %v", useHedge, wantVariance, variance)
		}
	}
}

func TestReadHistogram(t *testing.T) {
	ctx := context.Background()
	filename := path.Join(t.TempDir(), "histogram.txt")
	if err := utils.WriteLines(ctx, []string{"1.5,3", "-2,1", "0,7"}, filename); err != nil {
		t.Fatal(err)
	}
	got, err := ReadHistogram(ctx, filename)
	if err != nil {
		t.Fatal(err)
	}
	want := []Bucket{{Value: -2, Count: 1}, {Value: 0, Count: 7}, {Value: 1.5, Count: 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("histogram mismatch (-want +got):\n%s", diff)
	}

	if err := utils.WriteLines(ctx, []string{"1,2,3"}, filename); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadHistogram(ctx, filename); err == nil {
		t.Error("expect error for a malformed line")
	}
}

func TestSimulateGeometricNoise(t *testing.T) {
	pipeline, scope := beam.NewPipelineWithRoot()
	params := &SimulateParams{
		Trials:        50,
		Mechanism:     MechanismGeometric,
		Epsilon:       1,
		L1Sensitivity: 1,
		NumShares:     3,
		Field:         field.Field128{}.Name(),
	}
	if err := params.validate(); err != nil {
		t.Fatal(err)
	}
	samples := SimulateNoise(scope, params)
	passert.Count(scope, samples, "samples", 50)
	passert.True(scope, samples, isInteger)

	if err := ptest.Run(pipeline); err != nil {
		t.Fatalf("pipeline failed: %s", err)
	}
}

func TestExpectedVariance(t *testing.T) {
	for _, tc := range []struct {
		params *SimulateParams
		want   float64
	}{
		{params: &SimulateParams{Bits: 100, M: 2, Field: "Field64"}, want: 6.25},
		{params: &SimulateParams{Bits: 16, M: 1, Field: "Field128", Mechanism: MechanismNBin}, want: 4},
		{params: &SimulateParams{Mechanism: MechanismGeometric, Epsilon: math.Log(2), L1Sensitivity: 1, NumShares: 2, Field: "Field128"}, want: 4},
	} {
		got, err := tc.params.ExpectedVariance()
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%+v: want variance %v, got %v", tc.params, tc.want, got)
		}
	}
}

func TestSimulateGeometricTrialMoments(t *testing.T) {
	const trials = 20000
	params := &SimulateParams{Mechanism: MechanismGeometric, Epsilon: 0.5, L1Sensitivity: 1, NumShares: 3, Field: "Field64"}
	wantVariance, err := params.ExpectedVariance()
	if err != nil {
		t.Fatal(err)
	}
	g, err := distributednoise.NewGeometric(params.Epsilon, params.L1Sensitivity, uint64(params.NumShares))
	if err != nil {
		t.Fatal(err)
	}

	counts := make(map[float64]int)
	for i := 0; i < trials; i++ {
		value, err := simulateGeometricTrial[field.Elem64](field.Field64{}, g)
		if err != nil {
			t.Fatal(err)
		}
		sample, _ := value.Float64()
		counts[sample]++
	}
	var buckets []Bucket
	for value, count := range counts {
		buckets = append(buckets, Bucket{Value: value, Count: count})
	}
	_, mean, variance := Summarize(buckets)
	if stdErr := math.Sqrt(wantVariance / trials); math.Abs(mean) > 5*stdErr {
		t.Errorf("mean %v is too far from 0 (standard error %v)", mean, stdErr)
	}
	if math.Abs(variance-wantVariance)/wantVariance > 0.1 {
		t.Errorf("want variance %v, got %v", wantVariance, variance)
	}
}
