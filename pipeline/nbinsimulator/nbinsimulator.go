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

// Package nbinsimulator contains a pipeline that draws many noise samples through the
// complete distributed protocol and counts how often each value appears.
//
// With the nbin mechanism every trial creates a random client bit vector, splits
// it into shares, lets each aggregator apply the hedge vector and sample its
// noise share, and reconstructs the noise. With the geometric mechanism every
// aggregator draws its share directly, which gives a comparison histogram for
// the same number of aggregators.
package nbinsimulator

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/io/textio"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/transforms/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/google/privacy-sandbox-distributed-noise/aggregator"
	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/noise/distributednoise"
	"github.com/google/privacy-sandbox-distributed-noise/noise/hedge"
	"github.com/google/privacy-sandbox-distributed-noise/noise/nbin"
	"github.com/google/privacy-sandbox-distributed-noise/noise/noisetesting"
	"github.com/google/privacy-sandbox-distributed-noise/randomness"
	"github.com/google/privacy-sandbox-distributed-noise/secretshare"
	"github.com/google/privacy-sandbox-distributed-noise/shared/utils"
)

func init() {
	beam.RegisterType(reflect.TypeOf((*sampleNoiseFn)(nil)).Elem())
	beam.RegisterType(reflect.TypeOf((*formatHistogramFn)(nil)).Elem())
}

// Names of the simulated mechanisms.
const (
	MechanismNBin      = "nbin"
	MechanismGeometric = "geometric"
)

// SimulateParams contains necessary parameters for function Simulate().
type SimulateParams struct {
	// Number of noise samples to draw.
	Trials int64
	// MechanismNBin or MechanismGeometric. Empty means MechanismNBin.
	Mechanism string
	// Length of the client bit vector for nbin.
	Bits int
	// Scale of the nbin noise.
	M uint64
	// Privacy parameters of the geometric mechanism.
	Epsilon       float64
	L1Sensitivity uint64
	// Number of aggregators.
	NumShares int
	// Apply a random hedge vector in every nbin trial.
	Hedge bool
	// Name of the field, "Field64" or "Field128".
	Field string
	// Seed makes the nbin simulation reproducible. Cryptographic randomness is used
	// when empty. Geometric draws always use the gonum global source.
	Seed []byte
	// Output location of the histogram.
	HistogramURI string
}

func (p *SimulateParams) mechanism() string {
	if p.Mechanism == "" {
		return MechanismNBin
	}
	return p.Mechanism
}

func (p *SimulateParams) validate() error {
	if p.Trials < 1 {
		return fmt.Errorf("expect positive trial count, got %d", p.Trials)
	}
	if p.NumShares < 1 {
		return fmt.Errorf("expect positive share count, got %d", p.NumShares)
	}
	switch p.Field {
	case field.Field64{}.Name(), field.Field128{}.Name():
	default:
		return fmt.Errorf("unsupported field %q, expect one of %v", p.Field, field.Names())
	}
	_, err := p.ExpectedVariance()
	return err
}

// ExpectedVariance returns the variance of the simulated noise distribution.
func (p *SimulateParams) ExpectedVariance() (float64, error) {
	switch p.mechanism() {
	case MechanismNBin:
		if p.Field == (field.Field64{}).Name() {
			dist, err := nbin.New[field.Elem64](field.Field64{}, p.Bits, p.M)
			if err != nil {
				return 0, err
			}
			return dist.Variance(), nil
		}
		dist, err := nbin.New[field.Elem128](field.Field128{}, p.Bits, p.M)
		if err != nil {
			return 0, err
		}
		return dist.Variance(), nil
	case MechanismGeometric:
		g, err := distributednoise.NewGeometric(p.Epsilon, p.L1Sensitivity, uint64(p.NumShares))
		if err != nil {
			return 0, err
		}
		return g.Variance(), nil
	default:
		return 0, fmt.Errorf("unsupported mechanism %q", p.Mechanism)
	}
}

// trialSource returns the randomness for one trial.
func trialSource(seed []byte, trial int64) randomness.Source {
	if len(seed) == 0 {
		return randomness.NewCryptoSource()
	}
	return randomness.NewSeededSourceForStream(seed, uint64(trial))
}

// simulateTrial runs the nbin protocol once and returns the reconstructed noise.
func simulateTrial[E field.Element[E]](ctx context.Context, f field.Field[E], dist *nbin.NBin[E], m uint64, numShares int, useHedge bool, src randomness.Source) (*big.Rat, error) {
	bitvec, err := noisetesting.RandomBitvec(f, dist.BitvecLen(), src)
	if err != nil {
		return nil, err
	}
	shares, err := secretshare.Split(f, bitvec, numShares, src)
	if err != nil {
		return nil, err
	}
	var v hedge.Vector
	if useHedge {
		if v, err = hedge.NewVector(dist.BitvecLen(), src); err != nil {
			return nil, err
		}
	}
	sample, err := aggregator.SampleNoise[E](ctx, f, dist, shares, v)
	if err != nil {
		return nil, err
	}
	return nbin.Value(f, sample[0], m)
}

// simulateGeometricTrial lets every aggregator draw a geometric noise share and
// returns the combined noise.
func simulateGeometricTrial[E field.Element[E]](f field.Field[E], g *distributednoise.Geometric) (*big.Rat, error) {
	samples := make([][]E, g.NumShares())
	for i := range samples {
		share, err := distributednoise.Share(f, g)
		if err != nil {
			return nil, err
		}
		samples[i] = []E{share}
	}
	combined, err := aggregator.Combine(f, samples...)
	if err != nil {
		return nil, err
	}
	return new(big.Rat).SetInt(field.DecodeSigned(f, combined[0])), nil
}

// sampleNoiseFn maps a trial number to a reconstructed noise value.
type sampleNoiseFn struct {
	Mechanism     string
	Bits          int
	M             uint64
	Epsilon       float64
	L1Sensitivity uint64
	NumShares     int
	Hedge         bool
	Field         string
	Seed          []byte

	dist64      *nbin.NBin[field.Elem64]
	dist128     *nbin.NBin[field.Elem128]
	geometric   *distributednoise.Geometric
	countSample beam.Counter
}

func (fn *sampleNoiseFn) Setup() error {
	fn.countSample = beam.NewCounter("nbin-simulator", "sampleNoiseFn_sample_count")

	var err error
	if fn.Mechanism == MechanismGeometric {
		fn.geometric, err = distributednoise.NewGeometric(fn.Epsilon, fn.L1Sensitivity, uint64(fn.NumShares))
		return err
	}
	switch fn.Field {
	case field.Field64{}.Name():
		fn.dist64, err = nbin.New[field.Elem64](field.Field64{}, fn.Bits, fn.M)
	case field.Field128{}.Name():
		fn.dist128, err = nbin.New[field.Elem128](field.Field128{}, fn.Bits, fn.M)
	default:
		err = fmt.Errorf("unsupported field %q", fn.Field)
	}
	return err
}

func (fn *sampleNoiseFn) ProcessElement(ctx context.Context, trial int64, emit func(float64)) error {
	var (
		value *big.Rat
		err   error
	)
	switch {
	case fn.geometric != nil && fn.Field == field.Field64{}.Name():
		value, err = simulateGeometricTrial[field.Elem64](field.Field64{}, fn.geometric)
	case fn.geometric != nil:
		value, err = simulateGeometricTrial[field.Elem128](field.Field128{}, fn.geometric)
	case fn.dist64 != nil:
		value, err = simulateTrial[field.Elem64](ctx, field.Field64{}, fn.dist64, fn.M, fn.NumShares, fn.Hedge, trialSource(fn.Seed, trial))
	default:
		value, err = simulateTrial[field.Elem128](ctx, field.Field128{}, fn.dist128, fn.M, fn.NumShares, fn.Hedge, trialSource(fn.Seed, trial))
	}
	if err != nil {
		return fmt.Errorf("trial %d: %w", trial, err)
	}

	fn.countSample.Inc(ctx, 1)
	sample, _ := value.Float64()
	emit(sample)
	return nil
}

// SimulateNoise returns a PCollection<float64> with one reconstructed noise value per trial.
func SimulateNoise(scope beam.Scope, params *SimulateParams) beam.PCollection {
	scope = scope.Scope("SimulateNoise")

	trials := make([]int64, params.Trials)
	for i := range trials {
		trials[i] = int64(i)
	}
	resharded := beam.Reshuffle(scope, beam.CreateList(scope, trials))
	return beam.ParDo(scope, &sampleNoiseFn{
		Mechanism:     params.mechanism(),
		Bits:          params.Bits,
		M:             params.M,
		Epsilon:       params.Epsilon,
		L1Sensitivity: params.L1Sensitivity,
		NumShares:     params.NumShares,
		Hedge:         params.Hedge,
		Field:         params.Field,
		Seed:          params.Seed,
	}, resharded)
}

// CountSamples returns a PCollection<KV<float64, int>> with the number of times each noise value is drawn.
func CountSamples(scope beam.Scope, samples beam.PCollection) beam.PCollection {
	scope = scope.Scope("CountSamples")
	return stats.Count(scope, samples)
}

type formatHistogramFn struct {
	countBucket beam.Counter
}

func (fn *formatHistogramFn) Setup() {
	fn.countBucket = beam.NewCounter("nbin-simulator", "formatHistogramFn_bucket_count")
}

func (fn *formatHistogramFn) ProcessElement(ctx context.Context, value float64, count int, emit func(string)) {
	fn.countBucket.Inc(ctx, 1)
	emit(fmt.Sprintf("%s,%d", strconv.FormatFloat(value, 'g', -1, 64), count))
}

// WriteHistogram writes the counts as lines in the format "value,count".
func WriteHistogram(scope beam.Scope, counts beam.PCollection, outputName string) {
	scope = scope.Scope("WriteHistogram")
	formatted := beam.ParDo(scope, &formatHistogramFn{}, counts)
	textio.Write(scope, outputName, formatted)
}

// Simulate builds the pipeline that draws the noise samples and writes their histogram.
func Simulate(scope beam.Scope, params *SimulateParams) error {
	if err := params.validate(); err != nil {
		return err
	}
	scope = scope.Scope("NBinSimulator")
	samples := SimulateNoise(scope, params)
	WriteHistogram(scope, CountSamples(scope, samples), params.HistogramURI)
	return nil
}

// Bucket is one line of the histogram.
type Bucket struct {
	Value float64
	Count int
}

// ReadHistogram reads the histogram written by WriteHistogram, sorted by value.
func ReadHistogram(ctx context.Context, filename string) ([]Bucket, error) {
	lines, err := utils.ReadLines(ctx, filename)
	if err != nil {
		return nil, err
	}

	var buckets []Bucket
	for _, line := range lines {
		if line == "" {
			continue
		}
		cols := strings.Split(line, ",")
		if got, want := len(cols), 2; got != want {
			return nil, fmt.Errorf("got %d columns in line %q, want %d", got, line, want)
		}
		value, err := strconv.ParseFloat(cols[0], 64)
		if err != nil {
			return nil, err
		}
		count, err := strconv.Atoi(cols[1])
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, Bucket{Value: value, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Value < buckets[j].Value })
	return buckets, nil
}

// Summarize returns the total count, the mean and the unbiased variance of a histogram.
func Summarize(buckets []Bucket) (total int, mean, variance float64) {
	values := make([]float64, len(buckets))
	weights := make([]float64, len(buckets))
	for i, b := range buckets {
		values[i] = b.Value
		weights[i] = float64(b.Count)
		total += b.Count
	}
	mean, variance = stat.MeanVariance(values, weights)
	return total, mean, variance
}

// Summary describes a histogram and the distribution it was drawn from.
type Summary struct {
	Total            int
	Mean             float64
	Variance         float64
	ExpectedVariance float64
}

// SummaryURI returns the location of the summary written next to a histogram.
func SummaryURI(histogramURI string) string {
	return utils.AddStrInPath(histogramURI, "_summary")
}

// WriteSummary reads the histogram of a finished simulation and writes its summary
// to SummaryURI(params.HistogramURI) as "name,value" lines.
func WriteSummary(ctx context.Context, params *SimulateParams) (*Summary, error) {
	buckets, err := ReadHistogram(ctx, params.HistogramURI)
	if err != nil {
		return nil, err
	}
	expected, err := params.ExpectedVariance()
	if err != nil {
		return nil, err
	}
	summary := &Summary{ExpectedVariance: expected}
	summary.Total, summary.Mean, summary.Variance = Summarize(buckets)

	lines := []string{
		fmt.Sprintf("total,%d", summary.Total),
		fmt.Sprintf("mean,%v", summary.Mean),
		fmt.Sprintf("variance,%v", summary.Variance),
		fmt.Sprintf("expected_variance,%v", summary.ExpectedVariance),
	}
	if err := utils.WriteLines(ctx, lines, SummaryURI(params.HistogramURI)); err != nil {
		return nil, err
	}
	return summary, nil
}
