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

// This binary draws noise samples through the distributed protocol and writes their histogram.
// The pipeline can be executed in two ways:
//
// 1. Directly on local
// /path/to/nbin_simulator \
// --trials=100000 \
// --bits=1000 \
// --num_shares=3 \
// --histogram_uri=/path/to/histogram.txt \
// --runner=direct
//
// 2. Dataflow on cloud with flag '--runner=dataflow', and the following flags need to be set:
// --project=<GCP project>
// --region=<worker region>
// --temp_location=gs://<dataflow temp dir>
// --staging_location=gs://<dataflow temp dir>
// --worker_binary=/path/to/nbin_simulator/binary
package main

import (
	"context"
	"flag"
	"math"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/log"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/x/beamx"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/pipeline/nbinsimulator"

	_ "github.com/apache/beam/sdks/v2/go/pkg/beam/io/filesystem/gcs"
	_ "github.com/apache/beam/sdks/v2/go/pkg/beam/io/filesystem/local"
)

var (
	trials       = flag.Int64("trials", 10000, "Number of noise samples to draw.")
	mechanism    = flag.String("mechanism", nbinsimulator.MechanismNBin, "Noise mechanism, nbin or geometric.")
	bits         = flag.Int("bits", 1000, "Length of the client bit vector for nbin.")
	scale        = flag.Uint64("m", 1, "The nbin noise is divided by this scale.")
	numShares    = flag.Int("num_shares", 2, "Number of aggregators.")
	noHedge      = flag.Bool("no_hedge", false, "Sample nbin noise without the hedge vector.")
	fieldName    = flag.String("field", field.Field128{}.Name(), "Field for the shares, Field64 or Field128.")
	seed         = flag.String("seed", "", "Seed for reproducible nbin simulations. Cryptographic randomness is used when empty.")
	histogramURI = flag.String("histogram_uri", "", "Output location of the histogram. The summary is written next to it.")

	epsilon = flag.Float64("epsilon", 1.0, "Epsilon for the geometric mechanism.")
	// The default l1 sensitivity is consistent with:
	// https://github.com/WICG/conversion-measurement-api/blob/main/AGGREGATE.md#privacy-budgeting
	l1Sensitivity = flag.Uint64("l1_sensitivity", uint64(math.Pow(2, 16)), "L1-sensitivity for the geometric mechanism.")
)

func main() {
	flag.Parse()
	beam.Init()

	ctx := context.Background()
	if *histogramURI == "" {
		log.Exit(ctx, "expect non-empty output histogram URI")
	}

	params := &nbinsimulator.SimulateParams{
		Trials:        *trials,
		Mechanism:     *mechanism,
		Bits:          *bits,
		M:             *scale,
		Epsilon:       *epsilon,
		L1Sensitivity: *l1Sensitivity,
		NumShares:     *numShares,
		Hedge:         !*noHedge,
		Field:         *fieldName,
		Seed:          []byte(*seed),
		HistogramURI:  *histogramURI,
	}
	pipeline := beam.NewPipeline()
	scope := pipeline.Root()
	if err := nbinsimulator.Simulate(scope, params); err != nil {
		log.Exit(ctx, err)
	}
	if err := beamx.Run(ctx, pipeline); err != nil {
		log.Exitf(ctx, "Failed to execute job: %s", err)
	}

	summary, err := nbinsimulator.WriteSummary(ctx, params)
	if err != nil {
		log.Exit(ctx, err)
	}
	log.Infof(ctx, "%d samples, mean %v, variance %v, expected variance %v; summary written to %s",
		summary.Total, summary.Mean, summary.Variance, summary.ExpectedVariance, nbinsimulator.SummaryURI(*histogramURI))
}
