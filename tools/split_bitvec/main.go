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

// This binary plays the client: it splits a bit vector into additive shares, one
// file per aggregator. The hedge vector is generated later by the aggregators
// with generate_hedge_vector.
package main

import (
	"context"
	"flag"

	log "github.com/golang/glog"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/internal/shareprocess"
	"github.com/google/privacy-sandbox-distributed-noise/randomness"
)

var (
	bits      = flag.Int("bits", 1000, "Length of the bit vector.")
	numShares = flag.Int("num_shares", 2, "Number of aggregators.")
	bitvec    = flag.String("bitvec", "", "Comma-separated bits to share, e.g. 1,0,1. A random bit vector is used when empty.")
	fieldName = flag.String("field", field.Field128{}.Name(), "Field for the shares, Field64 or Field128.")
	seed      = flag.String("seed", "", "Seed for reproducible shares. Cryptographic randomness is used when empty.")
	outputDir = flag.String("output_dir", "", "Output directory for the share files.")
	reportID  = flag.String("report_id", "", "ID used in the output file names. A random UUID is used when empty.")
)

func main() {
	flag.Parse()

	bitvecBits, err := shareprocess.ParseBitvec(*bitvec)
	if err != nil {
		log.Exit(err)
	}
	if len(bitvecBits) > 0 {
		*bits = len(bitvecBits)
	}
	src := randomness.NewCryptoSource()
	if *seed != "" {
		src = randomness.NewSeededSource([]byte(*seed))
	}
	params := &shareprocess.SplitBitvecParams{
		Bits:      *bits,
		NumShares: *numShares,
		Bitvec:    bitvecBits,
		OutputDir: *outputDir,
		ReportID:  *reportID,
	}

	ctx := context.Background()
	var id string
	switch *fieldName {
	case field.Field64{}.Name():
		id, err = shareprocess.SplitBitvec[field.Elem64](ctx, field.Field64{}, src, params)
	case field.Field128{}.Name():
		id, err = shareprocess.SplitBitvec[field.Elem128](ctx, field.Field128{}, src, params)
	default:
		log.Exitf("unsupported field %q, expect one of %v", *fieldName, field.Names())
	}
	if err != nil {
		log.Exit(err)
	}
	log.Infof("report ID: %s", id)
}
