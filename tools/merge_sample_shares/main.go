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

// This binary combines the noise shares from all aggregators and reports the reconstructed noise.
// The scale of the noise is read from the shares.
package main

import (
	"context"
	"flag"
	"math/big"
	"strings"

	log "github.com/golang/glog"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/internal/shareprocess"
	"github.com/google/privacy-sandbox-distributed-noise/shared/utils"
)

var (
	sampleShareURIs = flag.String("sample_share_uris", "", "Comma-separated noise shares from all aggregators.")
	noiseURI        = flag.String("noise_uri", "", "Optional output file for the reconstructed noise.")
	fieldName       = flag.String("field", field.Field128{}.Name(), "Field for the shares, Field64 or Field128.")
)

func main() {
	flag.Parse()

	if *sampleShareURIs == "" {
		log.Exit("expect non-empty sample share URIs")
	}
	uris := strings.Split(*sampleShareURIs, ",")

	ctx := context.Background()
	var (
		noise *big.Rat
		err   error
	)
	switch *fieldName {
	case field.Field64{}.Name():
		noise, err = shareprocess.MergeSampleShares[field.Elem64](ctx, field.Field64{}, uris)
	case field.Field128{}.Name():
		noise, err = shareprocess.MergeSampleShares[field.Elem128](ctx, field.Field128{}, uris)
	default:
		log.Exitf("unsupported field %q, expect one of %v", *fieldName, field.Names())
	}
	if err != nil {
		log.Exit(err)
	}

	log.Infof("noise: %s", noise.RatString())
	if *noiseURI != "" {
		if err := utils.WriteLines(ctx, []string{noise.RatString()}, *noiseURI); err != nil {
			log.Exit(err)
		}
	}
}
