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

// This binary runs on one aggregator: it reads the aggregator's bit vector share and
// the hedge vector, and writes the aggregator's share of the noise.
package main

import (
	"context"
	"flag"

	log "github.com/golang/glog"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/internal/shareprocess"
)

var (
	shareURI       = flag.String("share_uri", "", "Input bit vector share of this aggregator.")
	hedgeURI       = flag.String("hedge_uri", "", "Input hedge vector. Sample without the hedge when empty.")
	sampleShareURI = flag.String("sample_share_uri", "", "Output noise share.")
	scale          = flag.Uint64("m", 1, "The noise is divided by this scale.")
	fieldName      = flag.String("field", field.Field128{}.Name(), "Field for the shares, Field64 or Field128.")
	overwrite      = flag.Bool("overwrite", false, "Replace an existing output noise share.")
)

func main() {
	flag.Parse()

	params := &shareprocess.ComputeSampleShareParams{
		ShareURI:       *shareURI,
		HedgeURI:       *hedgeURI,
		SampleShareURI: *sampleShareURI,
		M:              *scale,
		Overwrite:      *overwrite,
	}
	ctx := context.Background()
	var err error
	switch *fieldName {
	case field.Field64{}.Name():
		err = shareprocess.ComputeSampleShare[field.Elem64](ctx, field.Field64{}, params)
	case field.Field128{}.Name():
		err = shareprocess.ComputeSampleShare[field.Elem128](ctx, field.Field128{}, params)
	default:
		log.Exitf("unsupported field %q, expect one of %v", *fieldName, field.Names())
	}
	if err != nil {
		log.Exit(err)
	}
}
