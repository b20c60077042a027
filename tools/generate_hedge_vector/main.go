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

// This binary runs on the aggregator side after a report's shares are submitted.
// It draws the hedge vector that every aggregator applies to its share, so the
// client cannot know in advance which positions are inverted.
package main

import (
	"context"
	"flag"

	log "github.com/golang/glog"

	"github.com/google/privacy-sandbox-distributed-noise/internal/shareprocess"
	"github.com/google/privacy-sandbox-distributed-noise/randomness"
)

var (
	shareURI  = flag.String("share_uri", "", "Input bit vector share of the report, from any aggregator.")
	outputDir = flag.String("output_dir", "", "Output directory for the hedge vector.")
)

func main() {
	flag.Parse()

	if *shareURI == "" {
		log.Exit("expect non-empty share URI")
	}
	hedgeURI, err := shareprocess.GenerateHedgeVector(context.Background(), randomness.NewCryptoSource(), &shareprocess.GenerateHedgeVectorParams{
		ShareURI:  *shareURI,
		OutputDir: *outputDir,
	})
	if err != nil {
		log.Exit(err)
	}
	log.Infof("hedge vector: %s", hedgeURI)
}
