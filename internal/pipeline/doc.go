// Package pipeline orchestrates the analysis of one URL.
//
// An analysis runs as a sequence of steps over a shared Analysis value:
// fetch the page, collect signals (URL and content checks in parallel with
// the reputation lookups), score the feature vector, build the report and
// store it. Analyzer wraps the pipeline with a per-URL result cache and
// answers the predictPhishing / analyzeUrl message contract.
//
// BatchProcessor analyzes many URLs with bounded concurrency using errgroup.
package pipeline
