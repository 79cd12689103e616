// Package model defines the data structures shared across phishguard.
//
// This package contains the following main types:
//   - FeatureVector: fixed-layout numeric encoding of a page's risk signals
//   - Finding: one check result with severity and bounded risk contribution
//   - ScoreBreakdown: the aggregator output for one analysis
//   - Report: the explainable, sorted result persisted for later retrieval
//   - AnalysisRequest / AnalysisResponse: the message contract of the service
//
// Models live in their own package so that features, analyzers, the
// aggregator and the report writers can share them without import cycles.
// All of them serialize to JSON for report output and database storage.
package model
