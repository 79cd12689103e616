// Package analyzer runs the explainable URL and content checks of a page.
//
// Each check produces exactly one model.Finding with a bounded risk
// contribution, so the report builder can compute per-category scores as
// the sum of risks over the sum of maximum risks. A check that cannot run
// (for example content checks on a page that failed to load) yields a
// neutral warning finding instead of being dropped.
//
// Checks are registered on an Analyzer and run in registration order:
//
//	a := analyzer.New()
//	findings, err := a.Analyze(ctx, analyzer.NewPage(u, doc))
package analyzer
