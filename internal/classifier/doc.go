// Package classifier adapts a fixed-width scoring model to the aggregator.
//
// The Adapter owns the model handle. It loads the model lazily on first use,
// with at most one load in flight; concurrent first callers wait for the
// same load. Predict reports failures as typed errors, while Score converts
// every failure into a neutral score with a degraded flag so that
// aggregation always completes.
//
// Models are supplied through the Loader interface. FileLoader reads a
// linear model from YAML or JSON and EmbeddedLoader returns the built-in
// weights. Tests inject their own Loader.
package classifier
