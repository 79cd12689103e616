// Package config provides configuration for phishguard.
//
// Two kinds of configuration live here:
//   - Config holds runtime options set from CLI flags (timeouts, output
//     format, database location, server address).
//   - FeatureConfig holds the scoring configuration loaded from YAML
//     (weights, thresholds, enabled features, vector layout, cache TTLs,
//     reputation API settings). It is normalized exactly once at load and
//     treated as immutable afterwards.
package config
