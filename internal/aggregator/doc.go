// Package aggregator combines feature, classifier and reputation signals
// into one weighted verdict.
//
// Scores are on a [0, 1] scale:
//
//	featureScore    = Wurl*mean(URL segment) + Wcontent*mean(content segment)
//	reputationScore = trailing vector slot, or ΣRiskFactor/ΣMaxRisk of API findings
//	finalScore      = Wml*mlScore + Wfeature*featureScore + Wreputation*reputationScore
//
// Feature entries in [-1, 1] are mapped to [0, 1] before averaging and
// entries that are NaN or infinite are skipped. When the classifier is
// degraded the fallback weight set of the configuration is used instead.
// Analyze never panics and never returns an error: failures surface as a
// safe, zero-score breakdown carrying an error message.
package aggregator
