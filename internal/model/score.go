package model

// Verdict is the classification of a page.
type Verdict string

const (
	// VerdictSafe is returned when the final score is at or below the suspicious threshold.
	VerdictSafe Verdict = "safe"
	// VerdictSuspicious is returned when the final score exceeds the suspicious threshold.
	VerdictSuspicious Verdict = "suspicious"
	// VerdictPhishing is returned when the final score exceeds the phishing threshold.
	VerdictPhishing Verdict = "phishing"
)

// NoFeaturesMessage is the marker returned for an empty feature vector.
const NoFeaturesMessage = "No features provided"

// ScoreBreakdown is the aggregator output for one analysis.
// All scores are in [0, 1].
type ScoreBreakdown struct {
	MLScore         float64 `json:"mlScore"`
	FeatureScore    float64 `json:"featureScore"`
	ReputationScore float64 `json:"reputationScore"`
	FinalScore      float64 `json:"finalScore"`

	// UsedFallback is true when the classifier was unavailable and the
	// fallback weight set was applied.
	UsedFallback bool `json:"usedFallback"`

	Verdict Verdict `json:"verdict"`

	// Error is set when analysis was skipped, e.g. NoFeaturesMessage.
	Error string `json:"error,omitempty"`
}

// EmptyBreakdown returns the safe, zero-score result used when no analysis ran.
func EmptyBreakdown(reason string) ScoreBreakdown {
	return ScoreBreakdown{Verdict: VerdictSafe, Error: reason}
}
