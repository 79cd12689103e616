package model

import "time"

// Report is the explainable result of analyzing one URL.
// It is created once and treated as read-only afterwards.
type Report struct {
	// ID uniquely identifies the stored report.
	ID string `json:"id"`

	// URL is the analyzed URL in normalized form.
	URL string `json:"url"`

	// RiskScore is the overall risk in [0, 100].
	RiskScore int `json:"riskScore"`

	// Status is the human-readable risk label.
	Status string `json:"status"`

	// Findings is sorted: ML findings first, then danger, warning, safe.
	Findings []Finding `json:"analysisItems"`

	// CategoryScores holds the per-category score in [0, 100].
	CategoryScores map[Category]int `json:"categoryScores,omitempty"`

	// Breakdown is the aggregator output, when the classifier path ran.
	Breakdown *ScoreBreakdown `json:"breakdown,omitempty"`

	// Timestamp is when the report was built.
	Timestamp time.Time `json:"timestamp"`
}

// SeverityCounts returns the number of findings per severity.
func (r *Report) SeverityCounts() map[Severity]int {
	counts := map[Severity]int{
		SeverityDanger:  0,
		SeverityWarning: 0,
		SeveritySafe:    0,
	}
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}

// FindingsByCategory returns the findings of one category in report order.
func (r *Report) FindingsByCategory(c Category) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

// HasMLDetection reports whether the classifier flagged the page as phishing.
func (r *Report) HasMLDetection() bool {
	for _, f := range r.Findings {
		if f.IsPositiveML() {
			return true
		}
	}
	return false
}
