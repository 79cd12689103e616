package model

import "testing"

func TestNewFinding(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		risk     float64
		maxRisk  float64
		expected float64
	}{
		{"within bounds", 15, 25, 15},
		{"clamped to max", 40, 25, 25},
		{"negative clamped to zero", -3, 25, 0},
		{"negative max", 5, -1, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := NewFinding("url_length", CategoryURL, SeverityWarning, tc.risk, tc.maxRisk, "t", "d")
			if f.RiskFactor != tc.expected {
				t.Errorf("got %v, expected %v", f.RiskFactor, tc.expected)
			}
		})
	}
}

func TestNeutralFinding(t *testing.T) {
	t.Parallel()

	f := NeutralFinding("api_ssl", CategoryAPI, 40, "SSL Check")
	if f.Severity != SeverityWarning {
		t.Errorf("got %v, expected warning", f.Severity)
	}
	if f.RiskFactor != NeutralRisk {
		t.Errorf("got %v, expected %v", f.RiskFactor, NeutralRisk)
	}
	if f.MaxRisk != 40 {
		t.Errorf("got %v, expected 40", f.MaxRisk)
	}
}

func TestIsPositiveML(t *testing.T) {
	t.Parallel()

	positive := Finding{IsMLResult: true, Severity: SeverityDanger}
	negative := Finding{IsMLResult: true, Severity: SeverityWarning}
	notML := Finding{Severity: SeverityDanger}

	if !positive.IsPositiveML() {
		t.Error("danger ML finding should be positive")
	}
	if negative.IsPositiveML() {
		t.Error("warning ML finding should not be positive")
	}
	if notML.IsPositiveML() {
		t.Error("non-ML finding should not be positive")
	}
}

func TestGetFindingInfo(t *testing.T) {
	t.Parallel()

	if info := GetFindingInfo("api_safe_browsing"); info.Recommendation == "" {
		t.Error("expected recommendation for api_safe_browsing")
	}
	if info := GetFindingInfo("no_such_check"); info.Impact != "Unknown check." {
		t.Errorf("got %q, expected %q", info.Impact, "Unknown check.")
	}
}

func TestReportHelpers(t *testing.T) {
	t.Parallel()

	r := &Report{Findings: []Finding{
		{Check: "ml_prediction", IsMLResult: true, Severity: SeverityDanger, Category: CategoryContent},
		{Check: "url_protocol", Severity: SeverityDanger, Category: CategoryURL},
		{Check: "url_length", Severity: SeveritySafe, Category: CategoryURL},
		{Check: "api_ssl", Severity: SeverityWarning, Category: CategoryAPI},
	}}

	counts := r.SeverityCounts()
	if counts[SeverityDanger] != 2 || counts[SeverityWarning] != 1 || counts[SeveritySafe] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
	if got := len(r.FindingsByCategory(CategoryURL)); got != 2 {
		t.Errorf("got %d url findings, expected 2", got)
	}
	if !r.HasMLDetection() {
		t.Error("expected ML detection")
	}
}
