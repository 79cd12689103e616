package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/phishguard/internal/model"
)

func finding(check string, sev model.Severity, risk float64) model.Finding {
	return model.NewFinding(check, model.CategoryContent, sev, risk, 20, check+" title", check+" description")
}

func comparisonFixture() (previous, current *model.Report) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	previous = &model.Report{
		ID:        "prev",
		URL:       testURL,
		RiskScore: 30,
		Status:    "suspicious",
		Timestamp: base,
		Findings: []model.Finding{
			finding("content_password", model.SeverityWarning, 10),
			finding("content_brand", model.SeveritySafe, 0),
			finding("url_protocol", model.SeverityDanger, 20),
		},
	}
	current = &model.Report{
		ID:        "cur",
		URL:       testURL,
		RiskScore: 70,
		Status:    "phishing",
		Timestamp: base.Add(24 * time.Hour),
		Findings: []model.Finding{
			finding("content_password", model.SeverityDanger, 20),
			finding("content_brand", model.SeveritySafe, 0),
			finding("content_urgency", model.SeverityDanger, 15),
		},
	}
	return previous, current
}

func TestCompareReports(t *testing.T) {
	t.Parallel()

	previous, current := comparisonFixture()
	result := compareReports(previous, current)

	if result.URL != testURL {
		t.Errorf("got url %q, expected %q", result.URL, testURL)
	}
	if len(result.NewFindings) != 1 || result.NewFindings[0].Check != "content_urgency" {
		t.Errorf("expected content_urgency as new finding, got %+v", result.NewFindings)
	}
	if len(result.ResolvedFindings) != 1 || result.ResolvedFindings[0].Check != "url_protocol" {
		t.Errorf("expected url_protocol as resolved finding, got %+v", result.ResolvedFindings)
	}
	if len(result.ChangedFindings) != 1 {
		t.Fatalf("expected 1 changed finding, got %d", len(result.ChangedFindings))
	}
	change := result.ChangedFindings[0]
	if change.Before.Severity != model.SeverityWarning || change.After.Severity != model.SeverityDanger {
		t.Errorf("unexpected change %s -> %s", change.Before.Severity, change.After.Severity)
	}
	if result.UnchangedCount != 1 {
		t.Errorf("expected 1 unchanged finding, got %d", result.UnchangedCount)
	}
	if result.RiskChange.Direction != riskDirectionWorsened {
		t.Errorf("expected direction %q, got %q", riskDirectionWorsened, result.RiskChange.Direction)
	}
	if result.RiskChange.ScoreDelta != 40 {
		t.Errorf("expected score delta 40, got %d", result.RiskChange.ScoreDelta)
	}
	if result.RiskChange.DangerDelta != 1 {
		t.Errorf("expected danger delta 1, got %d", result.RiskChange.DangerDelta)
	}
}

func TestCalculateRiskChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previous ReportSummary
		current  ReportSummary
		want     string
	}{
		{
			name:     "improved",
			previous: ReportSummary{RiskScore: 80, Danger: 3},
			current:  ReportSummary{RiskScore: 20, Danger: 0},
			want:     riskDirectionImproved,
		},
		{
			name:     "worsened",
			previous: ReportSummary{RiskScore: 20},
			current:  ReportSummary{RiskScore: 21},
			want:     riskDirectionWorsened,
		},
		{
			name:     "unchanged score with different counts",
			previous: ReportSummary{RiskScore: 50, Danger: 1},
			current:  ReportSummary{RiskScore: 50, Warning: 2},
			want:     riskDirectionUnchanged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := calculateRiskChange(tt.previous, tt.current); got.Direction != tt.want {
				t.Errorf("got %q, expected %q", got.Direction, tt.want)
			}
		})
	}
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delta int
		want  string
	}{
		{delta: 3, want: "+3"},
		{delta: 0, want: "0"},
		{delta: -2, want: "-2"},
	}
	for _, tt := range tests {
		if got := formatDelta(tt.delta); got != tt.want {
			t.Errorf("formatDelta(%d): got %q, expected %q", tt.delta, got, tt.want)
		}
	}
}

func TestDiffFindings(t *testing.T) {
	t.Parallel()

	t.Run("identical lists", func(t *testing.T) {
		t.Parallel()

		previous, _ := comparisonFixture()
		if rows := diffFindings(previous.Findings, previous.Findings); len(rows) != 0 {
			t.Errorf("expected no diff, got %+v", rows)
		}
	})

	t.Run("added and removed lines", func(t *testing.T) {
		t.Parallel()

		previous, current := comparisonFixture()
		rows := diffFindings(previous.Findings, current.Findings)

		var added, removed []string
		for _, row := range rows {
			switch row.Op {
			case "+":
				added = append(added, row.Line)
			case "-":
				removed = append(removed, row.Line)
			default:
				t.Errorf("unexpected op %q", row.Op)
			}
		}
		if !containsLine(added, "content_urgency") || !containsLine(added, "[danger] content_password") {
			t.Errorf("unexpected added lines %v", added)
		}
		if !containsLine(removed, "url_protocol") || !containsLine(removed, "[warning] content_password") {
			t.Errorf("unexpected removed lines %v", removed)
		}
		if containsLine(added, "content_brand") || containsLine(removed, "content_brand") {
			t.Error("expected unchanged finding to be absent from the diff")
		}
	})
}

func containsLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestSelectReports(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("latest two", func(t *testing.T) {
		t.Parallel()

		st := newCLITestStore(t)
		first := saveReport(t, st, testURL, 10, base)
		second := saveReport(t, st, testURL, 20, base.Add(time.Hour))
		third := saveReport(t, st, testURL, 30, base.Add(2*time.Hour))

		previous, current, err := selectReports(ctx, st, testURL, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if previous.ID != second.ID || current.ID != third.ID {
			t.Errorf("expected %s -> %s, got %s -> %s", second.ID, third.ID, previous.ID, current.ID)
		}

		previous, _, err = selectReports(ctx, st, testURL, first.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if previous.ID != first.ID {
			t.Errorf("got previous %s, expected %s", previous.ID, first.ID)
		}
	})

	t.Run("no reports", func(t *testing.T) {
		t.Parallel()

		_, _, err := selectReports(ctx, newCLITestStore(t), testURL, "")
		if err == nil || !strings.Contains(err.Error(), "no reports found") {
			t.Errorf("expected 'no reports found' error, got %v", err)
		}
	})

	t.Run("single report", func(t *testing.T) {
		t.Parallel()

		st := newCLITestStore(t)
		saveReport(t, st, testURL, 10, base)

		_, _, err := selectReports(ctx, st, testURL, "")
		if err == nil || !strings.Contains(err.Error(), "at least 2 reports") {
			t.Errorf("expected 'at least 2 reports' error, got %v", err)
		}
	})

	t.Run("id of another url", func(t *testing.T) {
		t.Parallel()

		st := newCLITestStore(t)
		other := saveReport(t, st, "https://other.example.com/", 10, base)
		saveReport(t, st, testURL, 20, base.Add(time.Hour))

		_, _, err := selectReports(ctx, st, testURL, other.ID)
		if err == nil || !strings.Contains(err.Error(), "belongs to") {
			t.Errorf("expected 'belongs to' error, got %v", err)
		}
	})

	t.Run("id of the latest report", func(t *testing.T) {
		t.Parallel()

		st := newCLITestStore(t)
		saveReport(t, st, testURL, 10, base)
		latest := saveReport(t, st, testURL, 20, base.Add(time.Hour))

		_, _, err := selectReports(ctx, st, testURL, latest.ID)
		if err == nil || !strings.Contains(err.Error(), "latest report") {
			t.Errorf("expected 'latest report' error, got %v", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		st := newCLITestStore(t)
		saveReport(t, st, testURL, 10, base)

		_, _, err := selectReports(ctx, st, testURL, "missing")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected 'not found' error, got %v", err)
		}
	})
}

func TestOutputComparison(t *testing.T) {
	t.Parallel()

	previous, current := comparisonFixture()
	result := compareReports(previous, current)

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		outputComparisonText(&buf, result)
		output := buf.String()
		for _, want := range []string{
			"Report Comparison: " + testURL,
			"WORSENED",
			"New Findings (1)",
			"Resolved Findings (1)",
			"Changed Findings (1)",
			"Unchanged: 1 findings",
			"Diff:",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("markdown", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		outputComparisonMarkdown(&buf, result)
		output := buf.String()
		for _, want := range []string{
			"# Report Comparison: " + testURL,
			"| Risk score | 30 | 70 | +40 |",
			"## New Findings (1)",
			"```diff",
			"*1 findings unchanged*",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})
}
