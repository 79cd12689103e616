package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/phishguard/internal/model"
)

func TestVerdictLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp model.AnalysisResponse
		want string
	}{
		{
			name: "phishing",
			resp: model.AnalysisResponse{Result: model.VerdictPhishing, Score: 0.8123},
			want: "PHISHING (score 0.812)",
		},
		{
			name: "fallback",
			resp: model.AnalysisResponse{Result: model.VerdictSafe, Score: 0.1, Fallback: true},
			want: "SAFE (score 0.100) [classifier unavailable, fallback weights]",
		},
		{
			name: "error",
			resp: model.AnalysisResponse{Result: model.VerdictSafe, Error: "no features"},
			want: "SAFE (score 0.000): no features",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := verdictLine(tt.resp); got != tt.want {
				t.Errorf("got %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestJSONSafe(t *testing.T) {
	t.Parallel()

	got := jsonSafe(model.FeatureVector{1, math.NaN(), -1, math.Inf(1)})
	want := []float64{1, 0, -1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v, expected %v", i, got[i], want[i])
		}
	}
	if _, err := json.Marshal(got); err != nil {
		t.Errorf("expected encodable vector, got %v", err)
	}
}

func TestFormatVector(t *testing.T) {
	t.Parallel()

	got := formatVector(model.FeatureVector{1, -1, 0, 0.5, math.NaN()})
	if want := "1,-1,0,0.5,nan"; got != want {
		t.Errorf("got %q, expected %q", got, want)
	}
}

func TestPredictCommand(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "phishguard.yaml")
	if err := os.WriteFile(configPath, []byte("thresholds:\n  phishing: 0.6\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Run("scores a feature vector", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewRootCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"predict", "--config", configPath, "--json",
			"--features", "1,1,-1,-1,-1,-1,-1,-1,-1,-1,nan"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got predictResult
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
		}
		switch got.Result {
		case model.VerdictSafe, model.VerdictSuspicious, model.VerdictPhishing:
		default:
			t.Errorf("unexpected verdict %q", got.Result)
		}
		if got.Score < 0 || got.Score > 1 {
			t.Errorf("expected score in [0, 1], got %v", got.Score)
		}
		if len(got.Features) != 11 {
			t.Errorf("expected 11 features, got %d", len(got.Features))
		}
		if got.Report != nil {
			t.Error("expected no report for a predict request")
		}
	})

	t.Run("text output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewRootCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"predict", "--config", configPath, "-f", "1,1,1,1,1,1,1,1,1,1"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "(score ") {
			t.Errorf("expected a verdict line, got %q", buf.String())
		}
	})

	t.Run("requires input", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"predict", "--config", configPath})

		err := cmd.Execute()
		if err == nil {
			t.Fatal("expected error without --features or --url")
		}
		if !strings.Contains(err.Error(), "--features or --url") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("rejects malformed vector", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"predict", "--config", configPath, "-f", "1,abc"})

		if err := cmd.Execute(); err == nil {
			t.Error("expected error for a malformed vector")
		}
	})
}
