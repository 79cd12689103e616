package features

import (
	"errors"
	"testing"

	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/model"
)

func TestAssemble(t *testing.T) {
	t.Parallel()

	layout := config.Layout{URLFeatures: 9, MinLength: 10, ReputationRange: config.RangeSigned}
	url := make([]float64, URLFeatureCount)
	content := make([]float64, ContentFeatureCount)
	content[0] = 1

	t.Run("canonical layout", func(t *testing.T) {
		t.Parallel()
		fv, err := Assemble(layout, url, content, -1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(fv) != 21 {
			t.Fatalf("got %d entries, expected 21", len(fv))
		}
		if fv[9] != 1 {
			t.Errorf("got content[0] = %v, expected 1", fv[9])
		}
		if last, ok := fv.Last(); !ok || last != -1 {
			t.Errorf("got reputation %v, expected -1", last)
		}
	})

	t.Run("wrong url segment", func(t *testing.T) {
		t.Parallel()
		_, err := Assemble(layout, url[:5], content, 0)
		var inv *model.InvalidInputError
		if !errors.As(err, &inv) {
			t.Errorf("got %v, expected InvalidInputError", err)
		}
	})

	t.Run("too short", func(t *testing.T) {
		t.Parallel()
		short := config.Layout{URLFeatures: 9, MinLength: 30}
		_, err := Assemble(short, url, content, 0)
		var inv *model.InvalidInputError
		if !errors.As(err, &inv) {
			t.Errorf("got %v, expected InvalidInputError", err)
		}
	})
}

func TestParseVector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected int
		wantErr  bool
	}{
		{name: "commas", input: "1,-1,0.5", expected: 3},
		{name: "spaces and brackets", input: "[1 0 -1 1]", expected: 4},
		{name: "empty", input: "", expected: 0},
		{name: "not a number", input: "1,abc", wantErr: true},
		{name: "trailing garbage", input: "1x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseVector(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.expected {
				t.Errorf("got %d entries, expected %d", len(got), tt.expected)
			}
		})
	}
}
