package classifier

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Scorer is a loaded model.
type Scorer interface {
	// Width is the number of features the model expects.
	Width() int
	// Score returns a value in [0, 1] for a vector of exactly Width entries.
	Score(features []float64) (float64, error)
}

// Loader produces a Scorer.
type Loader interface {
	Load(ctx context.Context) (Scorer, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (Scorer, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (Scorer, error) {
	return f(ctx)
}

// Model file errors.
var (
	// ErrEmptyModel is returned for a model without weights.
	ErrEmptyModel = errors.New("model has no weights")
	// ErrInvalidWeight is returned for NaN or infinite weights.
	ErrInvalidWeight = errors.New("model contains a non-finite weight")
)

// LinearModel is a logistic-regression model: sigmoid(bias + Σ wᵢxᵢ).
type LinearModel struct {
	Name    string    `yaml:"name" json:"name"`
	Bias    float64   `yaml:"bias" json:"bias"`
	Weights []float64 `yaml:"weights" json:"weights"`
}

// Validate checks that the model can score vectors.
func (m *LinearModel) Validate() error {
	if len(m.Weights) == 0 {
		return ErrEmptyModel
	}
	if math.IsNaN(m.Bias) || math.IsInf(m.Bias, 0) {
		return ErrInvalidWeight
	}
	for _, w := range m.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return ErrInvalidWeight
		}
	}
	return nil
}

// Width returns the number of weights.
func (m *LinearModel) Width() int {
	return len(m.Weights)
}

// Score applies the model. Non-finite inputs are treated as 0.
func (m *LinearModel) Score(features []float64) (float64, error) {
	if len(features) != len(m.Weights) {
		return 0, fmt.Errorf("got %d features, model expects %d", len(features), len(m.Weights))
	}
	z := m.Bias
	for i, w := range m.Weights {
		x := features[i]
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		z += w * x
	}
	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// ParseLinearModel decodes a YAML or JSON model document.
func ParseLinearModel(data []byte) (*LinearModel, error) {
	var m LinearModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FileLoader reads a linear model from Path.
type FileLoader struct {
	Path string
}

// Load reads and parses the model file.
func (l FileLoader) Load(ctx context.Context) (Scorer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", l.Path, err)
	}
	return ParseLinearModel(data)
}

//go:embed default_model.yaml
var defaultModel []byte

// EmbeddedLoader returns the built-in model. Its width matches the default
// vector layout: 9 URL features, 11 content features and the reputation slot.
type EmbeddedLoader struct{}

// Load parses the embedded model.
func (EmbeddedLoader) Load(ctx context.Context) (Scorer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ParseLinearModel(defaultModel)
}

// NewLoader returns a FileLoader for path, or EmbeddedLoader when path is empty.
func NewLoader(path string) Loader {
	if path == "" {
		return EmbeddedLoader{}
	}
	return FileLoader{Path: path}
}
