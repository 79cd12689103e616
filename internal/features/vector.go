package features

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/model"
)

// Assemble builds a vector in the configured layout.
// The URL segment must match layout.URLFeatures exactly.
func Assemble(layout config.Layout, urlFeatures, contentFeatures []float64, reputation float64) (model.FeatureVector, error) {
	if len(urlFeatures) != layout.URLFeatures {
		return nil, &model.InvalidInputError{
			Reason: fmt.Sprintf("got %d URL features, layout expects %d", len(urlFeatures), layout.URLFeatures),
		}
	}
	fv := make(model.FeatureVector, 0, len(urlFeatures)+len(contentFeatures)+1)
	fv = append(fv, urlFeatures...)
	fv = append(fv, contentFeatures...)
	fv = append(fv, reputation)
	if len(fv) < layout.MinLength {
		return nil, &model.InvalidInputError{
			Reason: fmt.Sprintf("vector has %d entries, layout needs at least %d", len(fv), layout.MinLength),
		}
	}
	return fv, nil
}

// ParseVector parses a list of numbers separated by commas or spaces, as
// accepted by the predict command. Surrounding brackets are ignored and empty
// input yields an empty vector.
func ParseVector(s string) (model.FeatureVector, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '[' || r == ']' || unicode.IsSpace(r)
	})
	fv := make(model.FeatureVector, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, &model.InvalidInputError{Reason: fmt.Sprintf("entry %d (%q) is not a number", i, f)}
		}
		fv = append(fv, v)
	}
	return fv, nil
}
