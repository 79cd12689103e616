package model

import "math"

// FeatureVector is the ordered numeric encoding of a page.
//
// The layout is fixed by configuration: a URL segment, a content segment and
// a trailing reputation slot. The vector itself carries no boundaries.
type FeatureVector []float64

// Clone returns a copy that does not share storage with v.
func (v FeatureVector) Clone() FeatureVector {
	if v == nil {
		return nil
	}
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}

// Segment returns v[start:end] with bounds clamped to the vector length.
func (v FeatureVector) Segment(start, end int) FeatureVector {
	if start < 0 {
		start = 0
	}
	if end > len(v) {
		end = len(v)
	}
	if start >= end {
		return nil
	}
	return v[start:end]
}

// Last returns the final entry and false if the vector is empty.
func (v FeatureVector) Last() (float64, bool) {
	if len(v) == 0 {
		return 0, false
	}
	return v[len(v)-1], true
}

// IsValidNumber reports whether x is neither NaN nor infinite.
func IsValidNumber(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
