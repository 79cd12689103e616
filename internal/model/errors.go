package model

import "fmt"

// InvalidInputError is returned for malformed or undersized input.
// Callers short-circuit to a safe, neutral result.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// ClassifierUnavailableError wraps a model load or inference failure.
// Callers switch to feature and reputation scoring only.
type ClassifierUnavailableError struct {
	Err error
}

func (e *ClassifierUnavailableError) Error() string {
	return fmt.Sprintf("classifier unavailable: %v", e.Err)
}

func (e *ClassifierUnavailableError) Unwrap() error {
	return e.Err
}

// CollaboratorError is the failure of one reputation check.
// It is contained to that check, which contributes a neutral finding.
type CollaboratorError struct {
	Check string
	Err   error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("reputation check %s failed: %v", e.Check, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// AggregationError is an unexpected failure while combining scores.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation failed: %v", e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}
