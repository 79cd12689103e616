package store

import "errors"

var (
	// ErrNotFound is returned when no report has the requested ID.
	ErrNotFound = errors.New("report not found")

	// ErrNilReport is returned by Save for a nil report.
	ErrNilReport = errors.New("report is nil")

	// ErrEmptyURL is returned when a report without URL is saved.
	ErrEmptyURL = errors.New("report URL is empty")
)
