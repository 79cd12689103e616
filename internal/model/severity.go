package model

import (
	"fmt"
	"strings"
)

// Severity is the risk level attached to a Finding.
//
// The zero value is SeveritySafe. Higher values are more dangerous, so
// severities can be compared directly.
type Severity int

const (
	// SeveritySafe marks a check that found nothing suspicious, or found
	// something only weakly related to phishing.
	SeveritySafe Severity = iota

	// SeverityWarning marks a signal that is common on phishing pages but
	// also appears on legitimate ones.
	SeverityWarning

	// SeverityDanger marks a strong phishing signal.
	SeverityDanger
)

// String returns the lower-case wire name of the severity.
func (s Severity) String() string {
	switch s {
	case SeveritySafe:
		return "safe"
	case SeverityWarning:
		return "warning"
	case SeverityDanger:
		return "danger"
	default:
		return "unknown"
	}
}

// Rank returns the sort position of the severity in a report.
// Danger sorts first (rank 0), safe last.
func (s Severity) Rank() int {
	switch s {
	case SeverityDanger:
		return 0
	case SeverityWarning:
		return 1
	case SeveritySafe:
		return 2
	default:
		return 3
	}
}

// ParseSeverity converts a wire name into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return SeveritySafe, nil
	case "warning":
		return SeverityWarning, nil
	case "danger":
		return SeverityDanger, nil
	default:
		return SeveritySafe, fmt.Errorf("unknown severity %q", s)
	}
}

// MarshalText encodes the severity as its wire name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a wire name produced by MarshalText.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Category identifies which family of checks produced a Finding.
type Category string

const (
	// CategoryURL is used for lexical checks on the URL itself.
	CategoryURL Category = "url"
	// CategoryContent is used for checks on the page DOM and text.
	CategoryContent Category = "content"
	// CategoryAPI is used for third-party reputation lookups.
	CategoryAPI Category = "api"
)

// Categories lists every category in report order.
func Categories() []Category {
	return []Category{CategoryURL, CategoryContent, CategoryAPI}
}
