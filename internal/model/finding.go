package model

import "math"

// Finding is the result of one discrete check.
//
// Design decision: checks report a bounded contribution instead of a bare
// pass or fail. A weak signal such as a long URL can then add a little risk
// without flipping the verdict on its own.
//
// RiskFactor is the contribution of this finding and MaxRisk is the maximum
// the producing check can contribute. Category scores are computed as
// ΣRiskFactor / ΣMaxRisk, so every check must report MaxRisk even when it
// found nothing.
type Finding struct {
	// Check is the stable identifier of the producing check (e.g. "url_protocol").
	Check string `json:"check"`

	// Title is a short human-readable headline.
	Title string `json:"title"`

	// Description explains what was observed.
	Description string `json:"description"`

	// Severity is the risk level.
	Severity Severity `json:"severity"`

	// RiskFactor is the bounded contribution in [0, MaxRisk].
	RiskFactor float64 `json:"riskFactor"`

	// MaxRisk is the configured maximum contribution of the check.
	MaxRisk float64 `json:"maxRisk"`

	// Category is the family of checks that produced the finding.
	Category Category `json:"category"`

	// IsMLResult marks the finding produced from the classifier output.
	IsMLResult bool `json:"isMLResult,omitempty"`
}

// NewFinding builds a Finding with the risk clamped to [0, maxRisk].
func NewFinding(check string, category Category, severity Severity, risk, maxRisk float64, title, description string) Finding {
	if maxRisk < 0 || math.IsNaN(maxRisk) {
		maxRisk = 0
	}
	if math.IsNaN(risk) || risk < 0 {
		risk = 0
	}
	if risk > maxRisk {
		risk = maxRisk
	}
	return Finding{
		Check:       check,
		Title:       title,
		Description: description,
		Severity:    severity,
		RiskFactor:  risk,
		MaxRisk:     maxRisk,
		Category:    category,
	}
}

// NeutralRisk is the contribution of a check that could not complete.
const NeutralRisk = 10

// NeutralFinding is the default finding recorded when a check fails.
// It carries a small warning-level contribution so a failed lookup neither
// hides nor inflates the overall risk.
func NeutralFinding(check string, category Category, maxRisk float64, title string) Finding {
	return NewFinding(check, category, SeverityWarning, NeutralRisk, maxRisk,
		title, "Unable to complete this check")
}

// IsPositiveML reports whether f is a classifier finding predicting phishing.
func (f Finding) IsPositiveML() bool {
	return f.IsMLResult && f.Severity == SeverityDanger
}

// FindingInfo contains remediation guidance for a check.
type FindingInfo struct {
	Impact         string
	Recommendation string
}

// findingInfoMapping maps check identifiers to guidance shown in reports.
var findingInfoMapping = map[string]FindingInfo{
	"url_protocol": {
		Impact:         "Data sent to the page travels unencrypted and can be read or altered in transit.",
		Recommendation: "Do not enter credentials or payment details on pages served over plain HTTP.",
	},
	"url_domain": {
		Impact:         "The host name imitates a well-known service or looks machine generated.",
		Recommendation: "Compare the registered domain with the one you expect before trusting the page.",
	},
	"url_patterns": {
		Impact:         "The URL uses encoding or redirection tricks common in phishing links.",
		Recommendation: "Open the destination site directly instead of following the link.",
	},
	"url_length": {
		Impact:         "Very long URLs are used to hide the real destination.",
		Recommendation: "Inspect the host part of the URL carefully.",
	},
	"content_login_form": {
		Impact:         "The page collects credentials.",
		Recommendation: "Only sign in after confirming the domain and certificate belong to the service.",
	},
	"content_brand": {
		Impact:         "The page references a brand it may not belong to.",
		Recommendation: "Visit the brand's site by typing its address yourself.",
	},
	"content_hidden": {
		Impact:         "Hidden frames or elements can load content the user never sees.",
		Recommendation: "Avoid interacting with the page.",
	},
	"content_quality": {
		Impact:         "Urgent wording and misspellings are typical of phishing pages.",
		Recommendation: "Treat urgent requests for action or account verification with suspicion.",
	},
	"api_domain_age": {
		Impact:         "Recently registered domains are frequently used for phishing campaigns.",
		Recommendation: "Be cautious with sites whose domain is only weeks or months old.",
	},
	"api_safe_browsing": {
		Impact:         "The URL is listed as a known threat.",
		Recommendation: "Leave the page immediately.",
	},
	"api_dnsbl": {
		Impact:         "The domain appears on a DNS blocklist.",
		Recommendation: "Leave the page unless you trust the operator.",
	},
	"api_network": {
		Impact:         "The host resolves to a reserved or blocked network.",
		Recommendation: "Verify why a public site resolves to this address.",
	},
	"api_ssl": {
		Impact:         "The TLS certificate is missing, invalid, expiring or revoked.",
		Recommendation: "Do not submit sensitive data until the certificate problem is resolved.",
	},
	"ml_prediction": {
		Impact:         "The statistical model considers the page similar to known phishing pages.",
		Recommendation: "Review the other findings before trusting the page.",
	},
}

// GetFindingInfo returns the guidance for a check identifier.
func GetFindingInfo(check string) FindingInfo {
	if info, ok := findingInfoMapping[check]; ok {
		return info
	}
	return FindingInfo{
		Impact:         "Unknown check.",
		Recommendation: "Review the finding manually.",
	}
}
