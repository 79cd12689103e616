package pipeline

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/phishguard/internal/fetcher"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/nao1215/phishguard/internal/reputation"
)

// Analysis is the state shared by the steps of one run.
type Analysis struct {
	// URL is the normalized target.
	URL *url.URL

	// Page is the fetched page, nil when fetching was skipped or failed.
	Page *fetcher.Page

	// Document is the parsed page.
	Document *goquery.Document

	// FetchErr records why the page is missing.
	FetchErr error

	URLFindings     []model.Finding
	ContentFindings []model.Finding
	Reputation      reputation.Result

	// Vector is the assembled feature vector.
	Vector model.FeatureVector

	Breakdown model.ScoreBreakdown
	Report    *model.Report

	// PerformedSteps lists the executed steps in order.
	PerformedSteps []string

	// Err is the last step error.
	Err error

	// Cancelled is set when the context ended between steps.
	Cancelled bool
}

// NewAnalysis creates the state for u.
func NewAnalysis(u *url.URL) *Analysis {
	return &Analysis{URL: u}
}

// Target returns the URL for logging.
func (a *Analysis) Target() string {
	if a.URL == nil {
		return ""
	}
	return a.URL.Redacted()
}
