package report

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/phishguard/internal/model"
)

// Status labels.
const (
	StatusLikelySafe      = "Likely Safe"
	StatusCaution         = "Exercise Caution"
	StatusPotentialUnsafe = "Potentially Unsafe"
	StatusHighRisk        = "High Risk - Avoid"
	StatusMLPhishing      = "Phishing Detected (ML)"
	StatusIncomplete      = "Analysis Incomplete"
)

// MLOverrideScore is the lowest overall score of a report with a positive
// classifier finding.
const MLOverrideScore = 85

// incompleteScore is the moderate score used when a report cannot be built.
const incompleteScore = 50

// CategoryWeights weights the category scores in the overall score.
type CategoryWeights struct {
	URL     float64
	Content float64
	API     float64
}

// DefaultCategoryWeights returns URL 30%, content 40%, API 30%.
func DefaultCategoryWeights() CategoryWeights {
	return CategoryWeights{URL: 0.3, Content: 0.4, API: 0.3}
}

// Builder assembles reports.
//
// The overall score is the weighted sum of the URL, content and API
// category scores, mapped to a status band by StatusFor. A danger-level
// classifier finding raises the score to at least MLOverrideScore and sets
// StatusMLPhishing.
//
// Design decision: classifier findings are listed first but never counted
// in a category score. The classifier already sees every other signal
// through the feature vector, so counting it again would weigh those
// signals twice.
type Builder struct {
	weights CategoryWeights
	now     func() time.Time
	newID   func() string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// WithIDGenerator replaces the random report ID generator.
func WithIDGenerator(newID func() string) BuilderOption {
	return func(b *Builder) { b.newID = newID }
}

// WithCategoryWeights replaces DefaultCategoryWeights.
func WithCategoryWeights(w CategoryWeights) BuilderOption {
	return func(b *Builder) { b.weights = w }
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		weights: DefaultCategoryWeights(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build creates a report from the findings of each category.
// The input slices are copied and never retained.
func (b *Builder) Build(url string, urlFindings, contentFindings, apiFindings []model.Finding) model.Report {
	return b.BuildWithBreakdown(url, urlFindings, contentFindings, apiFindings, nil)
}

// BuildWithBreakdown is Build with the aggregator output attached.
func (b *Builder) BuildWithBreakdown(url string, urlFindings, contentFindings, apiFindings []model.Finding, breakdown *model.ScoreBreakdown) (r model.Report) {
	r = model.Report{
		ID:        b.newID(),
		URL:       url,
		Timestamp: b.now().UTC(),
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.RiskScore = incompleteScore
			r.Status = StatusIncomplete
			r.CategoryScores = nil
			r.Findings = []model.Finding{model.NewFinding("report", model.CategoryContent, model.SeverityWarning, 0, 0,
				"Error", fmt.Sprintf("Could not generate complete security report: %v", rec))}
		}
	}()

	all := make([]model.Finding, 0, len(urlFindings)+len(contentFindings)+len(apiFindings))
	all = append(all, urlFindings...)
	all = append(all, contentFindings...)
	all = append(all, apiFindings...)

	scores := map[model.Category]int{
		model.CategoryURL:     CategoryScore(urlFindings),
		model.CategoryContent: CategoryScore(contentFindings),
		model.CategoryAPI:     CategoryScore(apiFindings),
	}
	overall := int(math.Round(
		float64(scores[model.CategoryURL])*b.weights.URL +
			float64(scores[model.CategoryContent])*b.weights.Content +
			float64(scores[model.CategoryAPI])*b.weights.API))

	SortFindings(all)

	r.Findings = all
	r.CategoryScores = scores
	r.RiskScore = min(100, max(0, overall))
	r.Status = StatusFor(r.RiskScore)
	if r.HasMLDetection() {
		r.RiskScore = max(r.RiskScore, MLOverrideScore)
		r.Status = StatusMLPhishing
	}
	if breakdown != nil {
		bd := *breakdown
		r.Breakdown = &bd
	}
	return r
}

// CategoryScore returns min(100, round(ΣRiskFactor/ΣMaxRisk*100)).
// Classifier findings are not part of any category score; an empty
// category scores 0.
func CategoryScore(findings []model.Finding) int {
	var risk, maxRisk float64
	for _, f := range findings {
		if f.IsMLResult {
			continue
		}
		risk += f.RiskFactor
		maxRisk += f.MaxRisk
	}
	if maxRisk <= 0 {
		return 0
	}
	return min(100, int(math.Round(risk/maxRisk*100)))
}

// StatusFor maps an overall score to its status band.
func StatusFor(score int) string {
	switch {
	case score < 20:
		return StatusLikelySafe
	case score < 50:
		return StatusCaution
	case score < 70:
		return StatusPotentialUnsafe
	default:
		return StatusHighRisk
	}
}

// SortFindings orders findings in place: classifier findings first, then
// danger, warning and safe. Equal keys keep their relative order.
func SortFindings(findings []model.Finding) {
	slices.SortStableFunc(findings, func(a, b model.Finding) int {
		if a.IsMLResult != b.IsMLResult {
			if a.IsMLResult {
				return -1
			}
			return 1
		}
		return a.Severity.Rank() - b.Severity.Rank()
	})
}

// MLFinding converts a score breakdown into the classifier finding shown
// in reports. ok is false when the classifier did not contribute.
//
// Severity follows the classifier's own score against the phishing and
// suspicious thresholds, compared with strict greater-than. The blended
// verdict in b is ignored: a confident classifier on a page the other
// signals call suspicious still yields a danger finding, and a low
// classifier score never does.
func MLFinding(b model.ScoreBreakdown, phishing, suspicious float64) (f model.Finding, ok bool) {
	if b.UsedFallback || b.Error != "" {
		return model.Finding{}, false
	}

	risk := math.Round(b.MLScore * 100)
	pct := int(risk)
	switch {
	case b.MLScore > phishing:
		f = model.NewFinding("ml_prediction", model.CategoryContent, model.SeverityDanger, risk, 100,
			"Machine Learning Detection",
			fmt.Sprintf("The phishing classifier rates this page as phishing (%d%% confidence).", pct))
	case b.MLScore > suspicious:
		f = model.NewFinding("ml_prediction", model.CategoryContent, model.SeverityWarning, risk, 100,
			"Machine Learning Analysis",
			fmt.Sprintf("The phishing classifier found this page suspicious (%d%% phishing likelihood).", pct))
	default:
		f = model.NewFinding("ml_prediction", model.CategoryContent, model.SeveritySafe, risk, 100,
			"Machine Learning Analysis",
			fmt.Sprintf("The phishing classifier did not flag this page (%d%% phishing likelihood).", pct))
	}
	f.IsMLResult = true
	return f, true
}
