package model

import (
	"errors"
	"strings"
)

// Action names the operation requested over the message boundary.
type Action string

const (
	// ActionPredictPhishing scores a caller-supplied feature vector.
	ActionPredictPhishing Action = "predictPhishing"
	// ActionAnalyzeURL fetches and analyzes a URL end to end.
	ActionAnalyzeURL Action = "analyzeUrl"
)

// AnalysisRequest is a message sent by a client.
type AnalysisRequest struct {
	Action   Action    `json:"action"`
	Features []float64 `json:"features,omitempty"`
	URL      string    `json:"url,omitempty"`
	TabID    int       `json:"tabId,omitempty"`
}

// Validate checks that the request names a known action and carries the
// input that action needs. An empty feature list is not an error here: it
// is answered with the "no data" response.
func (r AnalysisRequest) Validate() error {
	switch r.Action {
	case ActionPredictPhishing:
		return nil
	case ActionAnalyzeURL:
		if strings.TrimSpace(r.URL) == "" {
			return &InvalidInputError{Reason: "url is required for analyzeUrl"}
		}
		return nil
	case "":
		return &InvalidInputError{Reason: "action is required"}
	default:
		return &InvalidInputError{Reason: "unknown action " + string(r.Action)}
	}
}

// AnalysisResponse is the reply to an AnalysisRequest.
// A response is always fully populated; failures are reported through Error.
type AnalysisResponse struct {
	Result   Verdict `json:"result"`
	Score    float64 `json:"score"`
	Fallback bool    `json:"fallback,omitempty"`
	Error    string  `json:"error,omitempty"`
	TabID    int     `json:"tabId,omitempty"`
	Report   *Report `json:"report,omitempty"`
}

// ResponseFromBreakdown converts an aggregator result into a response.
func ResponseFromBreakdown(b ScoreBreakdown) AnalysisResponse {
	verdict := b.Verdict
	if verdict == "" {
		verdict = VerdictSafe
	}
	return AnalysisResponse{
		Result:   verdict,
		Score:    b.FinalScore,
		Fallback: b.UsedFallback,
		Error:    b.Error,
	}
}

// ErrorResponse is the safe, zero-score response carrying err.
func ErrorResponse(err error) AnalysisResponse {
	resp := AnalysisResponse{Result: VerdictSafe}
	if err != nil {
		resp.Error = err.Error()
		var inv *InvalidInputError
		if errors.As(err, &inv) {
			resp.Error = inv.Reason
		}
	}
	return resp
}
