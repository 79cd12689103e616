package reputation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/model"
	"golang.org/x/time/rate"
)

// Threat types queried from Safe Browsing.
var safeBrowsingThreatTypes = []string{
	"MALWARE",
	"SOCIAL_ENGINEERING",
	"UNWANTED_SOFTWARE",
	"POTENTIALLY_HARMFUL_APPLICATION",
}

type sbClient struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type sbEntry struct {
	URL string `json:"url"`
}

type sbThreatInfo struct {
	ThreatTypes      []string  `json:"threatTypes"`
	PlatformTypes    []string  `json:"platformTypes"`
	ThreatEntryTypes []string  `json:"threatEntryTypes"`
	ThreatEntries    []sbEntry `json:"threatEntries"`
}

type sbRequest struct {
	Client     sbClient     `json:"client"`
	ThreatInfo sbThreatInfo `json:"threatInfo"`
}

type sbResponse struct {
	Matches []struct {
		ThreatType   string  `json:"threatType"`
		PlatformType string  `json:"platformType"`
		Threat       sbEntry `json:"threat"`
	} `json:"matches"`
}

// SafeBrowsingChecker looks the URL up in Google Safe Browsing (v4 Lookup API).
type SafeBrowsingChecker struct {
	endpoint string
	apiKey   string
	clientID string
	version  string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewSafeBrowsingChecker creates a SafeBrowsingChecker.
func NewSafeBrowsingChecker(cfg config.SafeBrowsingConfig, client *http.Client, limiter *rate.Limiter) *SafeBrowsingChecker {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = config.AppName
	}
	return &SafeBrowsingChecker{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		clientID: clientID,
		version:  "1.0",
		client:   client,
		limiter:  limiter,
	}
}

func (c *SafeBrowsingChecker) Name() string     { return "api_safe_browsing" }
func (c *SafeBrowsingChecker) Title() string    { return "Security Databases" }
func (c *SafeBrowsingChecker) MaxRisk() float64 { return APIMaxRisk }

// Check implements Checker.
func (c *SafeBrowsingChecker) Check(ctx context.Context, u *url.URL) (model.Finding, error) {
	if c.apiKey == "" {
		return model.Finding{}, ErrNotConfigured
	}

	body, err := json.Marshal(sbRequest{
		Client: sbClient{ClientID: c.clientID, ClientVersion: c.version},
		ThreatInfo: sbThreatInfo{
			ThreatTypes:      safeBrowsingThreatTypes,
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []sbEntry{{URL: u.String()}},
		},
	})
	if err != nil {
		return model.Finding{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.Finding{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	var resp sbResponse
	if err := doJSON(ctx, c.client, c.limiter, req, &resp); err != nil {
		return model.Finding{}, err
	}

	if len(resp.Matches) == 0 {
		return model.NewFinding(c.Name(), model.CategoryAPI, model.SeveritySafe, 0, APIMaxRisk, c.Title(),
			"This URL is not found on major security blacklists."), nil
	}

	seen := make(map[string]bool)
	var threats []string
	for _, m := range resp.Matches {
		if m.ThreatType != "" && !seen[m.ThreatType] {
			seen[m.ThreatType] = true
			threats = append(threats, m.ThreatType)
		}
	}
	sort.Strings(threats)
	desc := "This URL appears on security blacklists as potentially malicious."
	if len(threats) > 0 {
		desc += " Threat types: " + strings.Join(threats, ", ") + "."
	}
	return model.NewFinding(c.Name(), model.CategoryAPI, model.SeverityDanger, APIMaxRisk, APIMaxRisk, c.Title(), desc), nil
}
