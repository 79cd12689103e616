package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/model"
)

// Store keeps analysis reports.
type Store interface {
	// Save stores a report. A report without ID gets a new UUID.
	Save(ctx context.Context, report *model.Report) error

	// Get returns the report with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Report, error)

	// Latest returns up to n reports of url, newest first.
	Latest(ctx context.Context, url string, n int) ([]*model.Report, error)

	// History lists report metadata, newest first. An empty url lists
	// every URL; limit <= 0 means no limit.
	History(ctx context.Context, url string, limit int) ([]ReportMetadata, error)

	// URLs summarizes every analyzed URL, most recently analyzed first.
	URLs(ctx context.Context) ([]URLSummary, error)

	// Close releases the connection.
	Close() error
}

// ReportMetadata describes a stored report without its findings.
type ReportMetadata struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	RiskScore int            `json:"riskScore"`
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Summary   map[string]int `json:"summary"`
}

// URLSummary describes the analysis history of one URL.
type URLSummary struct {
	URL       string    `json:"url"`
	Reports   int       `json:"reports"`
	LastScore int       `json:"lastScore"`
	LastScan  time.Time `json:"lastScan"`
}

// Open opens the backend selected by cfg: Postgres when DatabaseURL is set,
// otherwise SQLite at cfg.DatabasePath().
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.DatabaseURL != "" {
		return OpenPostgres(ctx, cfg.DatabaseURL)
	}
	return OpenSQLite(ctx, cfg.DatabasePath(), DefaultSQLiteOptions())
}

// prepare validates a report before it is written and assigns its ID.
func prepare(report *model.Report) (reportJSON, summaryJSON []byte, err error) {
	if report == nil {
		return nil, nil, ErrNilReport
	}
	if report.URL == "" {
		return nil, nil, ErrEmptyURL
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now().UTC()
	}

	reportJSON, err = json.Marshal(report)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize report: %w", err)
	}
	summaryJSON, err = json.Marshal(riskSummary(report))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize risk summary: %w", err)
	}
	return reportJSON, summaryJSON, nil
}

// riskSummary counts findings per severity name.
func riskSummary(report *model.Report) map[string]int {
	counts := report.SeverityCounts()
	summary := make(map[string]int, len(counts))
	for sev, n := range counts {
		summary[sev.String()] = n
	}
	return summary
}

func decodeReport(data []byte) (*model.Report, error) {
	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

func decodeSummary(data []byte) map[string]int {
	summary := make(map[string]int)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &summary); err != nil {
			return make(map[string]int)
		}
	}
	return summary
}
