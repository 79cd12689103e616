package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/pressly/goose/v3"
)

// PostgresStore is the Postgres backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to databaseURL and migrates the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	// Closing db leaves the pool open.
	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, goose.DialectPostgres, "postgres")
	_ = db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Save stores a report.
func (s *PostgresStore) Save(ctx context.Context, report *model.Report) error {
	reportJSON, summaryJSON, err := prepare(report)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO reports (id, url, risk_score, status, created_at, report_json, risk_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, report.ID, report.URL, report.RiskScore, report.Status, report.Timestamp.UTC(),
		string(reportJSON), string(summaryJSON))
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Get returns the report with the given ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Report, error) {
	var reportJSON []byte
	err := s.pool.QueryRow(ctx, `SELECT report_json FROM reports WHERE id = $1`, id).Scan(&reportJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeReport(reportJSON)
}

// Latest returns up to n reports of url, newest first.
func (s *PostgresStore) Latest(ctx context.Context, url string, n int) ([]*model.Report, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT report_json FROM reports
		WHERE url = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`, url, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		var reportJSON []byte
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// History lists report metadata, newest first.
func (s *PostgresStore) History(ctx context.Context, url string, limit int) ([]ReportMetadata, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, url, risk_score, status, created_at, risk_summary
		FROM reports
		WHERE $1 = '' OR url = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`, url, limitArg)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var results []ReportMetadata
	for rows.Next() {
		var meta ReportMetadata
		var summary []byte
		if err := rows.Scan(&meta.ID, &meta.URL, &meta.RiskScore, &meta.Status, &meta.Timestamp, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = meta.Timestamp.UTC()
		meta.Summary = decodeSummary(summary)
		results = append(results, meta)
	}
	return results, rows.Err()
}

// URLs summarizes every analyzed URL.
func (s *PostgresStore) URLs(ctx context.Context) ([]URLSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.url, c.n, r.risk_score, r.created_at
		FROM reports r
		JOIN (
			SELECT url, COUNT(*) AS n, MAX(seq) AS last_seq FROM reports GROUP BY url
		) c ON c.last_seq = r.seq
		ORDER BY r.created_at DESC, r.seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	defer rows.Close()

	var results []URLSummary
	for rows.Next() {
		var sum URLSummary
		if err := rows.Scan(&sum.URL, &sum.Reports, &sum.LastScore, &sum.LastScan); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		sum.LastScan = sum.LastScan.UTC()
		results = append(results, sum)
	}
	return results, rows.Err()
}
