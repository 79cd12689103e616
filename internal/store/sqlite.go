package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nao1215/phishguard/internal/model"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // SQLite driver
)

// timeLayout is fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02 15:04:05.000000000"

// SQLiteOptions configures the SQLite backend.
type SQLiteOptions struct {
	// CreateIfNotExists creates the directory and database file.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for concurrent readers.
	EnableWAL bool
}

// DefaultSQLiteOptions returns the default options.
func DefaultSQLiteOptions() SQLiteOptions {
	return SQLiteOptions{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// SQLiteStore is the SQLite backend.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database file at dbPath and migrates it.
func OpenSQLite(ctx context.Context, dbPath string, opts SQLiteOptions) (*SQLiteStore, error) {
	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := migrate(ctx, db, goose.DialectSQLite3, "sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.dbPath }

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save stores a report.
func (s *SQLiteStore) Save(ctx context.Context, report *model.Report) error {
	reportJSON, summaryJSON, err := prepare(report)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO reports (id, url, risk_score, status, created_at, report_json, risk_summary)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		report.ID,
		report.URL,
		report.RiskScore,
		report.Status,
		report.Timestamp.UTC().Format(timeLayout),
		string(reportJSON),
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Get returns the report with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Report, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM reports WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeReport([]byte(reportJSON))
}

// Latest returns up to n reports of url, newest first.
func (s *SQLiteStore) Latest(ctx context.Context, url string, n int) ([]*model.Report, error) {
	query := `
	SELECT report_json FROM reports
	WHERE url = ?
	ORDER BY created_at DESC, seq DESC
	LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, url, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport([]byte(reportJSON))
		if err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// History lists report metadata, newest first.
func (s *SQLiteStore) History(ctx context.Context, url string, limit int) ([]ReportMetadata, error) {
	query := `
	SELECT id, url, risk_score, status, created_at, risk_summary
	FROM reports
	WHERE 1=1
	`
	args := make([]any, 0, 2)
	if url != "" {
		query += " AND url = ?"
		args = append(args, url)
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var results []ReportMetadata
	for rows.Next() {
		var meta ReportMetadata
		var timestamp string
		var summary sql.NullString
		if err := rows.Scan(&meta.ID, &meta.URL, &meta.RiskScore, &meta.Status, &timestamp, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		meta.Summary = decodeSummary([]byte(summary.String))
		results = append(results, meta)
	}
	return results, rows.Err()
}

// URLs summarizes every analyzed URL.
func (s *SQLiteStore) URLs(ctx context.Context) ([]URLSummary, error) {
	query := `
	SELECT r.url, c.n, r.risk_score, r.created_at
	FROM reports r
	JOIN (
		SELECT url, COUNT(*) AS n, MAX(seq) AS last_seq FROM reports GROUP BY url
	) c ON c.last_seq = r.seq
	ORDER BY r.created_at DESC, r.seq DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	defer rows.Close()

	var results []URLSummary
	for rows.Next() {
		var sum URLSummary
		var timestamp string
		if err := rows.Scan(&sum.URL, &sum.Reports, &sum.LastScore, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		sum.LastScan = parseTimestamp(timestamp)
		results = append(results, sum)
	}
	return results, rows.Err()
}

// timestampFormats are tried in order by parseTimestamp.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
}

// parseTimestamp parses a stored timestamp as UTC, or returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
