// Package store persists analysis reports for history and comparison.
//
// Two backends implement Store:
//   - SQLite (modernc.org/sqlite), the default, a single file in the XDG
//     data directory
//   - Postgres (github.com/jackc/pgx/v5), selected by a database URL
//
// Both schemas are managed by embedded goose migrations that run on Open.
// Reports are stored whole as JSON together with the columns needed to
// list history without decoding every report.
package store
