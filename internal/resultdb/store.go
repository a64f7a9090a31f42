// Package resultdb persists analysis runs in DuckDB so results across
// datasets and splice types can be queried together.
package resultdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding runs, results and skips.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id VARCHAR PRIMARY KEY,
			dataset VARCHAR,
			splice_type VARCHAR,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			events BIGINT,
			results BIGINT,
			skips BIGINT,
			failed BIGINT,
			missing_genes BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			run_id VARCHAR,
			dataset VARCHAR,
			splice_type VARCHAR,
			event_id VARCHAR,
			gene_id VARCHAR,
			transcript_id VARCHAR,
			exon_start BIGINT,
			exon_end BIGINT,
			ref_len_aa BIGINT,
			alt_len_aa BIGINT,
			truncation_aa BIGINT,
			disrupted BOOLEAN,
			likely_nmd BOOLEAN,
			direction VARCHAR,
			inc_level_difference DOUBLE,
			ptc_position BIGINT,
			last_junction BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS skips (
			run_id VARCHAR,
			dataset VARCHAR,
			splice_type VARCHAR,
			event_id VARCHAR,
			gene_id VARCHAR,
			transcript_id VARCHAR,
			exon_start BIGINT,
			exon_end BIGINT,
			reason VARCHAR,
			overlapping_exons BIGINT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
