package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/worldlines/backend/pkg/logger"
)

// Store owns the four append-oriented tables (items, classifications,
// exposure_records, temporal_links) plus the pipeline bookkeeping
// tables. All writes go through the single pipeline writer; readers run
// concurrently against the WAL.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	logger.Info("SQLite store opened", zap.String("path", path))

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for the read-only query engine and
// digest composer. Writers must use Store methods.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id              TEXT PRIMARY KEY,
		title           TEXT NOT NULL,
		source_name     TEXT NOT NULL,
		source_type     TEXT NOT NULL CHECK (source_type IN (
			'news', 'filing', 'transcript', 'report',
			'research', 'government', 'policy', 'industry', 'other'
		)),
		timestamp       TEXT NOT NULL,
		content         TEXT NOT NULL,
		canonical_link  TEXT,
		ingested_at     TEXT NOT NULL,
		fingerprint     TEXT NOT NULL UNIQUE
	);
	CREATE INDEX IF NOT EXISTS idx_items_timestamp ON items(timestamp);
	CREATE INDEX IF NOT EXISTS idx_items_source_type ON items(source_type);
	CREATE INDEX IF NOT EXISTS idx_items_ingested_at ON items(ingested_at);

	CREATE TABLE IF NOT EXISTS classifications (
		id                  TEXT PRIMARY KEY,
		item_id             TEXT NOT NULL REFERENCES items(id),
		dimensions          TEXT NOT NULL,
		change_type         TEXT NOT NULL CHECK (change_type IN (
			'reinforcing', 'friction', 'early_signal', 'neutral'
		)),
		time_horizon        TEXT NOT NULL CHECK (time_horizon IN (
			'short_term', 'medium_term', 'long_term'
		)),
		summary             TEXT NOT NULL,
		importance          TEXT NOT NULL CHECK (importance IN (
			'low', 'medium', 'high'
		)),
		key_entities        TEXT NOT NULL,
		created_at          TEXT NOT NULL,
		framework_version   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_classifications_item_id ON classifications(item_id);
	CREATE INDEX IF NOT EXISTS idx_classifications_change_type ON classifications(change_type);
	CREATE INDEX IF NOT EXISTS idx_classifications_importance ON classifications(importance);
	CREATE INDEX IF NOT EXISTS idx_classifications_created_at ON classifications(created_at);
	CREATE INDEX IF NOT EXISTS idx_classifications_version ON classifications(framework_version);

	CREATE TABLE IF NOT EXISTS exposure_records (
		id                  TEXT PRIMARY KEY,
		classification_id   TEXT NOT NULL UNIQUE REFERENCES classifications(id),
		exposures           TEXT NOT NULL,
		skip_reason         TEXT,
		created_at          TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exposure_records_created_at ON exposure_records(created_at);

	CREATE TABLE IF NOT EXISTS temporal_links (
		id              TEXT PRIMARY KEY,
		source_item_id  TEXT NOT NULL REFERENCES items(id),
		target_item_id  TEXT NOT NULL REFERENCES items(id),
		link_type       TEXT NOT NULL CHECK (link_type IN (
			'reinforces', 'contradicts', 'extends', 'supersedes'
		)),
		rationale       TEXT NOT NULL,
		created_at      TEXT NOT NULL,
		CHECK (source_item_id <> target_item_id)
	);
	CREATE INDEX IF NOT EXISTS idx_temporal_links_source ON temporal_links(source_item_id);
	CREATE INDEX IF NOT EXISTS idx_temporal_links_target ON temporal_links(target_item_id);
	CREATE INDEX IF NOT EXISTS idx_temporal_links_type ON temporal_links(link_type);

	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id          TEXT PRIMARY KEY,
		run_type    TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		status      TEXT NOT NULL,
		result      TEXT NOT NULL,
		error       TEXT
	);

	CREATE TABLE IF NOT EXISTS classification_errors (
		item_id           TEXT PRIMARY KEY REFERENCES items(id),
		attempt_count     INTEGER NOT NULL,
		last_error        TEXT NOT NULL,
		last_attempted_at TEXT NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// Timestamps persist as RFC 3339 UTC strings so lexicographic and
// chronological order agree and half-open range filters compare cleanly.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
