package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/worldlines/backend/internal/domain"
)

const itemColumns = `id, title, source_name, source_type, timestamp, content, canonical_link, ingested_at, fingerprint`

// InsertItem appends a new item. Items are immutable; there is no
// update path. A fingerprint collision surfaces as an error rather than
// an upsert so the dedup guard's lookup-then-insert stays honest.
func (s *Store) InsertItem(ctx context.Context, item domain.Item) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Title,
		item.SourceName,
		string(item.SourceType),
		formatTime(item.Timestamp),
		item.Content,
		nullable(item.CanonicalLink),
		formatTime(item.IngestedAt),
		item.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// ItemByID returns the item or domain.ErrNotFound.
func (s *Store) ItemByID(ctx context.Context, id string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItem(row)
}

// ItemByFingerprint returns the item with the given fingerprint or
// domain.ErrNotFound.
func (s *Store) ItemByFingerprint(ctx context.Context, fingerprint string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE fingerprint = ?`, fingerprint)
	return scanItem(row)
}

// UnclassifiedItems returns items without any classification whose
// recorded attempt count is still below maxAttempts, oldest first.
// The pipeline retries these on its next cycle.
func (s *Store) UnclassifiedItems(ctx context.Context, maxAttempts, limit int) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items i
		WHERE NOT EXISTS (SELECT 1 FROM classifications c WHERE c.item_id = i.id)
		  AND COALESCE((SELECT attempt_count FROM classification_errors e WHERE e.item_id = i.id), 0) < ?
		ORDER BY i.ingested_at ASC, i.rowid ASC
		LIMIT ?`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query unclassified items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var (
			item          domain.Item
			sourceType    string
			timestamp     string
			canonicalLink sql.NullString
			ingestedAt    string
		)
		if err := rows.Scan(
			&item.ID,
			&item.Title,
			&item.SourceName,
			&sourceType,
			&timestamp,
			&item.Content,
			&canonicalLink,
			&ingestedAt,
			&item.Fingerprint,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.SourceType = domain.SourceType(sourceType)
		item.CanonicalLink = canonicalLink.String
		if item.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, err
		}
		if item.IngestedAt, err = parseTime(ingestedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func scanItem(row *sql.Row) (*domain.Item, error) {
	var (
		item          domain.Item
		sourceType    string
		timestamp     string
		canonicalLink sql.NullString
		ingestedAt    string
	)
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.SourceName,
		&sourceType,
		&timestamp,
		&item.Content,
		&canonicalLink,
		&ingestedAt,
		&item.Fingerprint,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}

	item.SourceType = domain.SourceType(sourceType)
	item.CanonicalLink = canonicalLink.String
	if item.Timestamp, err = parseTime(timestamp); err != nil {
		return nil, err
	}
	if item.IngestedAt, err = parseTime(ingestedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
