package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/worldlines/backend/internal/domain"
	"github.com/worldlines/backend/pkg/logger"
)

// RecordExposure validates the mapping result and appends the exposure
// record for the classification. At most one record may exist per
// classification; a second call is rejected with ErrInvariantViolation.
// A result with no entries is stored with its skip reason so the
// "considered but empty" state stays queryable.
func (s *Store) RecordExposure(ctx context.Context, classificationID string, entries []domain.ExposureEntry, skipReason string) (*domain.ExposureRecord, error) {
	if err := domain.ValidateExposures(entries, skipReason); err != nil {
		return nil, err
	}

	if _, err := s.ClassificationByID(ctx, classificationID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("exposure references missing classification %s: %w", classificationID, domain.ErrInvariantViolation)
		}
		return nil, err
	}

	existing, err := s.ExposureByClassification(ctx, classificationID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("classification %s already has exposure record %s: %w",
			classificationID, existing.ID, domain.ErrInvariantViolation)
	}

	if entries == nil {
		entries = []domain.ExposureEntry{}
	}
	record := domain.ExposureRecord{
		ID:               uuid.New().String(),
		ClassificationID: classificationID,
		Exposures:        entries,
		SkipReason:       skipReason,
		CreatedAt:        time.Now().UTC(),
	}

	exposuresJSON, err := json.Marshal(record.Exposures)
	if err != nil {
		return nil, fmt.Errorf("marshal exposures: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO exposure_records (id, classification_id, exposures, skip_reason, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		record.ID,
		record.ClassificationID,
		string(exposuresJSON),
		nullable(record.SkipReason),
		formatTime(record.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert exposure record: %w", err)
	}

	logger.Info("Exposure record stored",
		zap.String("exposure_record_id", record.ID),
		zap.String("classification_id", classificationID),
		zap.Int("exposures", len(record.Exposures)),
		zap.String("skip_reason", skipReason),
	)

	return &record, nil
}

// ExposureByClassification returns the record for the classification or
// domain.ErrNotFound.
func (s *Store) ExposureByClassification(ctx context.Context, classificationID string) (*domain.ExposureRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, classification_id, exposures, skip_reason, created_at
		FROM exposure_records WHERE classification_id = ?`, classificationID)
	return scanExposureRecord(row)
}

func scanExposureRecord(row *sql.Row) (*domain.ExposureRecord, error) {
	var (
		record        domain.ExposureRecord
		exposuresJSON string
		skipReason    sql.NullString
		createdAt     string
	)
	err := row.Scan(&record.ID, &record.ClassificationID, &exposuresJSON, &skipReason, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan exposure record: %w", err)
	}
	if err := json.Unmarshal([]byte(exposuresJSON), &record.Exposures); err != nil {
		return nil, fmt.Errorf("unmarshal exposures: %w", err)
	}
	record.SkipReason = skipReason.String
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &record, nil
}

// LinkCandidate is an earlier item whose exposure record shares a
// ticker with a newly mapped one.
type LinkCandidate struct {
	ItemID     string
	Ticker     string
	ChangeType domain.ChangeType
}

// LinkCandidates finds distinct earlier items whose newest exposure
// overlaps any of the given tickers, excluding the item being linked
// from. Results are newest first, capped by limit.
func (s *Store) LinkCandidates(ctx context.Context, tickers []string, excludeItemID string, limit int) ([]LinkCandidate, error) {
	if len(tickers) == 0 || limit <= 0 {
		return nil, nil
	}

	tickersJSON, err := json.Marshal(tickers)
	if err != nil {
		return nil, fmt.Errorf("marshal tickers: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, json_extract(je.value, '$.ticker') AS ticker, c.change_type, MAX(c.created_at) AS latest
		FROM exposure_records er
		JOIN classifications c ON c.id = er.classification_id
		JOIN items i ON i.id = c.item_id
		JOIN json_each(er.exposures) je
		WHERE i.id <> ?
		  AND json_extract(je.value, '$.ticker') IN (SELECT value FROM json_each(?))
		GROUP BY i.id
		ORDER BY latest DESC
		LIMIT ?`,
		excludeItemID, string(tickersJSON), limit)
	if err != nil {
		return nil, fmt.Errorf("query link candidates: %w", err)
	}
	defer rows.Close()

	var candidates []LinkCandidate
	for rows.Next() {
		var (
			c         LinkCandidate
			createdAt string
		)
		if err := rows.Scan(&c.ItemID, &c.Ticker, (*string)(&c.ChangeType), &createdAt); err != nil {
			return nil, fmt.Errorf("scan link candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate link candidates: %w", err)
	}
	return candidates, nil
}
