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

const classificationColumns = `id, item_id, dimensions, change_type, time_horizon, summary, importance, key_entities, created_at, framework_version`

// ClassificationPayload is an unvalidated classification body as
// produced by the classification service or a manual resubmission.
type ClassificationPayload struct {
	Dimensions  []domain.DimensionTag
	ChangeType  domain.ChangeType
	TimeHorizon domain.TimeHorizon
	Summary     string
	Importance  domain.Importance
	KeyEntities []string
}

// RecordClassification validates the payload and appends it as a new
// Classification for the item. Re-analysis is always an independent
// append; nothing is replaced or merged. A validation failure stores
// nothing and leaves the item untouched.
func (s *Store) RecordClassification(ctx context.Context, itemID string, payload ClassificationPayload, frameworkVersion string) (*domain.Classification, error) {
	c := domain.Classification{
		ID:               uuid.New().String(),
		ItemID:           itemID,
		Dimensions:       payload.Dimensions,
		ChangeType:       payload.ChangeType,
		TimeHorizon:      payload.TimeHorizon,
		Summary:          payload.Summary,
		Importance:       payload.Importance,
		KeyEntities:      payload.KeyEntities,
		CreatedAt:        time.Now().UTC(),
		FrameworkVersion: frameworkVersion,
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.ItemByID(ctx, itemID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("classification references missing item %s: %w", itemID, domain.ErrInvariantViolation)
		}
		return nil, err
	}

	dimensionsJSON, err := json.Marshal(c.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("marshal dimensions: %w", err)
	}
	entitiesJSON, err := json.Marshal(c.KeyEntities)
	if err != nil {
		return nil, fmt.Errorf("marshal key entities: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO classifications (`+classificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.ItemID,
		string(dimensionsJSON),
		string(c.ChangeType),
		string(c.TimeHorizon),
		c.Summary,
		string(c.Importance),
		string(entitiesJSON),
		formatTime(c.CreatedAt),
		c.FrameworkVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("insert classification: %w", err)
	}

	logger.Info("Classification recorded",
		zap.String("classification_id", c.ID),
		zap.String("item_id", c.ItemID),
		zap.String("importance", string(c.Importance)),
		zap.String("framework_version", c.FrameworkVersion),
	)

	return &c, nil
}

// ClassificationByID returns the classification or domain.ErrNotFound.
func (s *Store) ClassificationByID(ctx context.Context, id string) (*domain.Classification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+classificationColumns+` FROM classifications WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query classification: %w", err)
	}
	defer rows.Close()

	list, err := scanClassifications(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	return &list[0], nil
}

// ClassificationHistory returns every classification for the item,
// newest first. Within a tied timestamp the later append wins.
func (s *Store) ClassificationHistory(ctx context.Context, itemID string) ([]domain.Classification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+classificationColumns+` FROM classifications
		WHERE item_id = ?
		ORDER BY created_at DESC, rowid DESC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query classification history: %w", err)
	}
	defer rows.Close()

	return scanClassifications(rows)
}

// LatestClassification returns the newest classification for the item
// or domain.ErrNotFound when the item has none.
func (s *Store) LatestClassification(ctx context.Context, itemID string) (*domain.Classification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+classificationColumns+` FROM classifications
		WHERE item_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query latest classification: %w", err)
	}
	defer rows.Close()

	list, err := scanClassifications(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	return &list[0], nil
}

func scanClassifications(rows *sql.Rows) ([]domain.Classification, error) {
	var list []domain.Classification
	for rows.Next() {
		var (
			c              domain.Classification
			dimensionsJSON string
			changeType     string
			timeHorizon    string
			importance     string
			entitiesJSON   string
			createdAt      string
		)
		err := rows.Scan(
			&c.ID,
			&c.ItemID,
			&dimensionsJSON,
			&changeType,
			&timeHorizon,
			&c.Summary,
			&importance,
			&entitiesJSON,
			&createdAt,
			&c.FrameworkVersion,
		)
		if err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		if err := json.Unmarshal([]byte(dimensionsJSON), &c.Dimensions); err != nil {
			return nil, fmt.Errorf("unmarshal dimensions: %w", err)
		}
		if err := json.Unmarshal([]byte(entitiesJSON), &c.KeyEntities); err != nil {
			return nil, fmt.Errorf("unmarshal key entities: %w", err)
		}
		c.ChangeType = domain.ChangeType(changeType)
		c.TimeHorizon = domain.TimeHorizon(timeHorizon)
		c.Importance = domain.Importance(importance)
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classifications: %w", err)
	}
	return list, nil
}
