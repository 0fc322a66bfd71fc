package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/worldlines/backend/internal/domain"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Sort expressions are allow-listed; anything else falls back to the
// default. The importance CASE ranks high=1 so ascending order yields
// high first.
var itemSortColumns = map[string]string{
	"created_at":  "c.created_at",
	"timestamp":   "i.timestamp",
	"ingested_at": "i.ingested_at",
	"importance":  "CASE c.importance WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 END",
}

// Page is one page of query results with enough metadata for a caller
// to paginate without a second round trip.
type Page[T any] struct {
	Results []T `json:"results"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Pages   int `json:"pages"`
}

// ItemFilter selects classified items. Pointer fields are ignored when
// nil; Dimensions matches any-of. From is inclusive, To exclusive,
// both against the classification timestamp.
type ItemFilter struct {
	Dimensions []domain.Dimension
	ChangeType *domain.ChangeType
	Importance *domain.Importance
	Horizon    *domain.TimeHorizon
	SourceType *domain.SourceType
	From       *time.Time
	To         *time.Time
	Sort       string
	Order      string
	Page       int
	PerPage    int
}

// ClassifiedItem is one item joined with one of its classifications.
// Items re-analyzed under several framework versions appear once per
// classification.
type ClassifiedItem struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	SourceName       string                `json:"source_name"`
	SourceType       domain.SourceType     `json:"source_type"`
	Timestamp        string                `json:"timestamp"`
	CanonicalLink    string                `json:"canonical_link,omitempty"`
	IngestedAt       string                `json:"ingested_at"`
	ClassificationID string                `json:"classification_id"`
	Dimensions       []domain.DimensionTag `json:"dimensions"`
	ChangeType       domain.ChangeType     `json:"change_type"`
	TimeHorizon      domain.TimeHorizon    `json:"time_horizon"`
	Summary          string                `json:"summary"`
	Importance       domain.Importance     `json:"importance"`
	KeyEntities      []string              `json:"key_entities"`
	ClassifiedAt     string                `json:"classified_at"`
	FrameworkVersion string                `json:"framework_version"`
}

var exposureSortColumns = map[string]string{
	"created_at": "er.created_at",
}

// ExposureFilter selects exposure records by the entries they carry.
type ExposureFilter struct {
	Ticker       string
	ExposureType *domain.ExposureType
	From         *time.Time
	To           *time.Time
	Sort         string
	Order        string
	Page         int
	PerPage      int
}

// ExposureHit is one exposure record with its owning classification
// and item identities resolved for the caller.
type ExposureHit struct {
	ID               string                 `json:"id"`
	ClassificationID string                 `json:"classification_id"`
	ItemID           string                 `json:"item_id"`
	ItemTitle        string                 `json:"item_title"`
	Exposures        []domain.ExposureEntry `json:"exposures"`
	SkipReason       string                 `json:"skip_reason,omitempty"`
	CreatedAt        string                 `json:"created_at"`
}

// Engine is the read-only filter/sort/paginate facade over the stores.
// Each call computes total and page contents inside a single
// transaction so the count always matches the snapshot the rows came
// from.
type Engine struct {
	db *sql.DB
}

func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// Items returns classified items matching the filter, one row per
// (item, classification) pair.
func (e *Engine) Items(ctx context.Context, f ItemFilter) (*Page[ClassifiedItem], error) {
	page, perPage := clampPaging(f.Page, f.PerPage)

	base := sq.Select().
		From("items i").
		Join("classifications c ON c.item_id = i.id")

	if len(f.Dimensions) > 0 {
		base = base.Where(dimensionAnyOf(f.Dimensions))
	}
	if f.ChangeType != nil {
		base = base.Where(sq.Eq{"c.change_type": string(*f.ChangeType)})
	}
	if f.Importance != nil {
		base = base.Where(sq.Eq{"c.importance": string(*f.Importance)})
	}
	if f.Horizon != nil {
		base = base.Where(sq.Eq{"c.time_horizon": string(*f.Horizon)})
	}
	if f.SourceType != nil {
		base = base.Where(sq.Eq{"i.source_type": string(*f.SourceType)})
	}
	if f.From != nil {
		base = base.Where(sq.GtOrEq{"c.created_at": f.From.UTC().Format(time.RFC3339)})
	}
	if f.To != nil {
		base = base.Where(sq.Lt{"c.created_at": f.To.UTC().Format(time.RFC3339)})
	}

	sortExpr, ok := itemSortColumns[f.Sort]
	if !ok {
		sortExpr = itemSortColumns["created_at"]
	}
	order := "DESC"
	if f.Order == "asc" {
		order = "ASC"
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin query tx: %w", err)
	}
	defer tx.Rollback()

	total, err := countWithin(ctx, tx, base)
	if err != nil {
		return nil, err
	}

	dataSQL, args, err := base.Columns(
		"i.id", "i.title", "i.source_name", "i.source_type", "i.timestamp",
		"i.canonical_link", "i.ingested_at",
		"c.id", "c.dimensions", "c.change_type", "c.time_horizon",
		"c.summary", "c.importance", "c.key_entities", "c.created_at",
		"c.framework_version",
	).
		OrderBy(sortExpr+" "+order, "c.rowid "+order).
		Limit(uint64(perPage)).
		Offset(uint64((page - 1) * perPage)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item query: %w", err)
	}

	rows, err := tx.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	results := make([]ClassifiedItem, 0, perPage)
	for rows.Next() {
		var (
			ci            ClassifiedItem
			canonicalLink sql.NullString
			dimsJSON      string
			entitiesJSON  string
		)
		if err := rows.Scan(
			&ci.ID, &ci.Title, &ci.SourceName, &ci.SourceType, &ci.Timestamp,
			&canonicalLink, &ci.IngestedAt,
			&ci.ClassificationID, &dimsJSON, &ci.ChangeType, &ci.TimeHorizon,
			&ci.Summary, &ci.Importance, &entitiesJSON, &ci.ClassifiedAt,
			&ci.FrameworkVersion,
		); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		ci.CanonicalLink = canonicalLink.String
		if err := json.Unmarshal([]byte(dimsJSON), &ci.Dimensions); err != nil {
			return nil, fmt.Errorf("decode dimensions: %w", err)
		}
		if err := json.Unmarshal([]byte(entitiesJSON), &ci.KeyEntities); err != nil {
			return nil, fmt.Errorf("decode key entities: %w", err)
		}
		results = append(results, ci)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item rows: %w", err)
	}

	return &Page[ClassifiedItem]{
		Results: results,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   Pages(total, perPage),
	}, nil
}

// Exposures returns exposure records matching the filter, newest
// first unless the sort says otherwise.
func (e *Engine) Exposures(ctx context.Context, f ExposureFilter) (*Page[ExposureHit], error) {
	page, perPage := clampPaging(f.Page, f.PerPage)

	sortExpr, ok := exposureSortColumns[f.Sort]
	if !ok {
		sortExpr = exposureSortColumns["created_at"]
	}
	order := "DESC"
	if f.Order == "asc" {
		order = "ASC"
	}

	base := sq.Select().
		From("exposure_records er").
		Join("classifications c ON c.id = er.classification_id").
		Join("items i ON i.id = c.item_id")

	if f.Ticker != "" {
		base = base.Where(sq.Expr(
			`EXISTS (SELECT 1 FROM json_each(er.exposures)
			 WHERE json_extract(value, '$.ticker') = ?)`, f.Ticker))
	}
	if f.ExposureType != nil {
		base = base.Where(sq.Expr(
			`EXISTS (SELECT 1 FROM json_each(er.exposures)
			 WHERE json_extract(value, '$.exposure_type') = ?)`, string(*f.ExposureType)))
	}
	if f.From != nil {
		base = base.Where(sq.GtOrEq{"er.created_at": f.From.UTC().Format(time.RFC3339)})
	}
	if f.To != nil {
		base = base.Where(sq.Lt{"er.created_at": f.To.UTC().Format(time.RFC3339)})
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin query tx: %w", err)
	}
	defer tx.Rollback()

	total, err := countWithin(ctx, tx, base)
	if err != nil {
		return nil, err
	}

	dataSQL, args, err := base.Columns(
		"er.id", "er.classification_id", "i.id", "i.title",
		"er.exposures", "er.skip_reason", "er.created_at",
	).
		OrderBy(sortExpr+" "+order, "er.rowid "+order).
		Limit(uint64(perPage)).
		Offset(uint64((page - 1) * perPage)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build exposure query: %w", err)
	}

	rows, err := tx.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query exposures: %w", err)
	}
	defer rows.Close()

	results := make([]ExposureHit, 0, perPage)
	for rows.Next() {
		var (
			hit           ExposureHit
			exposuresJSON string
			skipReason    sql.NullString
		)
		if err := rows.Scan(
			&hit.ID, &hit.ClassificationID, &hit.ItemID, &hit.ItemTitle,
			&exposuresJSON, &skipReason, &hit.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan exposure row: %w", err)
		}
		hit.SkipReason = skipReason.String
		if err := json.Unmarshal([]byte(exposuresJSON), &hit.Exposures); err != nil {
			return nil, fmt.Errorf("decode exposures: %w", err)
		}
		results = append(results, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exposure rows: %w", err)
	}

	return &Page[ExposureHit]{
		Results: results,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   Pages(total, perPage),
	}, nil
}

func dimensionAnyOf(dims []domain.Dimension) sq.Sqlizer {
	or := make(sq.Or, 0, len(dims))
	for _, d := range dims {
		or = append(or, sq.Expr(
			`EXISTS (SELECT 1 FROM json_each(c.dimensions)
			 WHERE json_extract(value, '$.dimension') = ?)`, string(d)))
	}
	return or
}

func countWithin(ctx context.Context, tx *sql.Tx, base sq.SelectBuilder) (int, error) {
	countSQL, args, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := tx.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return total, nil
}

func clampPaging(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// Pages is the page count for a total at a given page size, zero when
// there are no rows.
func Pages(total, perPage int) int {
	if total == 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
