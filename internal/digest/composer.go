package digest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Item is one classification prepared for digest display.
type Item struct {
	ItemID           string   `json:"item_id"`
	ClassificationID string   `json:"classification_id"`
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	Dimensions       []string `json:"dimensions"`
	ChangeType       string   `json:"change_type"`
	TimeHorizon      string   `json:"time_horizon"`
	Importance       string   `json:"importance"`
	CanonicalLink    string   `json:"canonical_link,omitempty"`
}

// Data is the aggregated view for one digest window. Breakdown counts
// cover every classification in the window; Items is filtered to
// medium and high importance and capped.
type Data struct {
	Date                   string         `json:"date"`
	TotalAnalyzed          int            `json:"total_analyzed"`
	ItemCount              int            `json:"item_count"`
	DimensionBreakdown     map[string]int `json:"dimension_breakdown"`
	ChangeTypeDistribution map[string]int `json:"change_type_distribution"`
	Items                  []Item         `json:"items"`
}

// Composer reads classifications within a date window and aggregates
// them. It never writes.
type Composer struct {
	db       *sql.DB
	maxItems int
}

func NewComposer(db *sql.DB, maxItems int) *Composer {
	if maxItems <= 0 {
		maxItems = 20
	}
	return &Composer{db: db, maxItems: maxItems}
}

// Compose aggregates the window [since, until). The date label is the
// day the digest covers, formatted YYYY-MM-DD.
func (c *Composer) Compose(ctx context.Context, date string, since, until time.Time) (*Data, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT c.id, c.item_id, c.dimensions, c.change_type, c.time_horizon,
		       c.summary, c.importance, i.title, i.canonical_link
		FROM classifications c
		JOIN items i ON i.id = c.item_id
		WHERE c.created_at >= ? AND c.created_at < ?
		ORDER BY
			CASE c.importance WHEN 'high' THEN 0 WHEN 'medium' THEN 1 WHEN 'low' THEN 2 END,
			c.created_at DESC`,
		since.UTC().Format(time.RFC3339), until.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("query digest window: %w", err)
	}
	defer rows.Close()

	data := &Data{
		Date:                   date,
		DimensionBreakdown:     map[string]int{},
		ChangeTypeDistribution: map[string]int{},
		Items:                  []Item{},
	}

	for rows.Next() {
		var (
			di            Item
			dimsJSON      string
			canonicalLink sql.NullString
		)
		if err := rows.Scan(
			&di.ClassificationID, &di.ItemID, &dimsJSON, &di.ChangeType,
			&di.TimeHorizon, &di.Summary, &di.Importance, &di.Title,
			&canonicalLink,
		); err != nil {
			return nil, fmt.Errorf("scan digest row: %w", err)
		}
		di.CanonicalLink = canonicalLink.String

		var tags []struct {
			Dimension string `json:"dimension"`
		}
		if err := json.Unmarshal([]byte(dimsJSON), &tags); err != nil {
			return nil, fmt.Errorf("decode dimensions: %w", err)
		}
		for _, t := range tags {
			di.Dimensions = append(di.Dimensions, t.Dimension)
			data.DimensionBreakdown[t.Dimension]++
		}
		data.ChangeTypeDistribution[di.ChangeType]++
		data.TotalAnalyzed++

		if len(data.Items) < c.maxItems && (di.Importance == "high" || di.Importance == "medium") {
			data.Items = append(data.Items, di)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate digest rows: %w", err)
	}

	data.ItemCount = len(data.Items)
	return data, nil
}
