package query

import (
	"context"
	"fmt"
)

// Stats is the aggregate snapshot served by the stats endpoint.
type Stats struct {
	TotalItems             int            `json:"total_items"`
	TotalClassifications   int            `json:"total_classifications"`
	TotalExposureRecords   int            `json:"total_exposure_records"`
	TotalLinks             int            `json:"total_links"`
	DimensionBreakdown     map[string]int `json:"dimension_breakdown"`
	ChangeTypeDistribution map[string]int `json:"change_type_distribution"`
	ImportanceDistribution map[string]int `json:"importance_distribution"`
}

// Stats computes aggregate counts across all stores in one
// transaction.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin stats tx: %w", err)
	}
	defer tx.Rollback()

	stats := &Stats{
		DimensionBreakdown:     map[string]int{},
		ChangeTypeDistribution: map[string]int{},
		ImportanceDistribution: map[string]int{},
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM items", &stats.TotalItems},
		{"SELECT COUNT(*) FROM classifications", &stats.TotalClassifications},
		{"SELECT COUNT(*) FROM exposure_records", &stats.TotalExposureRecords},
		{"SELECT COUNT(*) FROM temporal_links", &stats.TotalLinks},
	}
	for _, c := range counts {
		if err := tx.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("count stats: %w", err)
		}
	}

	groups := []struct {
		query string
		dest  map[string]int
	}{
		{
			`SELECT json_extract(value, '$.dimension') AS dim, COUNT(*)
			 FROM classifications, json_each(classifications.dimensions)
			 GROUP BY dim`,
			stats.DimensionBreakdown,
		},
		{
			"SELECT change_type, COUNT(*) FROM classifications GROUP BY change_type",
			stats.ChangeTypeDistribution,
		},
		{
			"SELECT importance, COUNT(*) FROM classifications GROUP BY importance",
			stats.ImportanceDistribution,
		},
	}
	for _, g := range groups {
		rows, err := tx.QueryContext(ctx, g.query)
		if err != nil {
			return nil, fmt.Errorf("group stats: %w", err)
		}
		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan stats row: %w", err)
			}
			g.dest[key] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate stats rows: %w", err)
		}
		rows.Close()
	}

	return stats, nil
}
