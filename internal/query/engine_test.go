package query

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldlines/backend/internal/domain"
	"github.com/worldlines/backend/internal/storage/sqlite"
)

func newTestEngine(t *testing.T) (*Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })
	return NewEngine(store.DB()), store
}

func seedClassifiedItem(t *testing.T, store *sqlite.Store, sourceType domain.SourceType, importance domain.Importance, dimension domain.Dimension) (domain.Item, *domain.Classification) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	item := domain.Item{
		ID:          uuid.New().String(),
		Title:       fmt.Sprintf("Item %s", uuid.New().String()[:8]),
		SourceName:  "Reuters",
		SourceType:  sourceType,
		Timestamp:   now,
		Content:     "Body.",
		IngestedAt:  now,
		Fingerprint: uuid.New().String(),
	}
	require.NoError(t, store.InsertItem(ctx, item))

	cls, err := store.RecordClassification(ctx, item.ID, sqlite.ClassificationPayload{
		Dimensions: []domain.DimensionTag{
			{Dimension: dimension, Relevance: domain.RelevancePrimary},
		},
		ChangeType:  domain.ChangeReinforcing,
		TimeHorizon: domain.HorizonLong,
		Summary:     "Sustained structural buildout.",
		Importance:  importance,
		KeyEntities: []string{"Microsoft"},
	}, "v1")
	require.NoError(t, err)

	return item, cls
}

func TestItemsPagination(t *testing.T) {
	engine, store := newTestEngine(t)
	for i := 0; i < 5; i++ {
		seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceHigh, domain.DimensionCompute)
	}

	page, err := engine.Items(context.Background(), ItemFilter{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Pages)
	assert.Equal(t, 2, page.PerPage)
	assert.Len(t, page.Results, 2)

	last, err := engine.Items(context.Background(), ItemFilter{Page: 3, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, last.Results, 1)

	// Past-the-end page: empty results, correct total.
	beyond, err := engine.Items(context.Background(), ItemFilter{Page: 9, PerPage: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Results)
	assert.Equal(t, 5, beyond.Total)
	assert.Equal(t, 3, beyond.Pages)
}

func TestItemsPagingClamps(t *testing.T) {
	engine, store := newTestEngine(t)
	seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceHigh, domain.DimensionCompute)

	page, err := engine.Items(context.Background(), ItemFilter{Page: 0, PerPage: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPerPage, page.PerPage)

	page, err = engine.Items(context.Background(), ItemFilter{PerPage: 5000})
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, page.PerPage)
}

func TestItemsFilters(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceHigh, domain.DimensionCompute)
	seedClassifiedItem(t, store, domain.SourceFiling, domain.ImportanceLow, domain.DimensionEnergy)
	seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceMedium, domain.DimensionGovernance)

	high := domain.ImportanceHigh
	page, err := engine.Items(ctx, ItemFilter{Importance: &high})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, domain.ImportanceHigh, page.Results[0].Importance)

	filing := domain.SourceFiling
	page, err = engine.Items(ctx, ItemFilter{SourceType: &filing})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, domain.SourceFiling, page.Results[0].SourceType)

	// Dimension membership is any-of.
	page, err = engine.Items(ctx, ItemFilter{
		Dimensions: []domain.Dimension{domain.DimensionEnergy, domain.DimensionGovernance},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = engine.Items(ctx, ItemFilter{
		Dimensions: []domain.Dimension{domain.DimensionCapital},
	})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestItemsDateWindowHalfOpen(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	_, cls := seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceHigh, domain.DimensionCompute)

	from := cls.CreatedAt.Truncate(time.Second)
	to := from.Add(time.Hour)

	page, err := engine.Items(ctx, ItemFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	// The upper bound is exclusive.
	page, err = engine.Items(ctx, ItemFilter{From: &from, To: &from})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	later := from.Add(time.Hour)
	page, err = engine.Items(ctx, ItemFilter{From: &later})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestItemsImportanceSort(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceLow, domain.DimensionCompute)
	seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceHigh, domain.DimensionCompute)
	seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceMedium, domain.DimensionCompute)

	page, err := engine.Items(ctx, ItemFilter{Sort: "importance", Order: "asc"})
	require.NoError(t, err)
	require.Len(t, page.Results, 3)
	assert.Equal(t, domain.ImportanceHigh, page.Results[0].Importance)
	assert.Equal(t, domain.ImportanceMedium, page.Results[1].Importance)
	assert.Equal(t, domain.ImportanceLow, page.Results[2].Importance)
}

func TestItemsUnknownSortFallsBack(t *testing.T) {
	engine, store := newTestEngine(t)
	seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceHigh, domain.DimensionCompute)

	page, err := engine.Items(context.Background(), ItemFilter{Sort: "content; DROP TABLE items"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestExposuresByTicker(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, clsA := seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceHigh, domain.DimensionCompute)
	_, clsB := seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceHigh, domain.DimensionEnergy)

	entry := domain.ExposureEntry{
		Ticker:               "MSFT",
		ExposureType:         domain.ExposureDirect,
		BusinessRole:         domain.RoleInfrastructureOperator,
		ExposureStrength:     domain.StrengthCore,
		Confidence:           domain.ConfidenceHigh,
		DimensionsImplicated: []domain.Dimension{domain.DimensionCompute},
		Rationale:            "Operates hyperscale datacenter capacity.",
	}
	_, err := store.RecordExposure(ctx, clsA.ID, []domain.ExposureEntry{entry}, "")
	require.NoError(t, err)
	_, err = store.RecordExposure(ctx, clsB.ID, nil, "no listed entities identified")
	require.NoError(t, err)

	page, err := engine.Exposures(ctx, ExposureFilter{Ticker: "MSFT"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, clsA.ID, page.Results[0].ClassificationID)
	assert.Equal(t, "MSFT", page.Results[0].Exposures[0].Ticker)

	page, err = engine.Exposures(ctx, ExposureFilter{Ticker: "NVDA"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	// Unfiltered view includes the skip-reason record.
	page, err = engine.Exposures(ctx, ExposureFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestExposuresSortOrder(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, clsA := seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceHigh, domain.DimensionCompute)
	_, clsB := seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceHigh, domain.DimensionEnergy)

	recA, err := store.RecordExposure(ctx, clsA.ID, nil, "no listed entities identified")
	require.NoError(t, err)
	recB, err := store.RecordExposure(ctx, clsB.ID, nil, "no listed entities identified")
	require.NoError(t, err)

	// Default is newest first.
	page, err := engine.Exposures(ctx, ExposureFilter{})
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.Equal(t, recB.ID, page.Results[0].ID)

	page, err = engine.Exposures(ctx, ExposureFilter{Sort: "created_at", Order: "asc"})
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.Equal(t, recA.ID, page.Results[0].ID)

	// Anything outside the allow list falls back to created_at.
	page, err = engine.Exposures(ctx, ExposureFilter{Sort: "skip_reason; DROP TABLE items"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestStats(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceHigh, domain.DimensionCompute)
	seedClassifiedItem(t, store, domain.SourceNews, domain.ImportanceLow, domain.DimensionCompute)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalItems)
	assert.Equal(t, 2, stats.TotalClassifications)
	assert.Zero(t, stats.TotalExposureRecords)
	assert.Equal(t, 2, stats.DimensionBreakdown[string(domain.DimensionCompute)])
	assert.Equal(t, 2, stats.ChangeTypeDistribution[string(domain.ChangeReinforcing)])
	assert.Equal(t, 1, stats.ImportanceDistribution[string(domain.ImportanceHigh)])
}
