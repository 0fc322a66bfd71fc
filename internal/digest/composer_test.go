package digest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldlines/backend/internal/domain"
	"github.com/worldlines/backend/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })
	return store
}

func seed(t *testing.T, store *sqlite.Store, importance domain.Importance, changeType domain.ChangeType) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	item := domain.Item{
		ID:          uuid.New().String(),
		Title:       "Item " + uuid.New().String()[:8],
		SourceName:  "Reuters",
		SourceType:  domain.SourceNews,
		Timestamp:   now,
		Content:     "Body.",
		IngestedAt:  now,
		Fingerprint: uuid.New().String(),
	}
	require.NoError(t, store.InsertItem(ctx, item))

	_, err := store.RecordClassification(ctx, item.ID, sqlite.ClassificationPayload{
		Dimensions: []domain.DimensionTag{
			{Dimension: domain.DimensionCompute, Relevance: domain.RelevancePrimary},
		},
		ChangeType:  changeType,
		TimeHorizon: domain.HorizonLong,
		Summary:     "Sustained structural buildout.",
		Importance:  importance,
		KeyEntities: []string{"Microsoft"},
	}, "v1")
	require.NoError(t, err)
}

func window() (string, time.Time, time.Time) {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	return day.Format("2006-01-02"), day, day.Add(24 * time.Hour)
}

func TestComposeAggregates(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, domain.ImportanceHigh, domain.ChangeReinforcing)
	seed(t, store, domain.ImportanceMedium, domain.ChangeFriction)
	seed(t, store, domain.ImportanceLow, domain.ChangeReinforcing)

	composer := NewComposer(store.DB(), 20)
	date, since, until := window()

	data, err := composer.Compose(context.Background(), date, since, until)
	require.NoError(t, err)

	assert.Equal(t, date, data.Date)
	// Breakdowns cover every classification; the item list drops low
	// importance.
	assert.Equal(t, 3, data.TotalAnalyzed)
	assert.Equal(t, 2, data.ItemCount)
	assert.Len(t, data.Items, 2)
	assert.Equal(t, 3, data.DimensionBreakdown[string(domain.DimensionCompute)])
	assert.Equal(t, 2, data.ChangeTypeDistribution[string(domain.ChangeReinforcing)])
	assert.Equal(t, 1, data.ChangeTypeDistribution[string(domain.ChangeFriction)])

	// High importance sorts ahead of medium.
	assert.Equal(t, string(domain.ImportanceHigh), data.Items[0].Importance)
	assert.Equal(t, string(domain.ImportanceMedium), data.Items[1].Importance)
}

func TestComposeCapsItems(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 4; i++ {
		seed(t, store, domain.ImportanceHigh, domain.ChangeReinforcing)
	}

	composer := NewComposer(store.DB(), 2)
	date, since, until := window()

	data, err := composer.Compose(context.Background(), date, since, until)
	require.NoError(t, err)
	assert.Equal(t, 4, data.TotalAnalyzed)
	assert.Equal(t, 2, data.ItemCount)
}

func TestComposeEmptyWindow(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, domain.ImportanceHigh, domain.ChangeReinforcing)

	composer := NewComposer(store.DB(), 20)
	day := time.Now().UTC().AddDate(0, 0, -7).Truncate(24 * time.Hour)

	data, err := composer.Compose(context.Background(), day.Format("2006-01-02"), day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, data.TotalAnalyzed)
	assert.Zero(t, data.ItemCount)
	assert.Empty(t, data.Items)
}
