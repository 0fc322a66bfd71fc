package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldlines/backend/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })
	return store
}

func insertTestItem(t *testing.T, store *Store) domain.Item {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	item := domain.Item{
		ID:          uuid.New().String(),
		Title:       "Datacenter buildout accelerates",
		SourceName:  "Reuters",
		SourceType:  domain.SourceNews,
		Timestamp:   now,
		Content:     "Full article body.",
		IngestedAt:  now,
		Fingerprint: uuid.New().String(),
	}
	require.NoError(t, store.InsertItem(context.Background(), item))
	return item
}

func testPayload() ClassificationPayload {
	return ClassificationPayload{
		Dimensions: []domain.DimensionTag{
			{Dimension: domain.DimensionCompute, Relevance: domain.RelevancePrimary},
		},
		ChangeType:  domain.ChangeReinforcing,
		TimeHorizon: domain.HorizonLong,
		Summary:     "Sustained capital deployment into datacenter capacity.",
		Importance:  domain.ImportanceHigh,
		KeyEntities: []string{"Microsoft"},
	}
}

func TestItemRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	item := insertTestItem(t, store)

	got, err := store.ItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Title, got.Title)
	assert.Equal(t, item.Fingerprint, got.Fingerprint)
	assert.True(t, got.Timestamp.Equal(item.Timestamp))

	byFp, err := store.ItemByFingerprint(ctx, item.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, item.ID, byFp.ID)

	_, err = store.ItemByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestItemFingerprintUnique(t *testing.T) {
	store := newTestStore(t)
	item := insertTestItem(t, store)

	dup := item
	dup.ID = uuid.New().String()
	err := store.InsertItem(context.Background(), dup)
	assert.Error(t, err)
}

func TestRecordClassificationAppendsHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	item := insertTestItem(t, store)

	first, err := store.RecordClassification(ctx, item.ID, testPayload(), "v1")
	require.NoError(t, err)
	assert.Equal(t, item.ID, first.ItemID)
	assert.Equal(t, "v1", first.FrameworkVersion)

	payload := testPayload()
	payload.Importance = domain.ImportanceLow
	second, err := store.RecordClassification(ctx, item.ID, payload, "v2")
	require.NoError(t, err)

	history, err := store.ClassificationHistory(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Newest first; the earlier record is untouched.
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
	assert.Equal(t, domain.ImportanceHigh, history[1].Importance)

	latest, err := store.LatestClassification(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestRecordClassificationRejectionStoresNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	item := insertTestItem(t, store)

	payload := testPayload()
	payload.Summary = "A bullish reading of the buildout."
	_, err := store.RecordClassification(ctx, item.ID, payload, "v1")
	require.ErrorIs(t, err, domain.ErrValidationFailed)

	history, err := store.ClassificationHistory(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordClassificationMissingItem(t *testing.T) {
	store := newTestStore(t)

	_, err := store.RecordClassification(context.Background(), "missing", testPayload(), "v1")
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestLatestClassificationEmpty(t *testing.T) {
	store := newTestStore(t)
	item := insertTestItem(t, store)

	_, err := store.LatestClassification(context.Background(), item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testEntry(ticker string) domain.ExposureEntry {
	return domain.ExposureEntry{
		Ticker:               ticker,
		ExposureType:         domain.ExposureDirect,
		BusinessRole:         domain.RoleInfrastructureOperator,
		ExposureStrength:     domain.StrengthCore,
		Confidence:           domain.ConfidenceHigh,
		DimensionsImplicated: []domain.Dimension{domain.DimensionCompute},
		Rationale:            "Operates hyperscale datacenter capacity.",
	}
}

func TestRecordExposureAtMostOne(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	item := insertTestItem(t, store)
	cls, err := store.RecordClassification(ctx, item.ID, testPayload(), "v1")
	require.NoError(t, err)

	record, err := store.RecordExposure(ctx, cls.ID, []domain.ExposureEntry{testEntry("MSFT")}, "")
	require.NoError(t, err)
	require.Len(t, record.Exposures, 1)

	_, err = store.RecordExposure(ctx, cls.ID, []domain.ExposureEntry{testEntry("AMZN")}, "")
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	got, err := store.ExposureByClassification(ctx, cls.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, "MSFT", got.Exposures[0].Ticker)
}

func TestRecordExposureSkipReason(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	item := insertTestItem(t, store)
	cls, err := store.RecordClassification(ctx, item.ID, testPayload(), "v1")
	require.NoError(t, err)

	record, err := store.RecordExposure(ctx, cls.ID, nil, "no listed entities identified")
	require.NoError(t, err)
	assert.Empty(t, record.Exposures)
	assert.Equal(t, "no listed entities identified", record.SkipReason)

	got, err := store.ExposureByClassification(ctx, cls.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Exposures)
	assert.Equal(t, record.SkipReason, got.SkipReason)
}

func TestRecordExposureMissingClassification(t *testing.T) {
	store := newTestStore(t)

	_, err := store.RecordExposure(context.Background(), "missing", []domain.ExposureEntry{testEntry("MSFT")}, "")
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestInsertLinkRejectsSelfLink(t *testing.T) {
	store := newTestStore(t)
	item := insertTestItem(t, store)

	_, err := store.InsertLink(context.Background(), item.ID, item.ID, domain.LinkReinforces, "circular")
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestInsertLinkRejectsMissingItems(t *testing.T) {
	store := newTestStore(t)
	item := insertTestItem(t, store)

	_, err := store.InsertLink(context.Background(), item.ID, "missing", domain.LinkExtends, "dangling")
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestInsertLinkRationaleBoundCountsCharacters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := insertTestItem(t, store)
	b := insertTestItem(t, store)

	// 300 multibyte characters exceed 300 bytes but fit the bound.
	_, err := store.InsertLink(ctx, a.ID, b.ID, domain.LinkReinforces, strings.Repeat("é", domain.MaxRationaleChars))
	require.NoError(t, err)

	_, err = store.InsertLink(ctx, b.ID, a.ID, domain.LinkExtends, strings.Repeat("é", domain.MaxRationaleChars+1))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "rationale_length", verr.Rule)
}

func TestLinksForHonorsDirection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := insertTestItem(t, store)
	b := insertTestItem(t, store)

	link, err := store.InsertLink(ctx, a.ID, b.ID, domain.LinkReinforces, "continues the same buildout")
	require.NoError(t, err)

	outgoing, err := store.LinksFor(ctx, a.ID, domain.DirectionOutgoing, nil)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, link.ID, outgoing[0].ID)
	assert.Equal(t, domain.DirectionOutgoing, outgoing[0].Direction)

	incoming, err := store.LinksFor(ctx, a.ID, domain.DirectionIncoming, nil)
	require.NoError(t, err)
	assert.Empty(t, incoming)

	incomingB, err := store.LinksFor(ctx, b.ID, domain.DirectionIncoming, nil)
	require.NoError(t, err)
	require.Len(t, incomingB, 1)
	assert.Equal(t, domain.DirectionIncoming, incomingB[0].Direction)

	both, err := store.LinksFor(ctx, a.ID, domain.DirectionBoth, nil)
	require.NoError(t, err)
	assert.Len(t, both, 1)

	filter := domain.LinkContradicts
	filtered, err := store.LinksFor(ctx, a.ID, domain.DirectionBoth, &filter)
	require.NoError(t, err)
	assert.Empty(t, filtered)
}

func TestLinkExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := insertTestItem(t, store)
	b := insertTestItem(t, store)

	exists, err := store.LinkExists(ctx, a.ID, b.ID, domain.LinkReinforces)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.InsertLink(ctx, a.ID, b.ID, domain.LinkReinforces, "continues the same buildout")
	require.NoError(t, err)

	exists, err = store.LinkExists(ctx, a.ID, b.ID, domain.LinkReinforces)
	require.NoError(t, err)
	assert.True(t, exists)

	// Direction matters.
	exists, err = store.LinkExists(ctx, b.ID, a.ID, domain.LinkReinforces)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLinkCandidatesSharedTicker(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := insertTestItem(t, store)
	olderCls, err := store.RecordClassification(ctx, older.ID, testPayload(), "v1")
	require.NoError(t, err)
	_, err = store.RecordExposure(ctx, olderCls.ID, []domain.ExposureEntry{testEntry("MSFT")}, "")
	require.NoError(t, err)

	unrelated := insertTestItem(t, store)
	unrelatedCls, err := store.RecordClassification(ctx, unrelated.ID, testPayload(), "v1")
	require.NoError(t, err)
	_, err = store.RecordExposure(ctx, unrelatedCls.ID, []domain.ExposureEntry{testEntry("NEE")}, "")
	require.NoError(t, err)

	newer := insertTestItem(t, store)

	candidates, err := store.LinkCandidates(ctx, []string{"MSFT", "TSM"}, newer.ID, 5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, older.ID, candidates[0].ItemID)
	assert.Equal(t, "MSFT", candidates[0].Ticker)
	assert.Equal(t, domain.ChangeReinforcing, candidates[0].ChangeType)

	// The item being linked from is never its own candidate.
	candidates, err = store.LinkCandidates(ctx, []string{"MSFT"}, older.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	none, err := store.LinkCandidates(ctx, nil, newer.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLinkCandidatesOrderedByLatestClassification(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := insertTestItem(t, store)
	firstCls, err := store.RecordClassification(ctx, first.ID, testPayload(), "v1")
	require.NoError(t, err)
	_, err = store.RecordExposure(ctx, firstCls.ID, []domain.ExposureEntry{testEntry("MSFT")}, "")
	require.NoError(t, err)

	second := insertTestItem(t, store)
	secondCls, err := store.RecordClassification(ctx, second.ID, testPayload(), "v1")
	require.NoError(t, err)
	_, err = store.RecordExposure(ctx, secondCls.ID, []domain.ExposureEntry{testEntry("MSFT")}, "")
	require.NoError(t, err)

	// Backdate the first classification so the ordering is unambiguous.
	_, err = store.db.ExecContext(ctx,
		`UPDATE classifications SET created_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC().Add(-time.Hour)), firstCls.ID)
	require.NoError(t, err)

	newest := insertTestItem(t, store)
	candidates, err := store.LinkCandidates(ctx, []string{"MSFT"}, newest.ID, 5)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, second.ID, candidates[0].ItemID)
	assert.Equal(t, first.ID, candidates[1].ItemID)
}

func TestClassificationAttempts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	item := insertTestItem(t, store)

	attempts, err := store.ClassificationAttempts(ctx, item.ID)
	require.NoError(t, err)
	assert.Zero(t, attempts)

	require.NoError(t, store.RecordClassificationError(ctx, item.ID, "model returned prose"))
	require.NoError(t, store.RecordClassificationError(ctx, item.ID, "model returned prose again"))

	attempts, err = store.ClassificationAttempts(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRecordRun(t *testing.T) {
	store := newTestStore(t)

	err := store.RecordRun(context.Background(), "ingest", time.Now().UTC(),
		map[string]any{"admitted": 3, "duplicates": 1}, "")
	require.NoError(t, err)
}

func TestRunsListsNewestFirstWithTypeFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.RecordRun(ctx, "ingest", base,
		map[string]any{"admitted": 3}, ""))
	require.NoError(t, store.RecordRun(ctx, "retry", base.Add(time.Minute),
		map[string]any{"processed": 1}, ""))
	require.NoError(t, store.RecordRun(ctx, "ingest", base.Add(2*time.Minute),
		map[string]any{"admitted": 0}, "source unreachable"))

	runs, total, err := store.Runs(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, runs, 3)
	assert.Equal(t, "ingest", runs[0].RunType)
	assert.Equal(t, "error", runs[0].Status)
	assert.Equal(t, "source unreachable", runs[0].Error)
	assert.Equal(t, float64(3), runs[2].Result["admitted"])

	ingests, total, err := store.Runs(ctx, "ingest", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, ingests, 2)

	// Paging past the end keeps the total.
	empty, total, err := store.Runs(ctx, "", 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, empty)
}
