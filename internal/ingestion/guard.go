package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/worldlines/backend/internal/domain"
	"github.com/worldlines/backend/pkg/logger"
)

// ItemStore is the slice of the item store the guard needs.
type ItemStore interface {
	ItemByFingerprint(ctx context.Context, fingerprint string) (*domain.Item, error)
	InsertItem(ctx context.Context, item domain.Item) error
}

// AdmitStatus is the outcome of an admission attempt.
type AdmitStatus string

const (
	AdmitNew       AdmitStatus = "new"
	AdmitDuplicate AdmitStatus = "duplicate"
)

// AdmitResult reports what Admit decided. Item is set on "new";
// ExistingItemID on "duplicate".
type AdmitResult struct {
	Status         AdmitStatus
	Item           *domain.Item
	ExistingItemID string
}

// Guard decides new-vs-duplicate for incoming raw items and creates the
// canonical Item on a "new" decision. Admission is exact-match only:
// two raw items with the same (title, source name, content) always
// collapse onto one Item, so retrying an admission is side-effect free.
type Guard struct {
	store ItemStore
}

func NewGuard(store ItemStore) *Guard {
	return &Guard{store: store}
}

// Admit validates raw, computes its fingerprint, and either returns the
// already-stored item's ID or persists a new Item. A missing
// published_at resolves to ingestion time. A storage failure leaves no
// partial Item behind; the caller may simply re-admit.
func (g *Guard) Admit(ctx context.Context, raw domain.RawItem) (*AdmitResult, error) {
	if err := validateRaw(raw); err != nil {
		return nil, err
	}

	fingerprint := Fingerprint(raw.Title, raw.SourceName, raw.Content)

	existing, err := g.store.ItemByFingerprint(ctx, fingerprint)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("fingerprint lookup: %w", err)
	}
	if existing != nil {
		logger.Info("Duplicate item admitted",
			zap.String("existing_item_id", existing.ID),
			zap.String("source", raw.SourceName),
		)
		return &AdmitResult{Status: AdmitDuplicate, ExistingItemID: existing.ID}, nil
	}

	now := time.Now().UTC()
	timestamp := now
	if raw.PublishedAt != nil {
		timestamp = raw.PublishedAt.UTC()
	}

	item := domain.Item{
		ID:            uuid.New().String(),
		Title:         raw.Title,
		SourceName:    raw.SourceName,
		SourceType:    raw.SourceType,
		Timestamp:     timestamp,
		Content:       raw.Content,
		CanonicalLink: raw.URL,
		IngestedAt:    now,
		Fingerprint:   fingerprint,
	}

	if err := g.store.InsertItem(ctx, item); err != nil {
		return nil, fmt.Errorf("persist item: %w", err)
	}

	logger.Info("New item admitted",
		zap.String("item_id", item.ID),
		zap.String("source", item.SourceName),
		zap.String("title", item.Title),
	)

	return &AdmitResult{Status: AdmitNew, Item: &item}, nil
}

func validateRaw(raw domain.RawItem) error {
	if strings.TrimSpace(raw.Title) == "" {
		return domain.Invalid("title_required", "title must be non-empty")
	}
	if strings.TrimSpace(raw.SourceName) == "" {
		return domain.Invalid("source_name_required", "source_name must be non-empty")
	}
	if !raw.SourceType.Valid() {
		return domain.Invalid("source_type", "source_type %q is not in the closed set", raw.SourceType)
	}
	if strings.TrimSpace(raw.Content) == "" {
		return domain.Invalid("content_required", "content must be non-empty")
	}
	return nil
}
