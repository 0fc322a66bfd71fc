package exposure

import (
	"context"

	"github.com/worldlines/backend/internal/domain"
)

// Result carries a mapper response: either a non-empty set of exposure
// entries, or a non-empty skip reason explaining why none could be
// mapped. The two are mutually exclusive.
type Result struct {
	Exposures  []domain.ExposureEntry `json:"exposures"`
	SkipReason string                 `json:"skipped_reason,omitempty"`
}

// Service maps an eligible classification to structural company
// exposures.
type Service interface {
	Map(ctx context.Context, item domain.Item, c domain.Classification) (*Result, error)
}
