package exposure

import "github.com/worldlines/backend/internal/domain"

// Eligible reports whether a classification qualifies for exposure
// mapping: importance must be medium or high, and at least one
// dimension must be tagged primary. Low-importance or background-only
// classifications stay in the item record without a mapping pass.
func Eligible(c domain.Classification) bool {
	if c.Importance != domain.ImportanceMedium && c.Importance != domain.ImportanceHigh {
		return false
	}
	return c.HasPrimaryDimension()
}
