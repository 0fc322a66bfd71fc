package domain

import (
	"strings"
	"unicode/utf8"
)

// Validate checks a Classification payload against the closed sets and
// bounds enforced at the store boundary. The returned error is a
// *ValidationError naming the violated rule.
func (c Classification) Validate() error {
	if len(c.Dimensions) == 0 {
		return Invalid("dimensions_non_empty", "at least one dimension is required")
	}
	hasPrimary := false
	for _, d := range c.Dimensions {
		if !d.Dimension.Valid() {
			return Invalid("dimension", "dimension %q is not in the closed set", d.Dimension)
		}
		if !d.Relevance.Valid() {
			return Invalid("relevance", "relevance %q must be primary or secondary", d.Relevance)
		}
		if d.Relevance == RelevancePrimary {
			hasPrimary = true
		}
	}
	if !hasPrimary {
		return Invalid("primary_relevance_required", "at least one dimension must have primary relevance")
	}
	if !c.ChangeType.Valid() {
		return Invalid("change_type", "change_type %q is not in the closed set", c.ChangeType)
	}
	if !c.TimeHorizon.Valid() {
		return Invalid("time_horizon", "time_horizon %q is not in the closed set", c.TimeHorizon)
	}
	if !c.Importance.Valid() {
		return Invalid("importance", "importance %q is not in the closed set", c.Importance)
	}
	if strings.TrimSpace(c.Summary) == "" {
		return Invalid("summary_non_empty", "summary is required")
	}
	if n := utf8.RuneCountInString(c.Summary); n > MaxSummaryChars {
		return Invalid("summary_length", "summary exceeds %d characters (%d)", MaxSummaryChars, n)
	}
	if term := ForbiddenTerm(c.Summary); term != "" {
		return Invalid("summary_forbidden_term", "summary contains forbidden term %q", term)
	}
	if len(c.KeyEntities) == 0 {
		return Invalid("key_entities_non_empty", "at least one key entity is required")
	}
	return nil
}

// ValidateExposures checks exposure entries and the skip reason against
// the closed sets, bounds, and the mutual-exclusivity rule: a record
// carries entries or a skip reason, never both and never neither.
func ValidateExposures(entries []ExposureEntry, skipReason string) error {
	if len(entries) == 0 && strings.TrimSpace(skipReason) == "" {
		return Invalid("skip_reason_required", "skip_reason is required when exposures is empty")
	}
	if len(entries) > 0 && skipReason != "" {
		return Invalid("skip_reason_exclusive", "skip_reason must be empty when exposures are present")
	}
	for _, e := range entries {
		if strings.TrimSpace(e.Ticker) == "" {
			return Invalid("ticker_required", "ticker must be non-empty")
		}
		if !e.ExposureType.Valid() {
			return Invalid("exposure_type", "exposure_type %q is not in the closed set", e.ExposureType)
		}
		if !e.BusinessRole.Valid() {
			return Invalid("business_role", "business_role %q is not in the closed set", e.BusinessRole)
		}
		if !e.ExposureStrength.Valid() {
			return Invalid("exposure_strength", "exposure_strength %q is not in the closed set", e.ExposureStrength)
		}
		if !e.Confidence.Valid() {
			return Invalid("confidence", "confidence %q is not in the closed set", e.Confidence)
		}
		if len(e.DimensionsImplicated) == 0 {
			return Invalid("dimensions_implicated_non_empty", "at least one implicated dimension is required")
		}
		for _, d := range e.DimensionsImplicated {
			if !d.Valid() {
				return Invalid("dimensions_implicated", "dimension %q is not in the closed set", d)
			}
		}
		if strings.TrimSpace(e.Rationale) == "" {
			return Invalid("rationale_non_empty", "rationale is required")
		}
		if n := utf8.RuneCountInString(e.Rationale); n > MaxRationaleChars {
			return Invalid("rationale_length", "rationale exceeds %d characters (%d)", MaxRationaleChars, n)
		}
		if term := ForbiddenTerm(e.Rationale); term != "" {
			return Invalid("rationale_forbidden_term", "rationale contains forbidden term %q", term)
		}
	}
	return nil
}
