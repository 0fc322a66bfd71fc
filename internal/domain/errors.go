package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidationFailed marks a payload that violates a closed-set or
	// bound constraint. The record is rejected locally; the owning entity
	// is retained for a later attempt.
	ErrValidationFailed = errors.New("validation_failed")

	// ErrClassificationUncertain marks an upstream classification response
	// that declined, or failed to produce a conforming classification.
	ErrClassificationUncertain = errors.New("classification_uncertain")

	// ErrUpstreamUnavailable marks an external service call whose retry
	// budget is exhausted.
	ErrUpstreamUnavailable = errors.New("upstream_unavailable")

	// ErrInvariantViolation marks a write the store must refuse: a second
	// exposure record for a classification, a self-referencing link, a
	// reference to a missing row.
	ErrInvariantViolation = errors.New("invariant_violation")

	// ErrNotFound marks a lookup for a row that does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError carries the specific rule a rejected payload violated.
// It matches ErrValidationFailed under errors.Is.
type ValidationError struct {
	Rule   string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation_failed: %s", e.Rule)
	}
	return fmt.Sprintf("validation_failed: %s: %s", e.Rule, e.Detail)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Invalid builds a ValidationError for the given rule.
func Invalid(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}
