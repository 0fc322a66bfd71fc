package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/worldlines/backend/internal/domain"
)

// errorStatus maps the domain error taxonomy onto HTTP statuses.
// Validation failures are the client's problem, invariant violations
// are conflicts, upstream outages are 502s.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidationFailed):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInvariantViolation):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrClassificationUncertain):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	body := fiber.Map{"error": err.Error()}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body["code"] = "validation_failed"
		body["rule"] = verr.Rule
	}

	return c.Status(status).JSON(body)
}

func splitQuery(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDateQuery accepts RFC 3339 timestamps or bare dates. Bare
// dates resolve to midnight UTC, which keeps date_to exclusive.
func parseDateQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
