package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/worldlines/backend/internal/domain"
)

// Payload is the classification body produced by the service for one
// item. It is validated before the store accepts it.
type Payload struct {
	Dimensions  []domain.DimensionTag `json:"dimensions"`
	ChangeType  domain.ChangeType     `json:"change_type"`
	TimeHorizon domain.TimeHorizon    `json:"time_horizon"`
	Summary     string                `json:"summary"`
	Importance  domain.Importance     `json:"importance"`
	KeyEntities []string              `json:"key_entities"`
}

// Service is the black-box classification engine. Classify returns
// domain.ErrClassificationUncertain when the engine declines or produces
// a non-conforming result, and domain.ErrUpstreamUnavailable when the
// retry budget is exhausted.
type Service interface {
	Classify(ctx context.Context, item domain.Item) (*Payload, error)
}

// ParseResponse decodes a JSON body from a model response, tolerating
// markdown code fences around the payload.
func ParseResponse(raw string, v any) error {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		var kept []string
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.TrimSpace(strings.Join(kept, "\n"))
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("invalid JSON in response: %w", err)
	}
	return nil
}
