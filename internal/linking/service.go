package linking

import (
	"context"
	"fmt"
	"strings"

	"github.com/worldlines/backend/internal/domain"
)

// RationaleService produces the short explanation stored on a temporal
// link between two classified items.
type RationaleService interface {
	Rationale(ctx context.Context, newer, older domain.Item, linkType domain.LinkType, sharedTickers []string) (string, error)
}

// LinkTypeFor derives the relation a newer item has to an older item
// it shares exposure with, from the newer item's change type.
// Supersession is a judgement call, never inferred mechanically.
func LinkTypeFor(changeType domain.ChangeType) domain.LinkType {
	switch changeType {
	case domain.ChangeReinforcing:
		return domain.LinkReinforces
	case domain.ChangeFriction:
		return domain.LinkContradicts
	default:
		return domain.LinkExtends
	}
}

// FallbackRationale is used when the rationale service is unavailable,
// so link discovery never blocks on an upstream outage.
func FallbackRationale(linkType domain.LinkType, sharedTickers []string) string {
	if len(sharedTickers) == 0 {
		return fmt.Sprintf("%s an earlier item with overlapping structural exposure", verbFor(linkType))
	}
	return fmt.Sprintf("%s an earlier item sharing structural exposure to %s", verbFor(linkType), strings.Join(sharedTickers, ", "))
}

func verbFor(lt domain.LinkType) string {
	switch lt {
	case domain.LinkReinforces:
		return "Reinforces"
	case domain.LinkContradicts:
		return "Contradicts"
	case domain.LinkSupersedes:
		return "Supersedes"
	default:
		return "Extends"
	}
}
