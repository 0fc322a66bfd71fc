package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/worldlines/backend/internal/domain"
	"github.com/worldlines/backend/pkg/logger"
)

// InsertLink appends a directed temporal link. Self-links and links
// referencing missing items are rejected; existing links are never
// mutated or removed.
func (s *Store) InsertLink(ctx context.Context, sourceItemID, targetItemID string, linkType domain.LinkType, rationale string) (*domain.TemporalLink, error) {
	if sourceItemID == targetItemID {
		return nil, fmt.Errorf("link source and target are the same item %s: %w", sourceItemID, domain.ErrInvariantViolation)
	}
	if !linkType.Valid() {
		return nil, domain.Invalid("link_type", "link_type %q is not in the closed set", linkType)
	}
	if strings.TrimSpace(rationale) == "" {
		return nil, domain.Invalid("rationale_non_empty", "rationale is required")
	}
	if n := utf8.RuneCountInString(rationale); n > domain.MaxRationaleChars {
		return nil, domain.Invalid("rationale_length", "rationale exceeds %d characters (%d)", domain.MaxRationaleChars, n)
	}

	for _, id := range []string{sourceItemID, targetItemID} {
		if _, err := s.ItemByID(ctx, id); err != nil {
			return nil, fmt.Errorf("link references missing item %s: %w", id, domain.ErrInvariantViolation)
		}
	}

	link := domain.TemporalLink{
		ID:           uuid.New().String(),
		SourceItemID: sourceItemID,
		TargetItemID: targetItemID,
		LinkType:     linkType,
		Rationale:    rationale,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO temporal_links (id, source_item_id, target_item_id, link_type, rationale, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		link.ID,
		link.SourceItemID,
		link.TargetItemID,
		string(link.LinkType),
		link.Rationale,
		formatTime(link.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert temporal link: %w", err)
	}

	logger.Info("Temporal link created",
		zap.String("link_id", link.ID),
		zap.String("source_item_id", link.SourceItemID),
		zap.String("target_item_id", link.TargetItemID),
		zap.String("link_type", string(link.LinkType)),
	)

	return &link, nil
}

// LinkExists reports whether a link with the same endpoints and type is
// already recorded.
func (s *Store) LinkExists(ctx context.Context, sourceItemID, targetItemID string, linkType domain.LinkType) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM temporal_links
		WHERE source_item_id = ? AND target_item_id = ? AND link_type = ?`,
		sourceItemID, targetItemID, string(linkType)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check link existence: %w", err)
	}
	return count > 0, nil
}

// LinksFor returns links touching the item in the requested direction,
// newest first. The relation is directional: "outgoing" matches the
// item as source, "incoming" as target, and "both" is the union with
// each link tagged by its direction relative to the queried item.
func (s *Store) LinksFor(ctx context.Context, itemID string, direction domain.LinkDirection, typeFilter *domain.LinkType) ([]domain.DirectedLink, error) {
	if !direction.Valid() {
		return nil, domain.Invalid("direction", "direction %q must be outgoing, incoming, or both", direction)
	}

	var conditions []string
	var args []any
	switch direction {
	case domain.DirectionOutgoing:
		conditions = append(conditions, "source_item_id = ?")
		args = append(args, itemID)
	case domain.DirectionIncoming:
		conditions = append(conditions, "target_item_id = ?")
		args = append(args, itemID)
	case domain.DirectionBoth:
		conditions = append(conditions, "(source_item_id = ? OR target_item_id = ?)")
		args = append(args, itemID, itemID)
	}
	if typeFilter != nil {
		conditions = append(conditions, "link_type = ?")
		args = append(args, string(*typeFilter))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_item_id, target_item_id, link_type, rationale, created_at
		FROM temporal_links
		WHERE `+strings.Join(conditions, " AND ")+`
		ORDER BY created_at DESC, rowid DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query temporal links: %w", err)
	}
	defer rows.Close()

	var links []domain.DirectedLink
	for rows.Next() {
		var (
			link      domain.TemporalLink
			linkType  string
			createdAt string
		)
		err := rows.Scan(&link.ID, &link.SourceItemID, &link.TargetItemID, &linkType, &link.Rationale, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan temporal link: %w", err)
		}
		link.LinkType = domain.LinkType(linkType)
		if link.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}

		dir := domain.DirectionOutgoing
		if link.TargetItemID == itemID {
			dir = domain.DirectionIncoming
		}
		links = append(links, domain.DirectedLink{TemporalLink: link, Direction: dir})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate temporal links: %w", err)
	}
	return links, nil
}
