package domain

import "time"

// RawItem is the shape a source adapter hands to the pipeline.
type RawItem struct {
	SourceName  string     `json:"source_name"`
	SourceType  SourceType `json:"source_type"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	URL         string     `json:"url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Item is the canonical stored representation of one piece of ingested
// content. Items are created once by the dedup guard and never mutated.
type Item struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	SourceName    string     `json:"source_name"`
	SourceType    SourceType `json:"source_type"`
	Timestamp     time.Time  `json:"timestamp"`
	Content       string     `json:"content"`
	CanonicalLink string     `json:"canonical_link,omitempty"`
	IngestedAt    time.Time  `json:"ingested_at"`
	Fingerprint   string     `json:"fingerprint"`
}

// DimensionTag pairs a structural dimension with its relevance level.
type DimensionTag struct {
	Dimension Dimension `json:"dimension"`
	Relevance Relevance `json:"relevance"`
}

// Classification is one versioned structural analysis of an Item.
// Multiple classifications may exist per item; each is immutable and a
// later framework version supersedes earlier ones only logically.
type Classification struct {
	ID               string         `json:"id"`
	ItemID           string         `json:"item_id"`
	Dimensions       []DimensionTag `json:"dimensions"`
	ChangeType       ChangeType     `json:"change_type"`
	TimeHorizon      TimeHorizon    `json:"time_horizon"`
	Summary          string         `json:"summary"`
	Importance       Importance     `json:"importance"`
	KeyEntities      []string       `json:"key_entities"`
	CreatedAt        time.Time      `json:"created_at"`
	FrameworkVersion string         `json:"framework_version"`
}

// HasPrimaryDimension reports whether at least one dimension carries
// primary relevance.
func (c Classification) HasPrimaryDimension() bool {
	for _, d := range c.Dimensions {
		if d.Relevance == RelevancePrimary {
			return true
		}
	}
	return false
}

// ExposureEntry is one instrument exposure inside an ExposureRecord.
type ExposureEntry struct {
	Ticker               string           `json:"ticker"`
	ExposureType         ExposureType     `json:"exposure_type"`
	BusinessRole         BusinessRole     `json:"business_role"`
	ExposureStrength     ExposureStrength `json:"exposure_strength"`
	Confidence           Confidence       `json:"confidence"`
	DimensionsImplicated []Dimension      `json:"dimensions_implicated"`
	Rationale            string           `json:"rationale"`
}

// ExposureRecord maps one Classification to zero or more instrument
// exposures. A record with no exposures carries a skip reason instead,
// so the "considered but empty" state stays queryable.
type ExposureRecord struct {
	ID               string          `json:"id"`
	ClassificationID string          `json:"classification_id"`
	Exposures        []ExposureEntry `json:"exposures"`
	SkipReason       string          `json:"skip_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// TemporalLink is a directed, typed relation between two Items.
type TemporalLink struct {
	ID           string    `json:"id"`
	SourceItemID string    `json:"source_item_id"`
	TargetItemID string    `json:"target_item_id"`
	LinkType     LinkType  `json:"link_type"`
	Rationale    string    `json:"rationale"`
	CreatedAt    time.Time `json:"created_at"`
}

// LinkDirection selects which side of the relation a query follows.
type LinkDirection string

const (
	DirectionOutgoing LinkDirection = "outgoing"
	DirectionIncoming LinkDirection = "incoming"
	DirectionBoth     LinkDirection = "both"
)

func (d LinkDirection) Valid() bool {
	return d == DirectionOutgoing || d == DirectionIncoming || d == DirectionBoth
}

// DirectedLink is a TemporalLink tagged with its direction relative to
// the item it was queried for.
type DirectedLink struct {
	TemporalLink
	Direction LinkDirection `json:"direction"`
}
