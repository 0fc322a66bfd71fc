package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/worldlines/backend/internal/classify"
	"github.com/worldlines/backend/internal/domain"
	"github.com/worldlines/backend/internal/exposure"
	"github.com/worldlines/backend/internal/ingestion"
	"github.com/worldlines/backend/internal/linking"
	"github.com/worldlines/backend/internal/metrics"
	"github.com/worldlines/backend/internal/storage/sqlite"
	"github.com/worldlines/backend/pkg/logger"
)

// Status summarizes what the pipeline did with one raw item.
type Status string

const (
	StatusNew        Status = "new"
	StatusDuplicate  Status = "duplicate"
	StatusClassified Status = "classified"
	StatusMapped     Status = "mapped"
	StatusFailed     Status = "failed"
)

// Outcome reports the pipeline result for one raw item. Err is set on
// StatusFailed and carries the taxonomy error that stopped the item;
// everything recorded before the failure stays recorded.
type Outcome struct {
	Status           Status `json:"status"`
	ItemID           string `json:"item_id,omitempty"`
	ClassificationID string `json:"classification_id,omitempty"`
	ExposureID       string `json:"exposure_id,omitempty"`
	Eligible         bool   `json:"eligible"`
	LinksCreated     int    `json:"links_created"`
	Err              error  `json:"-"`
}

// BatchResult aggregates outcomes across one ingestion cycle.
type BatchResult struct {
	Admitted   int `json:"admitted"`
	Duplicates int `json:"duplicates"`
	Classified int `json:"classified"`
	Mapped     int `json:"mapped"`
	Links      int `json:"links"`
	Failed     int `json:"failed"`
}

// Options carries the version tags and budgets the pipeline stamps
// onto the records it creates.
type Options struct {
	FrameworkVersion string
	MaxAttempts      int
	MaxLinksPerItem  int
}

// Pipeline is the single writer path: admit, classify, gate, map,
// link. Each item is processed independently; a failure on one never
// blocks the rest of a batch.
type Pipeline struct {
	store      *sqlite.Store
	guard      *ingestion.Guard
	classifier classify.Service
	mapper     exposure.Service
	rationales linking.RationaleService
	opts       Options
}

// New wires the pipeline. rationales may be nil; link rationales then
// come from the mechanical fallback.
func New(store *sqlite.Store, classifier classify.Service, mapper exposure.Service, rationales linking.RationaleService, opts Options) *Pipeline {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.MaxLinksPerItem <= 0 {
		opts.MaxLinksPerItem = 5
	}
	return &Pipeline{
		store:      store,
		guard:      ingestion.NewGuard(store),
		classifier: classifier,
		mapper:     mapper,
		rationales: rationales,
		opts:       opts,
	}
}

// ProcessRaw runs one raw item through the full pipeline. The returned
// error is reserved for storage faults; per-item taxonomy failures are
// reported on the Outcome so batch callers can keep going.
func (p *Pipeline) ProcessRaw(ctx context.Context, raw domain.RawItem) (*Outcome, error) {
	admitted, err := p.guard.Admit(ctx, raw)
	if err != nil {
		metrics.AdmissionsTotal.WithLabelValues("rejected").Inc()
		return &Outcome{Status: StatusFailed, Err: err}, nil
	}
	if admitted.Status == ingestion.AdmitDuplicate {
		metrics.AdmissionsTotal.WithLabelValues("duplicate").Inc()
		return &Outcome{Status: StatusDuplicate, ItemID: admitted.ExistingItemID}, nil
	}
	metrics.AdmissionsTotal.WithLabelValues("new").Inc()

	item := admitted.Item
	outcome := &Outcome{Status: StatusNew, ItemID: item.ID}
	return p.runStages(ctx, *item, outcome), nil
}

// ProcessPending retries items that were admitted but never
// classified. Items at the attempt cap are left abandoned; they stay
// in the store and in classification_errors for inspection.
func (p *Pipeline) ProcessPending(ctx context.Context, limit int) (*BatchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	items, err := p.store.UnclassifiedItems(ctx, p.opts.MaxAttempts, limit)
	if err != nil {
		return nil, err
	}

	started := time.Now().UTC()
	result := &BatchResult{}

	for _, item := range items {
		outcome := p.runStages(ctx, item, &Outcome{Status: StatusNew, ItemID: item.ID})
		switch outcome.Status {
		case StatusFailed:
			result.Failed++
			logger.Warn("Pending item failed again",
				zap.String("item_id", item.ID),
				zap.Error(outcome.Err),
			)
		default:
			result.Classified++
			if outcome.ExposureID != "" {
				result.Mapped++
			}
			result.Links += outcome.LinksCreated
		}
	}

	if len(items) > 0 {
		if err := p.store.RecordRun(ctx, "retry", started, map[string]any{
			"classified": result.Classified,
			"mapped":     result.Mapped,
			"links":      result.Links,
			"failed":     result.Failed,
		}, ""); err != nil {
			logger.Error("Failed to record pipeline run", zap.Error(err))
		}
	}

	return result, nil
}

// Reanalyze runs the classify-gate-map stages again for an existing
// item. The new classification is appended; earlier ones stay
// queryable.
func (p *Pipeline) Reanalyze(ctx context.Context, itemID string) (*Outcome, error) {
	item, err := p.store.ItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Status: StatusNew, ItemID: item.ID}
	return p.runStages(ctx, *item, outcome), nil
}

// runStages is the classify-gate-map-link sequence shared by first
// admission and re-analysis.
func (p *Pipeline) runStages(ctx context.Context, item domain.Item, outcome *Outcome) *Outcome {
	cls, err := p.classifyItem(ctx, item)
	if err != nil {
		if recErr := p.store.RecordClassificationError(ctx, item.ID, err.Error()); recErr != nil {
			logger.Error("Failed to record classification error", zap.Error(recErr))
		}
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}
	outcome.Status = StatusClassified
	outcome.ClassificationID = cls.ID

	if !exposure.Eligible(*cls) {
		logger.Debug("Classification below exposure gate",
			zap.String("classification_id", cls.ID),
			zap.String("importance", string(cls.Importance)),
		)
		return outcome
	}
	outcome.Eligible = true

	record, err := p.mapItem(ctx, item, *cls)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}
	outcome.Status = StatusMapped
	outcome.ExposureID = record.ID

	if len(record.Exposures) > 0 {
		created, err := p.discoverLinks(ctx, item, *cls, record.Exposures)
		if err != nil {
			logger.Warn("Link discovery failed",
				zap.String("item_id", item.ID),
				zap.Error(err),
			)
		}
		outcome.LinksCreated = created
	}

	return outcome
}

// ProcessBatch runs every raw item and records the cycle in
// pipeline_runs. Item failures are counted, not propagated.
func (p *Pipeline) ProcessBatch(ctx context.Context, raws []domain.RawItem) (*BatchResult, error) {
	started := time.Now().UTC()
	result := &BatchResult{}

	for _, raw := range raws {
		outcome, err := p.ProcessRaw(ctx, raw)
		if err != nil {
			return nil, err
		}
		switch outcome.Status {
		case StatusDuplicate:
			result.Duplicates++
		case StatusFailed:
			result.Failed++
			logger.Warn("Item failed in batch",
				zap.String("item_id", outcome.ItemID),
				zap.Error(outcome.Err),
			)
		default:
			result.Admitted++
			if outcome.ClassificationID != "" {
				result.Classified++
			}
			if outcome.ExposureID != "" {
				result.Mapped++
			}
			result.Links += outcome.LinksCreated
		}
	}

	runErr := ""
	if err := p.store.RecordRun(ctx, "ingest", started, map[string]any{
		"admitted":   result.Admitted,
		"duplicates": result.Duplicates,
		"classified": result.Classified,
		"mapped":     result.Mapped,
		"links":      result.Links,
		"failed":     result.Failed,
	}, runErr); err != nil {
		logger.Error("Failed to record pipeline run", zap.Error(err))
	}

	logger.Info("Ingestion cycle complete",
		zap.Int("admitted", result.Admitted),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("classified", result.Classified),
		zap.Int("mapped", result.Mapped),
		zap.Int("links", result.Links),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (p *Pipeline) classifyItem(ctx context.Context, item domain.Item) (*domain.Classification, error) {
	start := time.Now()
	payload, err := p.classifier.Classify(ctx, item)
	metrics.ServiceDuration.WithLabelValues("classification").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ClassificationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	cls, err := p.store.RecordClassification(ctx, item.ID, sqlite.ClassificationPayload{
		Dimensions:  payload.Dimensions,
		ChangeType:  payload.ChangeType,
		TimeHorizon: payload.TimeHorizon,
		Summary:     payload.Summary,
		Importance:  payload.Importance,
		KeyEntities: payload.KeyEntities,
	}, p.opts.FrameworkVersion)
	if err != nil {
		metrics.ClassificationsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	metrics.ClassificationsTotal.WithLabelValues("recorded").Inc()
	return cls, nil
}

func (p *Pipeline) mapItem(ctx context.Context, item domain.Item, cls domain.Classification) (*domain.ExposureRecord, error) {
	start := time.Now()
	mapped, err := p.mapper.Map(ctx, item, cls)
	metrics.ServiceDuration.WithLabelValues("exposure").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExposuresTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	record, err := p.store.RecordExposure(ctx, cls.ID, mapped.Exposures, mapped.SkipReason)
	if err != nil {
		metrics.ExposuresTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if mapped.SkipReason != "" {
		metrics.ExposuresTotal.WithLabelValues("skipped").Inc()
	} else {
		metrics.ExposuresTotal.WithLabelValues("mapped").Inc()
	}
	return record, nil
}

// discoverLinks connects the freshly mapped item to earlier items that
// share ticker exposure. Direction is always newer to older; the link
// type follows the newer item's change type.
func (p *Pipeline) discoverLinks(ctx context.Context, item domain.Item, cls domain.Classification, entries []domain.ExposureEntry) (int, error) {
	tickers := make([]string, 0, len(entries))
	for _, e := range entries {
		tickers = append(tickers, e.Ticker)
	}

	candidates, err := p.store.LinkCandidates(ctx, tickers, item.ID, p.opts.MaxLinksPerItem)
	if err != nil {
		return 0, err
	}

	linkType := linking.LinkTypeFor(cls.ChangeType)
	created := 0

	for _, cand := range candidates {
		exists, err := p.store.LinkExists(ctx, item.ID, cand.ItemID, linkType)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		rationale := p.linkRationale(ctx, item, cand, linkType)
		if _, err := p.store.InsertLink(ctx, item.ID, cand.ItemID, linkType, rationale); err != nil {
			if errors.Is(err, domain.ErrInvariantViolation) {
				continue
			}
			return created, err
		}
		created++
		metrics.LinksCreated.Inc()
	}

	return created, nil
}

func (p *Pipeline) linkRationale(ctx context.Context, item domain.Item, cand sqlite.LinkCandidate, linkType domain.LinkType) string {
	shared := []string{cand.Ticker}
	if p.rationales == nil {
		return linking.FallbackRationale(linkType, shared)
	}

	older, err := p.store.ItemByID(ctx, cand.ItemID)
	if err != nil {
		return linking.FallbackRationale(linkType, shared)
	}

	rationale, err := p.rationales.Rationale(ctx, item, *older, linkType, shared)
	if err != nil {
		logger.Debug("Rationale service unavailable, using fallback",
			zap.String("item_id", item.ID),
			zap.Error(err),
		)
		return linking.FallbackRationale(linkType, shared)
	}
	return rationale
}
