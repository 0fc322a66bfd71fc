package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/worldlines/backend/internal/domain"
	"github.com/worldlines/backend/internal/metrics"
	"github.com/worldlines/backend/internal/pipeline"
	"github.com/worldlines/backend/internal/query"
	"github.com/worldlines/backend/internal/storage/sqlite"
	"github.com/worldlines/backend/pkg/logger"
)

type ItemsHandler struct {
	pipe   *pipeline.Pipeline
	store  *sqlite.Store
	engine *query.Engine
}

func NewItemsHandler(pipe *pipeline.Pipeline, store *sqlite.Store, engine *query.Engine) *ItemsHandler {
	return &ItemsHandler{
		pipe:   pipe,
		store:  store,
		engine: engine,
	}
}

// Ingest accepts one raw item and runs it through the full pipeline.
// Duplicates are a 200 with status "duplicate", not an error.
func (h *ItemsHandler) Ingest(c *fiber.Ctx) error {
	var raw domain.RawItem
	if err := c.BodyParser(&raw); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	outcome, err := h.pipe.ProcessRaw(c.Context(), raw)
	if err != nil {
		logger.Error("Pipeline storage failure", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process item",
		})
	}
	if outcome.Status == pipeline.StatusFailed {
		return errorJSON(c, outcome.Err)
	}

	status := fiber.StatusOK
	if outcome.Status != pipeline.StatusDuplicate {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(outcome)
}

// IngestBatch accepts a list of raw items and processes them as one
// cycle. Per-item failures are counted, never fatal to the batch.
func (h *ItemsHandler) IngestBatch(c *fiber.Ctx) error {
	var req struct {
		Items []domain.RawItem `json:"items"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "items must be non-empty",
		})
	}

	result, err := h.pipe.ProcessBatch(c.Context(), req.Items)
	if err != nil {
		logger.Error("Batch processing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process batch",
		})
	}
	return c.JSON(result)
}

// List serves the filtered, sorted, paginated item view.
func (h *ItemsHandler) List(c *fiber.Ctx) error {
	filter := query.ItemFilter{
		Sort:    c.Query("sort"),
		Order:   c.Query("order"),
		Page:    c.QueryInt("page", 1),
		PerPage: c.QueryInt("per_page", query.DefaultPerPage),
	}

	for _, raw := range splitQuery(c.Query("dimension")) {
		d := domain.Dimension(raw)
		if !d.Valid() {
			return errorJSON(c, domain.Invalid("dimension", "dimension %q is not in the closed set", raw))
		}
		filter.Dimensions = append(filter.Dimensions, d)
	}
	if raw := c.Query("change_type"); raw != "" {
		ct := domain.ChangeType(raw)
		if !ct.Valid() {
			return errorJSON(c, domain.Invalid("change_type", "change_type %q is not in the closed set", raw))
		}
		filter.ChangeType = &ct
	}
	if raw := c.Query("importance"); raw != "" {
		imp := domain.Importance(raw)
		if !imp.Valid() {
			return errorJSON(c, domain.Invalid("importance", "importance %q is not in the closed set", raw))
		}
		filter.Importance = &imp
	}
	if raw := c.Query("time_horizon"); raw != "" {
		th := domain.TimeHorizon(raw)
		if !th.Valid() {
			return errorJSON(c, domain.Invalid("time_horizon", "time_horizon %q is not in the closed set", raw))
		}
		filter.Horizon = &th
	}
	if raw := c.Query("source_type"); raw != "" {
		st := domain.SourceType(raw)
		if !st.Valid() {
			return errorJSON(c, domain.Invalid("source_type", "source_type %q is not in the closed set", raw))
		}
		filter.SourceType = &st
	}

	var err error
	if filter.From, err = parseDateQuery(c.Query("date_from")); err != nil {
		return errorJSON(c, domain.Invalid("date_from", "date_from must be RFC 3339 or YYYY-MM-DD"))
	}
	if filter.To, err = parseDateQuery(c.Query("date_to")); err != nil {
		return errorJSON(c, domain.Invalid("date_to", "date_to must be RFC 3339 or YYYY-MM-DD"))
	}

	start := time.Now()
	page, err := h.engine.Items(c.Context(), filter)
	metrics.QueryDuration.WithLabelValues("items").Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error("Item query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query items",
		})
	}

	return c.JSON(page)
}

// Get serves one item with its full classification history.
func (h *ItemsHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	item, err := h.store.ItemByID(c.Context(), id)
	if err != nil {
		return errorJSON(c, err)
	}

	history, err := h.store.ClassificationHistory(c.Context(), id)
	if err != nil {
		logger.Error("History query failed", zap.String("item_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query classification history",
		})
	}

	body := fiber.Map{
		"item":            item,
		"classifications": history,
	}
	if len(history) == 0 {
		// Unclassified items expose how many attempts have burned.
		attempts, err := h.store.ClassificationAttempts(c.Context(), id)
		if err == nil {
			body["classification_attempts"] = attempts
		}
	}

	return c.JSON(body)
}

// RetryPending reruns the classify stage for admitted items that have
// no classification yet.
func (h *ItemsHandler) RetryPending(c *fiber.Ctx) error {
	result, err := h.pipe.ProcessPending(c.Context(), c.QueryInt("limit", 50))
	if err != nil {
		logger.Error("Pending retry failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process pending items",
		})
	}
	return c.JSON(result)
}

// Runs serves recorded pipeline executions, newest first, optionally
// filtered by run type.
func (h *ItemsHandler) Runs(c *fiber.Ctx) error {
	pageNum := c.QueryInt("page", 1)
	if pageNum < 1 {
		pageNum = 1
	}
	perPage := c.QueryInt("per_page", 50)
	if perPage < 1 {
		perPage = 50
	}
	if perPage > query.MaxPerPage {
		perPage = query.MaxPerPage
	}

	runs, total, err := h.store.Runs(c.Context(), c.Query("run_type"), pageNum, perPage)
	if err != nil {
		logger.Error("Run query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query pipeline runs",
		})
	}

	return c.JSON(query.Page[sqlite.PipelineRun]{
		Results: runs,
		Total:   total,
		Page:    pageNum,
		PerPage: perPage,
		Pages:   query.Pages(total, perPage),
	})
}

// Links serves the temporal links touching one item, honoring
// direction.
func (h *ItemsHandler) Links(c *fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.store.ItemByID(c.Context(), id); err != nil {
		return errorJSON(c, err)
	}

	direction := domain.LinkDirection(c.Query("direction", string(domain.DirectionBoth)))
	if !direction.Valid() {
		return errorJSON(c, domain.Invalid("direction", "direction %q is not in the closed set", direction))
	}

	var typeFilter *domain.LinkType
	if raw := c.Query("link_type"); raw != "" {
		lt := domain.LinkType(raw)
		if !lt.Valid() {
			return errorJSON(c, domain.Invalid("link_type", "link_type %q is not in the closed set", raw))
		}
		typeFilter = &lt
	}

	links, err := h.store.LinksFor(c.Context(), id, direction, typeFilter)
	if err != nil {
		logger.Error("Link query failed", zap.String("item_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query links",
		})
	}

	return c.JSON(fiber.Map{
		"item_id":   id,
		"direction": direction,
		"links":     links,
	})
}

// Reanalyze appends a fresh classification for an existing item and
// reruns the gate and mapping stages.
func (h *ItemsHandler) Reanalyze(c *fiber.Ctx) error {
	outcome, err := h.pipe.Reanalyze(c.Context(), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	if outcome.Status == pipeline.StatusFailed {
		return errorJSON(c, outcome.Err)
	}
	return c.Status(fiber.StatusCreated).JSON(outcome)
}

// CreateLink records a manual temporal link between two items.
func (h *ItemsHandler) CreateLink(c *fiber.Ctx) error {
	var req struct {
		TargetItemID string `json:"target_item_id"`
		LinkType     string `json:"link_type"`
		Rationale    string `json:"rationale"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	link, err := h.store.InsertLink(c.Context(), c.Params("id"), req.TargetItemID,
		domain.LinkType(req.LinkType), req.Rationale)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(link)
}
