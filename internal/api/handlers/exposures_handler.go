package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/worldlines/backend/internal/domain"
	"github.com/worldlines/backend/internal/metrics"
	"github.com/worldlines/backend/internal/query"
	"github.com/worldlines/backend/internal/storage/sqlite"
	"github.com/worldlines/backend/pkg/logger"
)

type ExposuresHandler struct {
	store  *sqlite.Store
	engine *query.Engine
}

func NewExposuresHandler(store *sqlite.Store, engine *query.Engine) *ExposuresHandler {
	return &ExposuresHandler{
		store:  store,
		engine: engine,
	}
}

// List serves exposure records filtered by ticker, exposure type, and
// date window.
func (h *ExposuresHandler) List(c *fiber.Ctx) error {
	filter := query.ExposureFilter{
		Ticker:  c.Query("ticker"),
		Sort:    c.Query("sort"),
		Order:   c.Query("order"),
		Page:    c.QueryInt("page", 1),
		PerPage: c.QueryInt("per_page", query.DefaultPerPage),
	}

	if raw := c.Query("exposure_type"); raw != "" {
		et := domain.ExposureType(raw)
		if !et.Valid() {
			return errorJSON(c, domain.Invalid("exposure_type", "exposure_type %q is not in the closed set", raw))
		}
		filter.ExposureType = &et
	}

	var err error
	if filter.From, err = parseDateQuery(c.Query("date_from")); err != nil {
		return errorJSON(c, domain.Invalid("date_from", "date_from must be RFC 3339 or YYYY-MM-DD"))
	}
	if filter.To, err = parseDateQuery(c.Query("date_to")); err != nil {
		return errorJSON(c, domain.Invalid("date_to", "date_to must be RFC 3339 or YYYY-MM-DD"))
	}

	start := time.Now()
	page, err := h.engine.Exposures(c.Context(), filter)
	metrics.QueryDuration.WithLabelValues("exposures").Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error("Exposure query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query exposures",
		})
	}

	return c.JSON(page)
}

// ByClassification serves the single exposure record owned by one
// classification.
func (h *ExposuresHandler) ByClassification(c *fiber.Ctx) error {
	record, err := h.store.ExposureByClassification(c.Context(), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(record)
}
