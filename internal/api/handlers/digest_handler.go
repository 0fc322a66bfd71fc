package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	rediscache "github.com/worldlines/backend/internal/cache/redis"
	"github.com/worldlines/backend/internal/digest"
	"github.com/worldlines/backend/internal/domain"
	"github.com/worldlines/backend/internal/metrics"
	"github.com/worldlines/backend/internal/query"
	"github.com/worldlines/backend/pkg/logger"
)

type DigestHandler struct {
	composer *digest.Composer
	engine   *query.Engine
	cache    *rediscache.Client
	cacheTTL time.Duration
}

// NewDigestHandler wires the read-only digest and stats endpoints.
// cache may be nil; every request then recomputes.
func NewDigestHandler(composer *digest.Composer, engine *query.Engine, cache *rediscache.Client, cacheTTL time.Duration) *DigestHandler {
	return &DigestHandler{
		composer: composer,
		engine:   engine,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Get composes the digest for one calendar day (UTC). Defaults to
// today.
func (h *DigestHandler) Get(c *fiber.Ctx) error {
	date := c.Query("date", time.Now().UTC().Format("2006-01-02"))

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return errorJSON(c, domain.Invalid("date", "date must be YYYY-MM-DD"))
	}

	if h.cache != nil {
		var cached digest.Data
		hit, err := h.cache.GetDigest(c.Context(), date, &cached)
		if err != nil {
			logger.Warn("Digest cache read failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("digest").Inc()
			return c.JSON(cached)
		}
		metrics.CacheMisses.WithLabelValues("digest").Inc()
	}

	since := day.UTC()
	until := since.Add(24 * time.Hour)

	data, err := h.composer.Compose(c.Context(), date, since, until)
	if err != nil {
		logger.Error("Digest composition failed", zap.String("date", date), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compose digest",
		})
	}

	if h.cache != nil {
		if err := h.cache.SetDigest(c.Context(), date, data, h.cacheTTL); err != nil {
			logger.Warn("Digest cache write failed", zap.Error(err))
		}
	}

	return c.JSON(data)
}

// Stats serves the aggregate counts snapshot.
func (h *DigestHandler) Stats(c *fiber.Ctx) error {
	if h.cache != nil {
		var cached query.Stats
		hit, err := h.cache.GetStats(c.Context(), &cached)
		if err != nil {
			logger.Warn("Stats cache read failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("stats").Inc()
			return c.JSON(cached)
		}
		metrics.CacheMisses.WithLabelValues("stats").Inc()
	}

	stats, err := h.engine.Stats(c.Context())
	if err != nil {
		logger.Error("Stats query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query stats",
		})
	}

	if h.cache != nil {
		if err := h.cache.SetStats(c.Context(), stats, h.cacheTTL); err != nil {
			logger.Warn("Stats cache write failed", zap.Error(err))
		}
	}

	return c.JSON(stats)
}
