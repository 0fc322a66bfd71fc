package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AdmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldlines_admissions_total",
			Help: "Total admission decisions",
		},
		[]string{"status"},
	)

	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldlines_classifications_total",
			Help: "Total classification outcomes",
		},
		[]string{"status"},
	)

	ExposuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldlines_exposures_total",
			Help: "Total exposure mapping outcomes",
		},
		[]string{"status"},
	)

	LinksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worldlines_links_created_total",
			Help: "Total temporal links created",
		},
	)

	ServiceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worldlines_service_duration_seconds",
			Help:    "External service call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worldlines_query_duration_seconds",
			Help:    "Query engine call duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"store"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldlines_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldlines_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(AdmissionsTotal)
	prometheus.MustRegister(ClassificationsTotal)
	prometheus.MustRegister(ExposuresTotal)
	prometheus.MustRegister(LinksCreated)
	prometheus.MustRegister(ServiceDuration)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
