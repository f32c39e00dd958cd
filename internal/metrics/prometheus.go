package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bomlens_pipeline_runs_total",
			Help: "Total number of pipeline runs by terminal outcome",
		},
		[]string{"status"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bomlens_stage_duration_seconds",
			Help:    "Per-stage processing duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	ComponentsExtracted = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bomlens_components_extracted",
			Help:    "Number of components extracted per image",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	EnrichmentSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bomlens_enrichment_source_total",
			Help: "Component enrichment outcomes by data source",
		},
		[]string{"source"},
	)

	EnrichmentFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bomlens_enrichment_failures_total",
			Help: "Components degraded to zero-confidence after both paths failed",
		},
	)

	VectorSearchHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bomlens_vector_search_total",
			Help: "Component index lookups by result",
		},
		[]string{"result"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bomlens_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	TariffDegraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bomlens_tariff_degraded_total",
			Help: "Tariff estimates produced in rule-table-only degraded mode",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bomlens_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bomlens_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	CatalogProductsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bomlens_catalog_products_indexed_total",
			Help: "Known-component catalog entries indexed",
		},
	)
)

func Init() {
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(ComponentsExtracted)
	prometheus.MustRegister(EnrichmentSource)
	prometheus.MustRegister(EnrichmentFailures)
	prometheus.MustRegister(VectorSearchHits)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(TariffDegraded)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CatalogProductsIndexed)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
