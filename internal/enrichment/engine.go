package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bomlens/backend/internal/bom"
	"github.com/bomlens/backend/internal/metrics"
	"github.com/bomlens/backend/internal/vector/milvus"
	"github.com/bomlens/backend/pkg/logger"
	"github.com/bomlens/backend/pkg/retry"
	"github.com/bomlens/backend/pkg/utils"
)

// Embedder turns a search key into a query vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Index is the external known-component index. An empty result is valid.
type Index interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]milvus.ComponentMatch, error)
}

// Estimator is the AI fallback for components the index cannot resolve.
type Estimator interface {
	EstimateComponent(ctx context.Context, component bom.Component) (*bom.ComponentEstimate, error)
}

// EmbeddingCache is optional; a nil cache disables it.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, keyHash string) ([]float32, bool)
	SetEmbedding(ctx context.Context, keyHash string, embedding []float32)
}

type Options struct {
	// Concurrency bounds parallel per-component work to respect external
	// service rate limits.
	Concurrency int
	// MatchThreshold is the minimum similarity for accepting an index match;
	// below it the engine falls back to AI estimation rather than silently
	// substituting the wrong physical part.
	MatchThreshold float64
	SearchTopK     int
	RetryDelay     time.Duration
	CallTimeout    time.Duration
}

type Engine struct {
	embedder  Embedder
	index     Index
	estimator Estimator
	cache     EmbeddingCache
	opts      Options
}

func NewEngine(embedder Embedder, index Index, estimator Estimator, cache EmbeddingCache, opts Options) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 6
	}
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = 0.75
	}
	if opts.SearchTopK <= 0 {
		opts.SearchTopK = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}

	return &Engine{
		embedder:  embedder,
		index:     index,
		estimator: estimator,
		cache:     cache,
		opts:      opts,
	}
}

type slotResult struct {
	component   bom.Component
	diagnostics []string
}

// EnrichAll enriches every component over a bounded worker pool. Workers
// write into index-addressed slots, so the output preserves extraction order.
// Per-component failures are absorbed into diagnostics; the only error
// returned is caller-initiated cancellation.
func (e *Engine) EnrichAll(ctx context.Context, bill bom.BillOfMaterials) (bom.BillOfMaterials, []string, error) {
	results := make([]slotResult, len(bill))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	for i, component := range bill {
		i, component := i, component
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			enriched, diags := e.Enrich(gctx, component)
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = slotResult{component: enriched, diagnostics: diags}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	enriched := make(bom.BillOfMaterials, len(results))
	var diagnostics []string
	for i, res := range results {
		enriched[i] = res.component
		diagnostics = append(diagnostics, res.diagnostics...)
	}

	return enriched, diagnostics, nil
}

// Enrich resolves one component's weight and material breakdown: verified
// index match first, AI estimation as fallback. It returns a new component
// value; the input is never mutated. WeightTotalKg is always recomputed here
// regardless of what upstream provided.
func (e *Engine) Enrich(ctx context.Context, component bom.Component) (bom.Component, []string) {
	enriched := component
	var diagnostics []string

	match, err := e.lookup(ctx, component)
	if err != nil {
		diagnostics = append(diagnostics,
			fmt.Sprintf("component %q: index lookup failed: %v", component.Name, err))
	}

	switch {
	case match != nil:
		enriched.DataSource = bom.SourceDatabaseMatch
		enriched.WeightPerUnitKg = match.WeightKg
		enriched.RawMaterials = normalizePercentages(match.RawMaterials)
		enriched.DatabaseMatch = &bom.MatchInfo{
			PartNumber: match.PartNumber,
			Name:       match.Name,
			PriceUSD:   match.PriceUSD,
			MatchScore: match.Score,
		}
		metrics.EnrichmentSource.WithLabelValues(string(bom.SourceDatabaseMatch)).Inc()

		// A verified match can still lack weight or material data; the
		// estimator fills the gaps without overriding matched values.
		if enriched.WeightPerUnitKg <= 0 || len(enriched.RawMaterials) == 0 {
			if estimate, estErr := e.estimate(ctx, component); estErr == nil {
				if enriched.WeightPerUnitKg <= 0 {
					enriched.WeightPerUnitKg = estimate.WeightKg
					enriched.WeightReasoning = estimate.WeightReasoning
				}
				if len(enriched.RawMaterials) == 0 {
					enriched.RawMaterials = normalizePercentages(estimate.RawMaterials)
				}
			} else {
				diagnostics = append(diagnostics,
					fmt.Sprintf("component %q: gap-fill estimation failed: %v", component.Name, estErr))
			}
		}

	default:
		estimate, estErr := e.estimate(ctx, component)
		if estErr != nil {
			diagnostics = append(diagnostics,
				fmt.Sprintf("component %q: AI estimation failed: %v", component.Name, estErr))
			metrics.EnrichmentFailures.Inc()

			// Both paths failed: degrade this one component to
			// zero-confidence values and let its siblings proceed.
			enriched.DataSource = bom.SourceAIEstimate
			enriched.WeightPerUnitKg = 0
			enriched.WeightTotalKg = 0
			enriched.RawMaterials = map[string]float64{}
			return enriched, diagnostics
		}

		enriched.DataSource = bom.SourceAIEstimate
		enriched.WeightPerUnitKg = estimate.WeightKg
		enriched.WeightReasoning = estimate.WeightReasoning
		enriched.RawMaterials = normalizePercentages(estimate.RawMaterials)
		metrics.EnrichmentSource.WithLabelValues(string(bom.SourceAIEstimate)).Inc()
	}

	// The engine is the single source of truth for the derived total;
	// upstream-provided totals are never trusted.
	enriched.WeightTotalKg = enriched.WeightPerUnitKg * float64(enriched.Quantity)

	return enriched, diagnostics
}

// lookup queries the index and returns the best match only if it clears the
// acceptance threshold. A nil match with nil error means "no confident
// match"; errors mean the index path itself failed.
func (e *Engine) lookup(ctx context.Context, component bom.Component) (*milvus.ComponentMatch, error) {
	key := searchKey(component)
	if key == "" {
		return nil, nil
	}

	embedding, err := e.embed(ctx, key)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()

	matches, err := retry.DoWithResult(callCtx, e.retryOnce(), func() ([]milvus.ComponentMatch, error) {
		return e.index.Search(callCtx, embedding, e.opts.SearchTopK)
	})
	if err != nil {
		metrics.VectorSearchHits.WithLabelValues("error").Inc()
		return nil, err
	}

	if len(matches) == 0 || matches[0].Score < e.opts.MatchThreshold {
		metrics.VectorSearchHits.WithLabelValues("miss").Inc()
		logger.Debug("No confident index match",
			zap.String("component", component.Name),
			zap.Int("results", len(matches)),
		)
		return nil, nil
	}

	metrics.VectorSearchHits.WithLabelValues("hit").Inc()
	best := matches[0]
	return &best, nil
}

func (e *Engine) embed(ctx context.Context, key string) ([]float32, error) {
	keyHash := utils.CacheKey(key)
	if e.cache != nil {
		if embedding, ok := e.cache.GetEmbedding(ctx, keyHash); ok {
			return embedding, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()

	embedding, err := retry.DoWithResult(callCtx, e.retryOnce(), func() ([]float32, error) {
		return e.embedder.GenerateEmbedding(callCtx, key)
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.SetEmbedding(ctx, keyHash, embedding)
	}

	return embedding, nil
}

func (e *Engine) estimate(ctx context.Context, component bom.Component) (*bom.ComponentEstimate, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()

	return retry.DoWithResult(callCtx, e.retryOnce(), func() (*bom.ComponentEstimate, error) {
		return e.estimator.EstimateComponent(callCtx, component)
	})
}

func (e *Engine) retryOnce() retry.Config {
	cfg := retry.Once(e.opts.RetryDelay)
	cfg.Logger = logger.Named("enrichment")
	return cfg
}

func searchKey(component bom.Component) string {
	if component.SearchTerm != "" {
		return component.SearchTerm
	}

	parts := make([]string, 0, 3)
	for _, part := range []string{component.Name, component.Material, component.Dimensions} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// normalizePercentages rescales a breakdown whose sum drifted away from 100,
// which estimation models occasionally produce.
func normalizePercentages(materials map[string]float64) map[string]float64 {
	if len(materials) == 0 {
		return nil
	}

	var sum float64
	for _, pct := range materials {
		sum += pct
	}
	if sum <= 0 {
		return nil
	}

	out := make(map[string]float64, len(materials))
	if sum > 99.5 && sum < 100.5 {
		for name, pct := range materials {
			out[name] = pct
		}
		return out
	}

	for name, pct := range materials {
		out[name] = pct / sum * 100
	}
	return out
}
