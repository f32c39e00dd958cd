package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bomlens/backend/internal/bom"
	"github.com/bomlens/backend/internal/extraction"
	"github.com/bomlens/backend/internal/metrics"
	"github.com/bomlens/backend/pkg/logger"
)

// State identifies where a run currently is. A run moves strictly forward
// through the analysis states and terminates in StateDone or StateFatalFailed.
type State string

const (
	StateExtracting  State = "extracting"
	StateNormalizing State = "normalizing"
	StateEnriching   State = "enriching"
	StateAggregating State = "aggregating"
	StateEstimating  State = "estimating"
	StateDone        State = "done"
	StateFatalFailed State = "fatal_failed"
)

// StageEvent is published as a run crosses stage boundaries so callers can
// stream progress.
type StageEvent struct {
	State  State  `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// ProgressFunc receives stage events. It must not block: handlers that stream
// over a socket should buffer or drop.
type ProgressFunc func(StageEvent)

type Extractor interface {
	Extract(ctx context.Context, image []byte, userContext string) ([]bom.RawComponent, error)
}

type Enricher interface {
	EnrichAll(ctx context.Context, bill bom.BillOfMaterials) (bom.BillOfMaterials, []string, error)
}

type TariffEstimator interface {
	Estimate(
		ctx context.Context,
		bill bom.BillOfMaterials,
		composition bom.Composition,
		summary bom.WeightSummary,
		route bom.TradeRoute,
		declaredValueUSD *float64,
	) (*bom.TariffEstimate, []string, error)
}

// Controller sequences one analysis run end to end. Only the extraction stage
// can fail a run outright; every later stage degrades and records a
// diagnostic instead.
type Controller struct {
	extractor Extractor
	enricher  Enricher
	tariff    TariffEstimator
}

func NewController(extractor Extractor, enricher Enricher, tariff TariffEstimator) *Controller {
	return &Controller{extractor: extractor, enricher: enricher, tariff: tariff}
}

// Request carries everything a single run needs.
type Request struct {
	Image            []byte
	ImageRef         string
	UserContext      string
	Origin           string
	Destination      string
	DeclaredValueUSD *float64
}

// Run executes the full pipeline and returns the assembled report. The report
// is built once at the end of the run and never mutated afterwards.
//
// Errors are returned only for the two fatal conditions: extraction failure
// and cancellation of ctx. onProgress may be nil.
func (c *Controller) Run(ctx context.Context, req Request, onProgress ProgressFunc) (*bom.Report, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := logger.Named("pipeline").With(zap.String("report_id", runID))

	notify := func(state State, detail string) {
		if onProgress != nil {
			onProgress(StageEvent{State: state, Detail: detail})
		}
	}
	fail := func(err error) (*bom.Report, error) {
		metrics.PipelineRunsTotal.WithLabelValues("fatal_failed").Inc()
		notify(StateFatalFailed, err.Error())
		log.Error("Pipeline run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	var diagnostics []string

	// Extraction. This is the only stage whose failure is fatal: with no
	// component list there is nothing to analyze.
	notify(StateExtracting, "analyzing product image")
	stage := time.Now()
	raw, err := c.extractor.Extract(ctx, req.Image, req.UserContext)
	metrics.StageDuration.WithLabelValues("extraction").Observe(time.Since(stage).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return fail(fmt.Errorf("run cancelled during extraction: %w", ctx.Err()))
		}
		if !errors.Is(err, extraction.ErrExtractionFailed) {
			err = fmt.Errorf("%w: %v", extraction.ErrExtractionFailed, err)
		}
		return fail(err)
	}
	metrics.ComponentsExtracted.Observe(float64(len(raw)))

	// Normalization is pure and cannot fail; field-level defects become
	// warnings in the log, never user-facing errors.
	notify(StateNormalizing, fmt.Sprintf("normalizing %d extracted records", len(raw)))
	stage = time.Now()
	bill, warnings := bom.Normalize(raw)
	metrics.StageDuration.WithLabelValues("normalization").Observe(time.Since(stage).Seconds())
	for _, w := range warnings {
		log.Warn("Normalization repaired a record",
			zap.Int("index", w.Index),
			zap.String("field", w.Field),
			zap.String("detail", w.Message),
		)
	}
	if len(bill) == 0 {
		// An all-defective extraction still yields a report: empty bill,
		// empty composition, degraded tariff. Normalization never fails a run.
		diagnostics = append(diagnostics, "no usable components after normalization; report reflects an empty bill of materials")
		log.Warn("All extracted records were dropped during normalization", zap.Int("extracted", len(raw)))
	}

	// Enrichment degrades per component; the only error it surfaces is
	// cancellation.
	notify(StateEnriching, fmt.Sprintf("enriching %d components", len(bill)))
	stage = time.Now()
	bill, enrichDiags, err := c.enricher.EnrichAll(ctx, bill)
	metrics.StageDuration.WithLabelValues("enrichment").Observe(time.Since(stage).Seconds())
	if err != nil {
		return fail(fmt.Errorf("run cancelled during enrichment: %w", err))
	}
	diagnostics = append(diagnostics, enrichDiags...)

	notify(StateAggregating, "aggregating material composition")
	stage = time.Now()
	composition, summary := bom.Aggregate(bill)
	metrics.StageDuration.WithLabelValues("aggregation").Observe(time.Since(stage).Seconds())

	route := bom.TradeRoute{Origin: req.Origin, Destination: req.Destination}

	notify(StateEstimating, "estimating tariffs for "+route.Origin+" -> "+route.Destination)
	stage = time.Now()
	estimate, tariffDiags, err := c.tariff.Estimate(ctx, bill, composition, summary, route, req.DeclaredValueUSD)
	metrics.StageDuration.WithLabelValues("tariff").Observe(time.Since(stage).Seconds())
	if err != nil {
		return fail(fmt.Errorf("run cancelled during tariff estimation: %w", err))
	}
	diagnostics = append(diagnostics, tariffDiags...)

	report := &bom.Report{
		Metadata: bom.ReportMetadata{
			ReportID:    runID,
			GeneratedAt: time.Now().UTC(),
			ImageRef:    req.ImageRef,
			UserContext: req.UserContext,
		},
		Components:    bill,
		WeightSummary: summary,
		MaterialComposition: bom.MaterialComposition{
			AggregatePercentages: composition,
			ByComponent:          perComponentMaterials(bill),
		},
		ProcurementSummary: summarizeProcurement(bill, composition),
		TariffEstimation:   estimate,
		TradeRoute:         route,
		Diagnostics:        diagnostics,
	}

	metrics.PipelineRunsTotal.WithLabelValues("done").Inc()
	notify(StateDone, "report ready")
	log.Info("Pipeline run complete",
		zap.Int("components", len(bill)),
		zap.Float64("total_weight_kg", summary.TotalWeightKg),
		zap.Duration("elapsed", time.Since(start)),
	)

	return report, nil
}

func perComponentMaterials(bill bom.BillOfMaterials) []bom.ComponentMaterials {
	byComponent := make([]bom.ComponentMaterials, 0, len(bill))
	for _, c := range bill {
		if len(c.RawMaterials) == 0 {
			continue
		}
		materials := make(map[string]float64, len(c.RawMaterials))
		for name, pct := range c.RawMaterials {
			materials[name] = pct
		}
		byComponent = append(byComponent, bom.ComponentMaterials{Name: c.Name, Materials: materials})
	}
	return byComponent
}

func summarizeProcurement(bill bom.BillOfMaterials, composition bom.Composition) bom.ProcurementSummary {
	summary := bom.ProcurementSummary{
		TotalComponents: len(bill),
		UniqueMaterials: composition.RankedMaterials(),
	}
	for _, c := range bill {
		summary.TotalItems += c.Quantity
		switch c.DataSource {
		case bom.SourceDatabaseMatch:
			summary.ComponentsFromDatabase++
		case bom.SourceAIEstimate:
			summary.ComponentsAIEstimated++
		}
	}
	return summary
}
