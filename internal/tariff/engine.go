package tariff

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/bomlens/backend/internal/bom"
	"github.com/bomlens/backend/internal/llm"
	"github.com/bomlens/backend/internal/metrics"
	"github.com/bomlens/backend/pkg/logger"
)

const (
	ConfidenceStandard = "standard"
	ConfidenceLow      = "low"
)

// Advisor is the external reasoning capability: it contributes the HS
// classification and advisory text. All duty arithmetic stays in this engine.
type Advisor interface {
	GenerateTariffAdvisory(ctx context.Context, req llm.TariffAdvisoryRequest) (*llm.TariffAdvisory, error)
}

type Options struct {
	// FallbackUnitValueUSD values a kilogram of unrecognized material when
	// deriving a product value without a declared one.
	FallbackUnitValueUSD float64
}

type Engine struct {
	advisor Advisor
	opts    Options
}

func NewEngine(advisor Advisor, opts Options) *Engine {
	if opts.FallbackUnitValueUSD <= 0 {
		opts.FallbackUnitValueUSD = 5.0
	}
	return &Engine{advisor: advisor, opts: opts}
}

// Estimate classifies the aggregate product and computes a deterministic duty
// estimate. When the reasoning capability is unavailable it degrades to the
// rule-table-only estimate flagged with low confidence instead of failing the
// run; the only returned error is caller-initiated cancellation.
func (e *Engine) Estimate(
	ctx context.Context,
	bill bom.BillOfMaterials,
	composition bom.Composition,
	summary bom.WeightSummary,
	route bom.TradeRoute,
	declaredValueUSD *float64,
) (*bom.TariffEstimate, []string, error) {
	estimate := RuleEstimate(composition, summary, route, declaredValueUSD, e.opts)

	var diagnostics []string

	advisory, err := e.advisor.GenerateTariffAdvisory(ctx, llm.TariffAdvisoryRequest{
		Components:    bill,
		Composition:   composition,
		TotalWeightKg: summary.TotalWeightKg,
		Origin:        route.Origin,
		Destination:   route.Destination,
	})
	switch {
	case err == nil:
		estimate.Confidence = ConfidenceStandard
		estimate.HSCodeClassification = advisory.Classification
		estimate.Insights = advisory.Insights
		estimate.ComplianceReqs = advisory.ComplianceReqs
		if len(advisory.Disclaimers) > 0 {
			estimate.Disclaimers = advisory.Disclaimers
		}
	case ctx.Err() != nil:
		return nil, nil, ctx.Err()
	default:
		diagnostics = append(diagnostics, fmt.Sprintf("tariff reasoning degraded to rule tables: %v", err))
		metrics.TariffDegraded.Inc()
		logger.Warn("Tariff reasoning unavailable, using rule tables only", zap.Error(err))
	}

	logger.Info("Tariff estimated",
		zap.String("hs_code", estimate.HSCodeClassification.PrimaryHSCode),
		zap.Float64("effective_rate", estimate.TariffRates.EffectiveTotalRatePercent),
		zap.Float64("total_duty_usd", estimate.EstimatedDuties.TotalDutyUSD),
		zap.String("confidence", estimate.Confidence),
	)

	return estimate, diagnostics, nil
}

// RuleEstimate is the deterministic rule-table-only estimate: rule-based
// classification, rate resolution, valuation, duty arithmetic, and material
// breakdown with no external calls. It is both the degraded mode of the
// engine and the basis of the canned demo report.
func RuleEstimate(
	composition bom.Composition,
	summary bom.WeightSummary,
	route bom.TradeRoute,
	declaredValueUSD *float64,
	opts Options,
) *bom.TariffEstimate {
	if opts.FallbackUnitValueUSD <= 0 {
		opts.FallbackUnitValueUSD = 5.0
	}

	rates := resolveRates(composition, route)

	return &bom.TariffEstimate{
		Confidence:           ConfidenceLow,
		HSCodeClassification: fallbackClassification(composition),
		TariffRates:          rates,
		EstimatedDuties:      computeDuties(composition, summary, declaredValueUSD, rates, opts),
		MaterialBreakdown:    materialBreakdown(composition),
		ComplianceReqs:       genericCompliance,
		Insights: bom.Insights{
			Recommendation: "Estimate produced from rule tables only; verify classification and rates with a customs broker before import",
		},
		Disclaimers: genericDisclaimers,
	}
}

// resolveRates derives the base duty rate as the weight-weighted average of
// the per-material indicative rates, then layers route-dependent additional
// duties on top. effective == base + sum of applying surcharges, exactly.
func resolveRates(composition bom.Composition, route bom.TradeRoute) bom.TariffRates {
	var base float64
	for _, material := range composition.RankedMaterials() {
		base += (composition[material] / 100) * rateFor(material).RatePercent
	}
	base = round2(base)

	extras := additionalDuties(route)
	effective := base
	for _, duty := range extras {
		if duty.Applies {
			effective += duty.RatePercent
		}
	}

	return bom.TariffRates{
		BaseDutyRatePercent:       base,
		AdditionalDuties:          extras,
		EffectiveTotalRatePercent: round2(effective),
	}
}

// computeDuties applies the duty arithmetic invariants: total duty is the
// product value times the effective rate, rounded to cents; per-kg duty is
// zero when weight is unresolved.
func computeDuties(
	composition bom.Composition,
	summary bom.WeightSummary,
	declaredValueUSD *float64,
	rates bom.TariffRates,
	opts Options,
) bom.EstimatedDuties {
	var value float64
	if declaredValueUSD != nil && *declaredValueUSD > 0 {
		value = *declaredValueUSD
	} else {
		value = estimateValue(composition, summary.TotalWeightKg, opts)
	}
	value = roundCents(value)

	totalDuty := roundCents(value * rates.EffectiveTotalRatePercent / 100)
	baseDuty := roundCents(value * rates.BaseDutyRatePercent / 100)

	var perKg float64
	if summary.TotalWeightKg > 0 {
		perKg = roundCents(totalDuty / summary.TotalWeightKg)
	}

	return bom.EstimatedDuties{
		ProductValueUSD:     value,
		BaseDutyUSD:         baseDuty,
		AdditionalDutiesUSD: roundCents(totalDuty - baseDuty),
		TotalDutyUSD:        totalDuty,
		DutyPerKgUSD:        perKg,
	}
}

// estimateValue prices the product from material unit values when no value is
// declared: downstream duty math always needs a number.
func estimateValue(composition bom.Composition, totalWeightKg float64, opts Options) float64 {
	if totalWeightKg <= 0 || len(composition) == 0 {
		return 0
	}

	var value float64
	for _, material := range composition.RankedMaterials() {
		mass := (composition[material] / 100) * totalWeightKg
		unitValue := rateFor(material).UnitValueUSD
		if unitValue <= 0 {
			unitValue = opts.FallbackUnitValueUSD
		}
		value += mass * unitValue
	}
	return value
}

// materialBreakdown mirrors the aggregate composition one-to-one so the
// per-material view always reconciles with the aggregate percentages.
func materialBreakdown(composition bom.Composition) []bom.MaterialDuty {
	ranked := composition.RankedMaterials()
	breakdown := make([]bom.MaterialDuty, 0, len(ranked))
	for _, material := range ranked {
		rate := rateFor(material)
		breakdown = append(breakdown, bom.MaterialDuty{
			Material:            material,
			PercentageOfProduct: composition[material],
			HSChapter:           rate.HSChapter,
			MaterialDutyRate:    rate.RatePercent,
			Notes:               rate.Notes,
		})
	}
	return breakdown
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
