package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bomlens/backend/internal/bom"
	"github.com/bomlens/backend/internal/extraction"
	"github.com/bomlens/backend/internal/tariff"
)

type fakeExtractor struct {
	raw []bom.RawComponent
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte, userContext string) ([]bom.RawComponent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}

type fakeEnricher struct {
	diags []string
	err   error
}

func (f *fakeEnricher) EnrichAll(ctx context.Context, bill bom.BillOfMaterials) (bom.BillOfMaterials, []string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	enriched := make(bom.BillOfMaterials, len(bill))
	for i, c := range bill {
		c.DataSource = bom.SourceAIEstimate
		if c.WeightPerUnitKg == 0 {
			c.WeightPerUnitKg = 1.0
		}
		if len(c.RawMaterials) == 0 {
			c.RawMaterials = map[string]float64{"steel": 100}
		}
		c.WeightTotalKg = c.WeightPerUnitKg * float64(c.Quantity)
		enriched[i] = c
	}
	return enriched, f.diags, nil
}

type fakeTariff struct {
	err error
}

func (f *fakeTariff) Estimate(
	ctx context.Context,
	bill bom.BillOfMaterials,
	composition bom.Composition,
	summary bom.WeightSummary,
	route bom.TradeRoute,
	declaredValueUSD *float64,
) (*bom.TariffEstimate, []string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return tariff.RuleEstimate(composition, summary, route, declaredValueUSD, tariff.Options{}), []string{"tariff reasoning degraded to rule tables: test"}, nil
}

func testRequest() Request {
	return Request{
		Image:       []byte{0x89, 0x50, 0x4e, 0x47},
		ImageRef:    "shelf.png",
		UserContext: "metal shelf unit",
		Origin:      "China",
		Destination: "United States",
	}
}

func TestRunProducesOrderedReport(t *testing.T) {
	extractor := &fakeExtractor{raw: []bom.RawComponent{
		{Name: "Frame", Quantity: 2.0, Material: "Steel"},
		{Name: "Shelf Panel", Quantity: 4.0, Material: "Steel"},
	}}
	controller := NewController(extractor, &fakeEnricher{diags: []string{"component \"Frame\": index lookup failed: down"}}, &fakeTariff{})

	var events []State
	report, err := controller.Run(context.Background(), testRequest(), func(e StageEvent) {
		events = append(events, e.State)
	})
	require.NoError(t, err)
	require.NotNil(t, report)

	require.Len(t, report.Components, 2)
	assert.Equal(t, "Frame", report.Components[0].Name)
	assert.Equal(t, "Shelf Panel", report.Components[1].Name)

	assert.NotEmpty(t, report.Metadata.ReportID)
	assert.False(t, report.Metadata.GeneratedAt.IsZero())
	assert.Equal(t, "shelf.png", report.Metadata.ImageRef)
	assert.Equal(t, "China", report.TradeRoute.Origin)

	// Diagnostics from every degraded stage are carried on the report.
	assert.Len(t, report.Diagnostics, 2)

	assert.Equal(t, 2, report.ProcurementSummary.TotalComponents)
	assert.Equal(t, 6, report.ProcurementSummary.TotalItems)
	assert.Equal(t, 2, report.ProcurementSummary.ComponentsAIEstimated)

	require.NotNil(t, report.TariffEstimation)
	assert.InDelta(t, 6.0, report.WeightSummary.TotalWeightKg, 1e-9)

	assert.Equal(t, []State{
		StateExtracting,
		StateNormalizing,
		StateEnriching,
		StateAggregating,
		StateEstimating,
		StateDone,
	}, events)
}

func TestRunExtractionFailureIsFatal(t *testing.T) {
	controller := NewController(
		&fakeExtractor{err: extraction.ErrExtractionFailed},
		&fakeEnricher{},
		&fakeTariff{},
	)

	var last State
	report, err := controller.Run(context.Background(), testRequest(), func(e StageEvent) {
		last = e.State
	})

	assert.Nil(t, report)
	assert.ErrorIs(t, err, extraction.ErrExtractionFailed)
	assert.Equal(t, StateFatalFailed, last)
}

func TestRunEmptyNormalizationYieldsEmptyReport(t *testing.T) {
	// Records missing both name and material are all dropped, but an
	// all-defective extraction is not fatal: the run completes with an
	// empty bill, an empty composition, and a degraded tariff estimate.
	extractor := &fakeExtractor{raw: []bom.RawComponent{{Quantity: 1.0}, {Quantity: 2.0}}}
	controller := NewController(extractor, &fakeEnricher{}, &fakeTariff{})

	var last State
	report, err := controller.Run(context.Background(), testRequest(), func(e StageEvent) {
		last = e.State
	})

	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, StateDone, last)

	assert.Empty(t, report.Components)
	assert.Empty(t, report.MaterialComposition.AggregatePercentages)
	assert.Equal(t, 0.0, report.WeightSummary.TotalWeightKg)
	assert.Equal(t, 0, report.ProcurementSummary.TotalComponents)

	require.NotNil(t, report.TariffEstimation)
	assert.Equal(t, 0.0, report.TariffEstimation.EstimatedDuties.TotalDutyUSD)
	assert.Equal(t, 0.0, report.TariffEstimation.EstimatedDuties.DutyPerKgUSD)

	require.NotEmpty(t, report.Diagnostics)
	assert.Contains(t, report.Diagnostics[0], "no usable components after normalization")
}

func TestRunPropagatesEnrichmentCancellation(t *testing.T) {
	extractor := &fakeExtractor{raw: []bom.RawComponent{{Name: "Frame"}}}
	controller := NewController(extractor, &fakeEnricher{err: context.Canceled}, &fakeTariff{})

	report, err := controller.Run(context.Background(), testRequest(), nil)

	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunPropagatesTariffCancellation(t *testing.T) {
	extractor := &fakeExtractor{raw: []bom.RawComponent{{Name: "Frame"}}}
	controller := NewController(extractor, &fakeEnricher{}, &fakeTariff{err: context.Canceled})

	report, err := controller.Run(context.Background(), testRequest(), nil)

	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDemoReportInvariants(t *testing.T) {
	report := DemoReport()
	require.NotNil(t, report)

	assert.NotEmpty(t, report.Metadata.ReportID)
	assert.NotEmpty(t, report.Components)

	for _, c := range report.Components {
		assert.InDelta(t, c.WeightPerUnitKg*float64(c.Quantity), c.WeightTotalKg, 1e-6, c.Name)
	}

	var sum float64
	for _, pct := range report.MaterialComposition.AggregatePercentages {
		sum += pct
	}
	assert.InDelta(t, 100.0, sum, 0.5)

	est := report.TariffEstimation
	require.NotNil(t, est)
	assert.Equal(t, "standard", est.Confidence)
	assert.Equal(t, "9403.50.9045", est.HSCodeClassification.PrimaryHSCode)

	var surcharge float64
	for _, duty := range est.TariffRates.AdditionalDuties {
		if duty.Applies {
			surcharge += duty.RatePercent
		}
	}
	assert.InDelta(t, est.TariffRates.BaseDutyRatePercent+surcharge, est.TariffRates.EffectiveTotalRatePercent, 0.011)

	duties := est.EstimatedDuties
	expectedTotal := math.Round(duties.ProductValueUSD*est.TariffRates.EffectiveTotalRatePercent) / 100
	assert.InDelta(t, expectedTotal, duties.TotalDutyUSD, 0.02)
	assert.InDelta(t, duties.BaseDutyUSD+duties.AdditionalDutiesUSD, duties.TotalDutyUSD, 1e-9)
	assert.InDelta(t, duties.TotalDutyUSD/report.WeightSummary.TotalWeightKg, duties.DutyPerKgUSD, 0.011)

	assert.NotEmpty(t, est.Disclaimers)
	assert.NotEmpty(t, est.ComplianceReqs)
	assert.Len(t, est.MaterialBreakdown, len(report.MaterialComposition.AggregatePercentages))
}

func TestRunWrapsUnknownExtractionErrors(t *testing.T) {
	controller := NewController(
		&fakeExtractor{err: errors.New("vision timeout")},
		&fakeEnricher{},
		&fakeTariff{},
	)

	_, err := controller.Run(context.Background(), testRequest(), nil)
	assert.ErrorIs(t, err, extraction.ErrExtractionFailed)
}
