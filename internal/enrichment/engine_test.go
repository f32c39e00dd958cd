package enrichment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bomlens/backend/internal/bom"
	"github.com/bomlens/backend/internal/vector/milvus"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	matches []milvus.ComponentMatch
	err     error
}

func (f *fakeIndex) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]milvus.ComponentMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

type fakeEstimator struct {
	fn func(c bom.Component) (*bom.ComponentEstimate, error)
}

func (f *fakeEstimator) EstimateComponent(ctx context.Context, c bom.Component) (*bom.ComponentEstimate, error) {
	return f.fn(c)
}

func fastOpts() Options {
	return Options{
		Concurrency:    4,
		MatchThreshold: 0.75,
		SearchTopK:     3,
		RetryDelay:     time.Millisecond,
		CallTimeout:    time.Second,
	}
}

func steelEstimate(weight float64) func(bom.Component) (*bom.ComponentEstimate, error) {
	return func(bom.Component) (*bom.ComponentEstimate, error) {
		return &bom.ComponentEstimate{
			WeightKg:        weight,
			WeightReasoning: "typical for the stated dimensions",
			RawMaterials:    map[string]float64{"steel": 100},
		}, nil
	}
}

func TestEnrichAcceptsConfidentMatch(t *testing.T) {
	index := &fakeIndex{matches: []milvus.ComponentMatch{{
		PartNumber:   "PN-100",
		Name:         "Steel bracket 40mm",
		WeightKg:     0.45,
		RawMaterials: map[string]float64{"steel": 97, "zinc": 3},
		PriceUSD:     2.3,
		Score:        0.82,
	}}}
	estimator := &fakeEstimator{fn: func(bom.Component) (*bom.ComponentEstimate, error) {
		t.Fatal("estimator must not run when a confident match exists")
		return nil, nil
	}}
	engine := NewEngine(&fakeEmbedder{}, index, estimator, nil, fastOpts())

	enriched, diags := engine.Enrich(context.Background(), bom.Component{
		Name: "Bracket", Material: "Steel", Quantity: 4,
	})

	assert.Empty(t, diags)
	assert.Equal(t, bom.SourceDatabaseMatch, enriched.DataSource)
	assert.Equal(t, 0.45, enriched.WeightPerUnitKg)
	assert.InDelta(t, 1.8, enriched.WeightTotalKg, 1e-9)
	require.NotNil(t, enriched.DatabaseMatch)
	assert.Equal(t, "PN-100", enriched.DatabaseMatch.PartNumber)
	assert.Equal(t, 0.82, enriched.DatabaseMatch.MatchScore)
}

func TestEnrichRejectsMatchBelowThreshold(t *testing.T) {
	index := &fakeIndex{matches: []milvus.ComponentMatch{{
		PartNumber: "PN-200", WeightKg: 9.9, Score: 0.70,
	}}}
	engine := NewEngine(&fakeEmbedder{}, index, &fakeEstimator{fn: steelEstimate(1.2)}, nil, fastOpts())

	enriched, _ := engine.Enrich(context.Background(), bom.Component{Name: "Rod", Quantity: 1})

	assert.Equal(t, bom.SourceAIEstimate, enriched.DataSource)
	assert.Equal(t, 1.2, enriched.WeightPerUnitKg)
	assert.Nil(t, enriched.DatabaseMatch)
}

func TestEnrichFallsBackWhenIndexFails(t *testing.T) {
	index := &fakeIndex{err: errors.New("index unavailable")}
	engine := NewEngine(&fakeEmbedder{}, index, &fakeEstimator{fn: steelEstimate(0.8)}, nil, fastOpts())

	enriched, diags := engine.Enrich(context.Background(), bom.Component{Name: "Pin", Quantity: 2})

	assert.Equal(t, bom.SourceAIEstimate, enriched.DataSource)
	assert.InDelta(t, 1.6, enriched.WeightTotalKg, 1e-9)
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0], "index lookup failed")
}

func TestEnrichDegradesToZeroConfidenceWhenBothPathsFail(t *testing.T) {
	index := &fakeIndex{err: errors.New("index down")}
	estimator := &fakeEstimator{fn: func(bom.Component) (*bom.ComponentEstimate, error) {
		return nil, errors.New("model overloaded")
	}}
	engine := NewEngine(&fakeEmbedder{}, index, estimator, nil, fastOpts())

	enriched, diags := engine.Enrich(context.Background(), bom.Component{Name: "Mystery", Quantity: 3, WeightPerUnitKg: 7})

	assert.Equal(t, bom.SourceAIEstimate, enriched.DataSource)
	assert.Equal(t, 0.0, enriched.WeightPerUnitKg)
	assert.Equal(t, 0.0, enriched.WeightTotalKg)
	assert.NotNil(t, enriched.RawMaterials)
	assert.Empty(t, enriched.RawMaterials)
	assert.Len(t, diags, 2)
}

func TestEnrichGapFillsIncompleteMatch(t *testing.T) {
	index := &fakeIndex{matches: []milvus.ComponentMatch{{
		PartNumber: "PN-300", Name: "Legacy part", Score: 0.9,
	}}}
	engine := NewEngine(&fakeEmbedder{}, index, &fakeEstimator{fn: steelEstimate(2.0)}, nil, fastOpts())

	enriched, _ := engine.Enrich(context.Background(), bom.Component{Name: "Leg", Quantity: 1})

	// The match is kept as the data source; the estimator only fills what
	// the index entry lacked.
	assert.Equal(t, bom.SourceDatabaseMatch, enriched.DataSource)
	assert.Equal(t, 2.0, enriched.WeightPerUnitKg)
	assert.Equal(t, map[string]float64{"steel": 100}, enriched.RawMaterials)
	require.NotNil(t, enriched.DatabaseMatch)
}

func TestEnrichAllIsolatesSingleFailure(t *testing.T) {
	index := &fakeIndex{}
	estimator := &fakeEstimator{fn: func(c bom.Component) (*bom.ComponentEstimate, error) {
		if c.Name == "c2" {
			return nil, errors.New("boom")
		}
		return steelEstimate(1.0)(c)
	}}
	engine := NewEngine(&fakeEmbedder{}, index, estimator, nil, fastOpts())

	bill := bom.BillOfMaterials{
		{Name: "c1", Quantity: 1},
		{Name: "c2", Quantity: 1},
		{Name: "c3", Quantity: 1},
	}

	enriched, diags, err := engine.EnrichAll(context.Background(), bill)
	require.NoError(t, err)
	require.Len(t, enriched, 3)

	assert.Equal(t, 1.0, enriched[0].WeightPerUnitKg)
	assert.Equal(t, 0.0, enriched[1].WeightPerUnitKg)
	assert.Equal(t, 1.0, enriched[2].WeightPerUnitKg)
	assert.NotEmpty(t, diags)
}

func TestEnrichAllPreservesOrder(t *testing.T) {
	weights := map[string]float64{}
	bill := make(bom.BillOfMaterials, 16)
	for i := range bill {
		name := fmt.Sprintf("part-%02d", i)
		bill[i] = bom.Component{Name: name, Quantity: 1}
		weights[name] = float64(i) + 0.5
	}

	estimator := &fakeEstimator{fn: func(c bom.Component) (*bom.ComponentEstimate, error) {
		return &bom.ComponentEstimate{WeightKg: weights[c.Name]}, nil
	}}
	engine := NewEngine(&fakeEmbedder{}, &fakeIndex{}, estimator, nil, fastOpts())

	enriched, _, err := engine.EnrichAll(context.Background(), bill)
	require.NoError(t, err)
	require.Len(t, enriched, len(bill))

	for i, c := range enriched {
		assert.Equal(t, bill[i].Name, c.Name)
		assert.Equal(t, weights[c.Name], c.WeightPerUnitKg)
	}
}

func TestEnrichAllReturnsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(&fakeEmbedder{}, &fakeIndex{}, &fakeEstimator{fn: steelEstimate(1.0)}, nil, fastOpts())

	_, _, err := engine.EnrichAll(ctx, bom.BillOfMaterials{{Name: "c1", Quantity: 1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizePercentagesRescalesDrift(t *testing.T) {
	out := normalizePercentages(map[string]float64{"steel": 60, "plastic": 30})
	require.NotNil(t, out)
	assert.InDelta(t, 66.67, out["steel"], 0.01)
	assert.InDelta(t, 33.33, out["plastic"], 0.01)

	// Within tolerance stays as-is.
	kept := normalizePercentages(map[string]float64{"steel": 99.8})
	assert.Equal(t, 99.8, kept["steel"])

	assert.Nil(t, normalizePercentages(nil))
	assert.Nil(t, normalizePercentages(map[string]float64{"steel": 0}))
}
