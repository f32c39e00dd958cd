package bom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCoercesLooseTypes(t *testing.T) {
	raw := []RawComponent{
		{
			Name:            "Steel Frame",
			Quantity:        "4",
			Material:        "Cold rolled steel",
			Dimensions:      "30x30x900mm",
			SearchTerm:      "steel frame tube 30mm",
			Logic:           "Four identical legs visible",
			WeightPerUnitKg: "2.5",
			RawMaterials:    map[string]any{"steel": 95.0, "zinc": "5"},
		},
	}

	bill, warnings := Normalize(raw)
	require.Len(t, bill, 1)
	assert.Empty(t, warnings)

	c := bill[0]
	assert.Equal(t, "Steel Frame", c.Name)
	assert.Equal(t, 4, c.Quantity)
	assert.Equal(t, "Cold rolled steel", c.Material)
	assert.Equal(t, 2.5, c.WeightPerUnitKg)
	assert.Equal(t, 10.0, c.WeightTotalKg)
	assert.Equal(t, SourceExtraction, c.DataSource)
	assert.Equal(t, map[string]float64{"steel": 95, "zinc": 5}, c.RawMaterials)
}

func TestNormalizeDropsRecordMissingNameAndMaterial(t *testing.T) {
	raw := []RawComponent{
		{Quantity: 2.0, WeightPerUnitKg: 1.0},
		{Name: "Panel", Material: "Plywood"},
	}

	bill, warnings := Normalize(raw)
	require.Len(t, bill, 1)
	assert.Equal(t, "Panel", bill[0].Name)

	require.Len(t, warnings, 1)
	assert.Equal(t, 0, warnings[0].Index)
	assert.Contains(t, warnings[0].Message, "dropped")
}

func TestNormalizeDefaultsQuantityToOne(t *testing.T) {
	bill, warnings := Normalize([]RawComponent{
		{Name: "Bracket"},
		{Name: "Shelf", Quantity: 0.0},
		{Name: "Rail", Quantity: "not a number"},
	})
	require.Len(t, bill, 3)

	for _, c := range bill {
		assert.Equal(t, 1, c.Quantity)
	}
	// Absent quantity is silent; present-but-broken values warn.
	assert.Len(t, warnings, 2)
}

func TestNormalizeRepairsBadWeights(t *testing.T) {
	bill, warnings := Normalize([]RawComponent{
		{Name: "Leg", WeightPerUnitKg: -3.0},
		{Name: "Top", WeightPerUnitKg: "heavy"},
	})
	require.Len(t, bill, 2)

	assert.Equal(t, 0.0, bill[0].WeightPerUnitKg)
	assert.Equal(t, 0.0, bill[0].WeightTotalKg)
	assert.Equal(t, 0.0, bill[1].WeightPerUnitKg)
	assert.Len(t, warnings, 2)
}

func TestNormalizeDropsOutOfRangeMaterialEntries(t *testing.T) {
	bill, warnings := Normalize([]RawComponent{
		{
			Name:         "Hinge",
			RawMaterials: map[string]any{"steel": 90.0, "chrome": 150.0, "paint": -2.0},
		},
	})
	require.Len(t, bill, 1)

	assert.Equal(t, map[string]float64{"steel": 90}, bill[0].RawMaterials)
	assert.Len(t, warnings, 2)
}

func TestNormalizeDiscardsNonObjectMaterials(t *testing.T) {
	bill, warnings := Normalize([]RawComponent{
		{Name: "Clip", RawMaterials: "mostly steel"},
	})
	require.Len(t, bill, 1)

	assert.Nil(t, bill[0].RawMaterials)
	require.Len(t, warnings, 1)
	assert.Equal(t, "raw_materials", warnings[0].Field)
}

func TestNormalizeWeightTotalIsPerUnitTimesQuantity(t *testing.T) {
	bill, _ := Normalize([]RawComponent{
		{Name: "Slat", Quantity: 7.0, WeightPerUnitKg: 0.31},
	})
	require.Len(t, bill, 1)

	assert.InDelta(t, bill[0].WeightPerUnitKg*float64(bill[0].Quantity), bill[0].WeightTotalKg, 1e-9)
}
