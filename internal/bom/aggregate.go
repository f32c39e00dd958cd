package bom

import (
	"math"
	"sort"
)

// Aggregate distributes each component's total weight across its material
// percentages and folds the absolute masses into a product-wide,
// weight-weighted composition. Pure function.
//
// When total mass is zero (all weights unresolved) the composition is empty
// rather than dividing by zero.
func Aggregate(bill BillOfMaterials) (Composition, WeightSummary) {
	summary := WeightSummary{
		ComponentWeights: make([]ComponentWeight, 0, len(bill)),
	}

	materialMass := make(map[string]float64)
	var total float64

	for _, c := range bill {
		total += c.WeightTotalKg
		summary.ComponentWeights = append(summary.ComponentWeights, ComponentWeight{
			Name:          c.Name,
			Quantity:      c.Quantity,
			WeightTotalKg: c.WeightTotalKg,
		})

		if c.WeightTotalKg <= 0 {
			continue
		}
		for material, pct := range c.RawMaterials {
			materialMass[material] += (pct / 100) * c.WeightTotalKg
		}
	}

	summary.TotalWeightKg = round3(total)

	composition := make(Composition, len(materialMass))
	if total > 0 {
		for material, mass := range materialMass {
			composition[material] = round2((mass / total) * 100)
		}
	}

	return composition, summary
}

// RankedMaterials returns the composition's material names sorted by
// percentage descending, names ascending on ties.
func (c Composition) RankedMaterials() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if c[names[i]] != c[names[j]] {
			return c[names[i]] > c[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// DominantMaterial returns the highest-percentage material, or "" for an
// empty composition.
func (c Composition) DominantMaterial() string {
	ranked := c.RankedMaterials()
	if len(ranked) == 0 {
		return ""
	}
	return ranked[0]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
