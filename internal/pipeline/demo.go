package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/bomlens/backend/internal/bom"
	"github.com/bomlens/backend/internal/tariff"
)

// demoBill is a representative teardown of a wooden loft bed with desk. The
// demo endpoint serves a report derived from it without touching any external
// service.
func demoBill() bom.BillOfMaterials {
	bill := bom.BillOfMaterials{
		{
			Name:                "Main Frame Post",
			Quantity:            4,
			Material:            "Pine softwood, kiln dried",
			Dimensions:          "70mm x 70mm x 1500mm",
			SearchTerm:          "pine bed frame post 70mm",
			WeightPerUnitKg:     3.2,
			RawMaterials:        map[string]float64{"softwood": 100},
			DataSource:          bom.SourceAIEstimate,
			IdentificationLogic: "Four vertical corner members carrying the elevated sleeping platform",
			WeightReasoning:     "Pine at ~480 kg/m3 for a 70x70x1500mm section",
		},
		{
			Name:                "Side Rail",
			Quantity:            4,
			Material:            "Pine softwood, kiln dried",
			Dimensions:          "40mm x 90mm x 1950mm",
			SearchTerm:          "pine bed side rail 2m",
			WeightPerUnitKg:     2.1,
			RawMaterials:        map[string]float64{"softwood": 100},
			DataSource:          bom.SourceAIEstimate,
			IdentificationLogic: "Horizontal rails joining the posts along each long side",
			WeightReasoning:     "Pine at ~480 kg/m3 for a 40x90x1950mm section",
		},
		{
			Name:                "Slat",
			Quantity:            8,
			Material:            "Pine softwood",
			Dimensions:          "20mm x 90mm x 960mm",
			SearchTerm:          "pine bed slat 900mm",
			WeightPerUnitKg:     1.6,
			RawMaterials:        map[string]float64{"softwood": 100},
			DataSource:          bom.SourceAIEstimate,
			IdentificationLogic: "Evenly spaced boards spanning the rails under the mattress",
			WeightReasoning:     "Pine slat of the stated section, rounded up for moisture content",
		},
		{
			Name:                "Ladder Assembly",
			Quantity:            1,
			Material:            "Beech hardwood",
			Dimensions:          "400mm x 1600mm",
			SearchTerm:          "beech loft bed ladder",
			WeightPerUnitKg:     8.4,
			RawMaterials:        map[string]float64{"hardwood": 100},
			DataSource:          bom.SourceAIEstimate,
			IdentificationLogic: "Angled access ladder with five rungs, denser wood for wear resistance",
			WeightReasoning:     "Beech at ~700 kg/m3 across two stringers and five rungs",
		},
		{
			Name:                "Guard Rail",
			Quantity:            2,
			Material:            "Beech hardwood",
			Dimensions:          "40mm x 300mm x 1900mm",
			SearchTerm:          "loft bed guard rail hardwood",
			WeightPerUnitKg:     3.4,
			RawMaterials:        map[string]float64{"hardwood": 100},
			DataSource:          bom.SourceAIEstimate,
			IdentificationLogic: "Safety rails along the open sides of the sleeping platform",
			WeightReasoning:     "Beech rail of the stated section including mounting blocks",
		},
		{
			Name:                "Desk Top Panel",
			Quantity:            1,
			Material:            "Birch plywood, 18mm",
			Dimensions:          "18mm x 600mm x 1900mm",
			SearchTerm:          "birch plywood desk top 18mm",
			WeightPerUnitKg:     14.4,
			RawMaterials:        map[string]float64{"plywood": 85, "adhesive": 15},
			DataSource:          bom.SourceAIEstimate,
			IdentificationLogic: "Full-width work surface mounted beneath the platform",
			WeightReasoning:     "18mm birch ply at ~700 kg/m3 for a 600x1900mm panel",
		},
		{
			Name:                "Hardware Kit",
			Quantity:            1,
			Material:            "Zinc plated steel",
			Dimensions:          "M8 bolts, barrel nuts, brackets",
			SearchTerm:          "bed frame hardware kit M8",
			WeightPerUnitKg:     3.2,
			RawMaterials:        map[string]float64{"steel": 95, "zinc": 5},
			DataSource:          bom.SourceDatabaseMatch,
			IdentificationLogic: "Visible bolt heads at every post-to-rail joint imply a standard kit",
			DatabaseMatch: &bom.MatchInfo{
				PartNumber: "HW-M8-BED-220",
				Name:       "Bed frame fastener kit, M8 zinc plated",
				PriceUSD:   18.5,
				MatchScore: 0.91,
			},
		},
		{
			Name:                "Stainless Fastener Set",
			Quantity:            1,
			Material:            "Stainless steel A2",
			Dimensions:          "Wood screws, 4.5mm x 50mm",
			SearchTerm:          "stainless wood screws 4.5x50",
			WeightPerUnitKg:     0.9,
			RawMaterials:        map[string]float64{"stainless_steel": 100},
			DataSource:          bom.SourceDatabaseMatch,
			IdentificationLogic: "Slat and guard rail screws, stainless for indoor longevity",
			DatabaseMatch: &bom.MatchInfo{
				PartNumber: "SS-WS-4550",
				Name:       "A2 stainless wood screw set 4.5x50",
				PriceUSD:   9.9,
				MatchScore: 0.88,
			},
		},
	}

	for i := range bill {
		bill[i].WeightTotalKg = bill[i].WeightPerUnitKg * float64(bill[i].Quantity)
	}
	return bill
}

// DemoReport assembles the canned sample report. Aggregation and duty math
// run through the same code paths as a live run; only the advisory text is
// fixed.
func DemoReport() *bom.Report {
	bill := demoBill()
	composition, summary := bom.Aggregate(bill)
	route := bom.TradeRoute{Origin: "China", Destination: "United States"}

	declaredValue := 450.0
	estimate := tariff.RuleEstimate(composition, summary, route, &declaredValue, tariff.Options{})
	estimate.Confidence = tariff.ConfidenceStandard
	estimate.HSCodeClassification = bom.HSClassification{
		PrimaryHSCode: "9403.50.9045",
		Description:   "Wooden furniture of a kind used in the bedroom, other",
		Reasoning:     "The product is an assembled wooden loft bed; the integrated desk does not change the essential character of bedroom furniture under GRI 3(b)",
	}
	estimate.Insights = bom.Insights{
		CostSuggestions: []string{
			"Ship knocked-down rather than assembled to cut dimensional weight charges",
			"Source the fastener kits domestically to remove them from the dutiable value",
			"Confirm whether the plywood panel qualifies for a separate, lower-rate line item",
		},
		RiskFactors: []string{
			"Section 301 surcharge applies to furniture of Chinese origin and dominates the duty total",
			"Composite wood parts require TSCA Title VI formaldehyde certification at entry",
		},
		Recommendation: "Classify under HS 9403.50 as wooden bedroom furniture and budget for the Section 301 surcharge; a binding ruling is advisable before volume orders",
	}
	estimate.ComplianceReqs = []bom.Compliance{
		{
			Requirement: "TSCA Title VI",
			Description: "Composite wood products must carry formaldehyde emission certification",
			Agency:      "EPA",
		},
		{
			Requirement: "ISPM-15",
			Description: "Solid wood packaging must be heat treated and stamped",
			Agency:      "USDA APHIS",
		},
		{
			Requirement: "16 CFR 1213",
			Description: "Bunk and loft beds must meet the entrapment and guardrail safety standard",
			Agency:      "CPSC",
		},
	}

	return &bom.Report{
		Metadata: bom.ReportMetadata{
			ReportID:    uuid.New().String(),
			GeneratedAt: time.Now().UTC(),
			ImageRef:    "demo/wooden_loft_bed.jpg",
			UserContext: "Wooden loft bed with integrated desk, flat packed",
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
	}
}
