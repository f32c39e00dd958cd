package bom

import "time"

// DataSource records where a component's weight and material figures came
// from. It is set by the enrichment engine.
type DataSource string

const (
	SourceExtraction    DataSource = "extraction"
	SourceDatabaseMatch DataSource = "database_match"
	SourceAIEstimate    DataSource = "ai_estimate"
)

// Component is one identified part of the analyzed product. Stages never
// mutate a component in place; each stage returns a new value.
type Component struct {
	Name                string             `json:"name"`
	Quantity            int                `json:"quantity"`
	Material            string             `json:"material"`
	Dimensions          string             `json:"dimensions"`
	SearchTerm          string             `json:"search_term,omitempty"`
	WeightPerUnitKg     float64            `json:"weight_per_unit_kg"`
	WeightTotalKg       float64            `json:"weight_total_kg"`
	RawMaterials        map[string]float64 `json:"raw_materials"`
	DataSource          DataSource         `json:"data_source"`
	IdentificationLogic string             `json:"identification_logic,omitempty"`
	WeightReasoning     string             `json:"weight_reasoning,omitempty"`
	DatabaseMatch       *MatchInfo         `json:"database_match,omitempty"`
}

// MatchInfo describes the accepted known-component index match.
type MatchInfo struct {
	PartNumber string  `json:"part_number"`
	Name       string  `json:"name"`
	PriceUSD   float64 `json:"price_usd,omitempty"`
	MatchScore float64 `json:"match_score"`
}

// BillOfMaterials preserves the canonical extraction order through every
// stage.
type BillOfMaterials []Component

// RawComponent is the loosely-typed candidate record returned by the vision
// capability. Fields may be absent or mistyped; nothing past the
// normalization boundary handles these untyped values.
type RawComponent struct {
	Name            any `json:"component_name"`
	Quantity        any `json:"quantity"`
	SearchTerm      any `json:"industrial_search_term"`
	Material        any `json:"material_spec"`
	Dimensions      any `json:"dimensions_estimate"`
	Logic           any `json:"logic"`
	WeightPerUnitKg any `json:"weight_per_unit_kg"`
	RawMaterials    any `json:"raw_materials"`
}

// ComponentEstimate is the AI fallback estimate for a component whose weight
// and material breakdown could not be resolved from the index.
type ComponentEstimate struct {
	WeightKg        float64            `json:"weight_kg"`
	WeightReasoning string             `json:"weight_reasoning"`
	RawMaterials    map[string]float64 `json:"raw_materials"`
}

// Composition maps material name to its weight-weighted percentage of the
// whole product.
type Composition map[string]float64

type ComponentWeight struct {
	Name          string  `json:"name"`
	Quantity      int     `json:"quantity"`
	WeightTotalKg float64 `json:"weight_total_kg"`
}

type WeightSummary struct {
	TotalWeightKg    float64           `json:"total_weight_kg"`
	ComponentWeights []ComponentWeight `json:"component_weights"`
}

type ComponentMaterials struct {
	Name      string             `json:"name"`
	Materials map[string]float64 `json:"materials"`
}

type MaterialComposition struct {
	AggregatePercentages Composition          `json:"aggregate_percentages"`
	ByComponent          []ComponentMaterials `json:"by_component"`
}

type ProcurementSummary struct {
	TotalComponents        int      `json:"total_components"`
	TotalItems             int      `json:"total_items"`
	ComponentsFromDatabase int      `json:"components_from_database"`
	ComponentsAIEstimated  int      `json:"components_ai_estimated"`
	UniqueMaterials        []string `json:"unique_materials"`
}

type ReportMetadata struct {
	ReportID    string    `json:"report_id"`
	GeneratedAt time.Time `json:"generated_at"`
	ImageRef    string    `json:"image_analyzed"`
	UserContext string    `json:"user_context,omitempty"`
}

type TradeRoute struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// Report is the immutable top-level result of one pipeline run. The JSON
// field names are the stable wire contract consumers bind to.
type Report struct {
	Metadata            ReportMetadata      `json:"report_metadata"`
	Components          BillOfMaterials     `json:"components"`
	WeightSummary       WeightSummary       `json:"weight_summary"`
	MaterialComposition MaterialComposition `json:"material_composition"`
	ProcurementSummary  ProcurementSummary  `json:"procurement_summary"`
	TariffEstimation    *TariffEstimate     `json:"tariff_estimation,omitempty"`
	TradeRoute          TradeRoute          `json:"trade_route"`
	Diagnostics         []string            `json:"diagnostics,omitempty"`
}

// TariffEstimate is the derived, read-only duty estimate attached to a
// report.
type TariffEstimate struct {
	HSCodeClassification HSClassification `json:"hs_code_classification"`
	TariffRates          TariffRates      `json:"tariff_rates"`
	EstimatedDuties      EstimatedDuties  `json:"estimated_duties"`
	MaterialBreakdown    []MaterialDuty   `json:"material_tariff_breakdown"`
	ComplianceReqs       []Compliance     `json:"compliance_requirements"`
	Insights             Insights         `json:"ai_insights"`
	Disclaimers          []string         `json:"disclaimers"`
	// Confidence is "standard" for reasoning-backed estimates and "low" for
	// the rule-table-only degraded mode.
	Confidence string `json:"confidence"`
}

type HSClassification struct {
	PrimaryHSCode string `json:"primary_hs_code"`
	Description   string `json:"hs_code_description"`
	Reasoning     string `json:"classification_reasoning"`
}

type AdditionalDuty struct {
	Name        string  `json:"name"`
	RatePercent float64 `json:"rate_percent"`
	Applies     bool    `json:"applies"`
	Reason      string  `json:"reason"`
}

type TariffRates struct {
	BaseDutyRatePercent       float64          `json:"base_duty_rate_percent"`
	AdditionalDuties          []AdditionalDuty `json:"additional_duties"`
	EffectiveTotalRatePercent float64          `json:"effective_total_rate_percent"`
}

type EstimatedDuties struct {
	ProductValueUSD     float64 `json:"estimated_product_value_usd"`
	BaseDutyUSD         float64 `json:"base_duty_usd"`
	AdditionalDutiesUSD float64 `json:"additional_duties_usd"`
	TotalDutyUSD        float64 `json:"total_estimated_duty_usd"`
	DutyPerKgUSD        float64 `json:"duty_per_kg_usd"`
}

type MaterialDuty struct {
	Material            string  `json:"material"`
	PercentageOfProduct float64 `json:"percentage_of_product"`
	HSChapter           string  `json:"applicable_hs_chapter"`
	MaterialDutyRate    float64 `json:"material_duty_rate"`
	Notes               string  `json:"notes"`
}

type Compliance struct {
	Requirement string `json:"requirement"`
	Description string `json:"description"`
	Agency      string `json:"agency"`
}

type Insights struct {
	CostSuggestions []string `json:"cost_optimization_suggestions"`
	RiskFactors     []string `json:"risk_factors"`
	Recommendation  string   `json:"recommendation_summary"`
}
