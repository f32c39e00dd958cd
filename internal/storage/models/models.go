package models

import "time"

// ReportRecord is one completed analysis run as persisted for history
// queries. ReportJSON holds the full serialized report; the remaining columns
// are denormalized for listing without deserializing it.
type ReportRecord struct {
	ID                   string    `json:"report_id"`
	ImageRef             string    `json:"image_analyzed"`
	Origin               string    `json:"origin"`
	Destination          string    `json:"destination"`
	ComponentCount       int       `json:"component_count"`
	TotalWeightKg        float64   `json:"total_weight_kg"`
	PrimaryHSCode        string    `json:"primary_hs_code"`
	EffectiveRatePercent float64   `json:"effective_total_rate_percent"`
	TotalDutyUSD         float64   `json:"total_estimated_duty_usd"`
	Confidence           string    `json:"confidence"`
	ReportJSON           string    `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
}

// CatalogEntry mirrors a known component indexed into the vector collection,
// kept relationally so the catalog can be listed and re-indexed.
type CatalogEntry struct {
	ID           string    `json:"id"`
	PartNumber   string    `json:"part_number"`
	Name         string    `json:"name"`
	Material     string    `json:"material"`
	Dimensions   string    `json:"dimensions"`
	WeightKg     float64   `json:"weight_kg"`
	RawMaterials string    `json:"raw_materials"`
	PriceUSD     float64   `json:"price_usd"`
	SourceURL    string    `json:"source_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
