package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/bomlens/backend/internal/bom"
	"github.com/bomlens/backend/pkg/logger"
)

const visionSystemPrompt = `You are an industrial procurement analyst. You tear products down into their purchasable sub-components for replication or repair.`

const visionUserPrompt = `Analyze this image for a procurement teardown to identify sub-components for replication or repair.

Return ONLY a JSON object with a 'bill_of_materials' array containing objects with:
- 'component_name': accurate engineering name
- 'quantity': count of this item visible or required
- 'industrial_search_term': 3-5 word supplier search string
- 'material_spec': probable material grade
- 'dimensions_estimate': metric dimensions
- 'logic': reasoning for this assessment

Focus strictly on parts found in mechanical supplier catalogs.`

// AnalyzeProductImage sends the image to the vision model and returns the raw,
// unvalidated candidate records. The caller owns validation.
func (c *Client) AnalyzeProductImage(ctx context.Context, image []byte, userContext string) ([]bom.RawComponent, error) {
	prompt := visionUserPrompt
	if userContext != "" {
		prompt = fmt.Sprintf(`%s

IMPORTANT USER CONTEXT: %s
Use this additional information to refine your material assessments, dimensions, and component identification. This context should override visual assumptions where applicable.`, visionUserPrompt, userContext)
	}

	content, err := c.Complete(ctx, CompletionRequest{
		Model:        c.visionModel,
		SystemPrompt: visionSystemPrompt,
		UserPrompt:   prompt,
		ImageDataURL: ImageDataURL(image),
		JSONMode:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("vision analysis failed: %w", err)
	}

	var parsed struct {
		BillOfMaterials []bom.RawComponent `json:"bill_of_materials"`
	}
	if err := decodeJSON(content, &parsed); err != nil {
		return nil, err
	}

	logger.Info("Image analyzed", zap.Int("candidate_components", len(parsed.BillOfMaterials)))

	return parsed.BillOfMaterials, nil
}

// EstimateComponent asks the estimation model for a per-unit weight and raw
// material breakdown based on the component's textual description.
func (c *Client) EstimateComponent(ctx context.Context, component bom.Component) (*bom.ComponentEstimate, error) {
	prompt := fmt.Sprintf(`Based on the following component specifications, estimate:
1. The weight in kg (single number)
2. The raw material composition as percentages

Component Details:
- Name: %s
- Material Spec: %s
- Dimensions: %s
- Industrial Search Term: %s
- Quantity: %d

Return ONLY a JSON object with:
- "weight_kg": estimated weight per unit in kg (number)
- "weight_reasoning": brief explanation of weight calculation
- "raw_materials": object with material names as keys and percentage as values (must sum to 100)
  Common materials: wood, iron, steel, aluminum, plastic, rubber, glass, copper, brass, stainless_steel, mdf, plywood, hardwood, softwood, veneer, galvanized_steel`,
		orUnknown(component.Name), orUnknown(component.Material),
		orUnknown(component.Dimensions), orUnknown(component.SearchTerm),
		component.Quantity)

	content, err := c.Complete(ctx, CompletionRequest{
		Model:        c.estimationModel,
		SystemPrompt: "You are an industrial materials expert. Provide accurate weight and material composition estimates for manufacturing components.",
		UserPrompt:   prompt,
		JSONMode:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("component estimation failed: %w", err)
	}

	var estimate bom.ComponentEstimate
	if err := decodeJSON(content, &estimate); err != nil {
		return nil, err
	}
	if estimate.WeightKg < 0 {
		return nil, fmt.Errorf("model returned negative weight %f", estimate.WeightKg)
	}

	return &estimate, nil
}

// TariffAdvisoryRequest summarizes one analyzed product for the customs
// reasoning prompt.
type TariffAdvisoryRequest struct {
	Components    []bom.Component
	Composition   bom.Composition
	TotalWeightKg float64
	Origin        string
	Destination   string
}

// TariffAdvisory is the reasoning model's contribution to a tariff estimate:
// classification and advisory text. Rates and duty arithmetic are resolved
// deterministically by the tariff engine, never taken from the model.
type TariffAdvisory struct {
	Classification bom.HSClassification `json:"hs_code_classification"`
	Insights       bom.Insights         `json:"ai_insights"`
	ComplianceReqs []bom.Compliance     `json:"compliance_requirements"`
	Disclaimers    []string             `json:"disclaimers"`
}

func (c *Client) GenerateTariffAdvisory(ctx context.Context, req TariffAdvisoryRequest) (*TariffAdvisory, error) {
	type componentSummary struct {
		Name         string             `json:"name"`
		Quantity     int                `json:"quantity"`
		Material     string             `json:"material"`
		WeightKg     float64            `json:"weight_kg"`
		RawMaterials map[string]float64 `json:"raw_materials"`
	}
	summaries := make([]componentSummary, 0, len(req.Components))
	for _, comp := range req.Components {
		summaries = append(summaries, componentSummary{
			Name:         comp.Name,
			Quantity:     comp.Quantity,
			Material:     comp.Material,
			WeightKg:     comp.WeightTotalKg,
			RawMaterials: comp.RawMaterials,
		})
	}

	componentsJSON, _ := json.MarshalIndent(summaries, "", "  ")
	compositionJSON, _ := json.MarshalIndent(req.Composition, "", "  ")

	prompt := fmt.Sprintf(`Analyze the following product for import classification.

PRODUCT DETAILS:
- Total Weight: %.2f kg
- Origin Country: %s
- Destination Country: %s

COMPONENTS:
%s

AGGREGATE MATERIAL COMPOSITION:
%s

Provide your analysis as a JSON object with this structure:

{
  "hs_code_classification": {
    "primary_hs_code": "XXXX.XX.XXXX",
    "hs_code_description": "Description of the HS code",
    "classification_reasoning": "Why this HS code applies"
  },
  "ai_insights": {
    "cost_optimization_suggestions": ["Suggestion for reducing tariff burden", "..."],
    "risk_factors": ["Potential risk", "..."],
    "recommendation_summary": "Overall recommendation for this import"
  },
  "compliance_requirements": [
    {"requirement": "Requirement name", "description": "What needs to be done", "agency": "Responsible agency"}
  ],
  "disclaimers": ["Important disclaimer", "..."]
}

Return exactly one primary HS code. Be specific based on current %s import
regulations for products from %s. Consider any special tariffs, anti-dumping
duties, or trade restrictions that may apply.`,
		req.TotalWeightKg, req.Origin, req.Destination,
		componentsJSON, compositionJSON,
		req.Destination, req.Origin)

	content, err := c.Complete(ctx, CompletionRequest{
		Model:        c.reasoningModel,
		SystemPrompt: "You are an expert customs broker and international trade consultant with deep knowledge of HS codes, tariff schedules, and trade agreements. Provide accurate, actionable tariff analysis.",
		UserPrompt:   prompt,
		JSONMode:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("tariff advisory failed: %w", err)
	}

	var advisory TariffAdvisory
	if err := decodeJSON(content, &advisory); err != nil {
		return nil, err
	}
	if advisory.Classification.PrimaryHSCode == "" {
		return nil, fmt.Errorf("model returned no primary HS code")
	}

	return &advisory, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
