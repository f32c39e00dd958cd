package tariff

import (
	"strings"

	"github.com/bomlens/backend/internal/bom"
)

// materialRate is an indicative MFN-style rate for one raw material, used for
// the per-material breakdown and the deterministic base-rate computation.
type materialRate struct {
	HSChapter   string
	RatePercent float64
	// UnitValueUSD values one kilogram of the material for the valuation
	// heuristic when no declared value is given.
	UnitValueUSD float64
	Notes        string
}

// Indicative rates by raw material. These are rule-table defaults, not legal
// determinations; the report's disclaimers say as much.
var materialRates = map[string]materialRate{
	"softwood":         {"44", 0.0, 0.8, "Coniferous wood is generally duty-free"},
	"hardwood":         {"44", 0.0, 1.5, "Temperate and tropical hardwood is generally duty-free"},
	"wood":             {"44", 0.0, 1.0, "Sawn wood is generally duty-free"},
	"plywood":          {"44", 8.0, 1.2, "Hardwood plywood commonly carries an 8% duty"},
	"mdf":              {"44", 3.9, 0.6, "Fibreboard of wood"},
	"veneer":           {"44", 0.0, 1.8, "Veneer sheets are generally duty-free"},
	"wood_veneer":      {"44", 0.0, 1.8, "Veneer sheets are generally duty-free"},
	"steel":            {"73", 2.9, 1.5, "Articles of iron or steel"},
	"galvanized_steel": {"73", 2.9, 1.8, "Coated steel articles"},
	"stainless_steel":  {"73", 0.0, 4.0, "Stainless fasteners are generally duty-free"},
	"iron":             {"72", 0.5, 1.0, "Basic iron products"},
	"aluminum":         {"76", 2.6, 3.5, "Articles of aluminum"},
	"copper":           {"74", 1.0, 9.0, "Articles of copper"},
	"brass":            {"74", 1.9, 7.5, "Copper-zinc alloy articles"},
	"zinc":             {"79", 1.5, 2.8, "Zinc coatings and articles"},
	"plastic":          {"39", 5.3, 2.5, "Articles of plastics"},
	"rubber":           {"40", 2.5, 2.0, "Articles of vulcanized rubber"},
	"glass":            {"70", 3.8, 1.0, "Glassware and glazing"},
	"adhesive":         {"35", 2.1, 3.0, "Glues and adhesives"},
}

var defaultMaterialRate = materialRate{"98", 3.0, 0, "Unlisted material, generic indicative rate applied"}

func rateFor(material string) materialRate {
	if rate, ok := materialRates[normalizeMaterialName(material)]; ok {
		return rate
	}
	return defaultMaterialRate
}

func normalizeMaterialName(material string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(material)), " ", "_")
}

// fallbackClassification classifies by dominant material chapter when the
// reasoning capability is unavailable.
var fallbackClassifications = map[string]bom.HSClassification{
	"44": {PrimaryHSCode: "4421.99.9880", Description: "Other articles of wood"},
	"72": {PrimaryHSCode: "7326.90.8688", Description: "Other articles of iron or steel"},
	"73": {PrimaryHSCode: "7326.90.8688", Description: "Other articles of iron or steel"},
	"74": {PrimaryHSCode: "7419.80.5010", Description: "Other articles of copper"},
	"76": {PrimaryHSCode: "7616.99.5190", Description: "Other articles of aluminum"},
	"39": {PrimaryHSCode: "3926.90.9985", Description: "Other articles of plastics"},
	"40": {PrimaryHSCode: "4016.99.6050", Description: "Other articles of vulcanized rubber"},
	"70": {PrimaryHSCode: "7020.00.6000", Description: "Other articles of glass"},
}

var genericClassification = bom.HSClassification{
	PrimaryHSCode: "9403.99.9040",
	Description:   "Parts of other furniture, of mixed materials",
}

func fallbackClassification(composition bom.Composition) bom.HSClassification {
	dominant := composition.DominantMaterial()
	if dominant == "" {
		cls := genericClassification
		cls.Reasoning = "No resolved material composition; generic mixed-material classification applied"
		return cls
	}

	chapter := rateFor(dominant).HSChapter
	cls, ok := fallbackClassifications[chapter]
	if !ok {
		cls = genericClassification
	}
	cls.Reasoning = "Rule-based classification from dominant material " + dominant +
		" (HS chapter " + chapter + "); reasoning capability unavailable"
	return cls
}

// additionalDuties resolves trade-remedy surcharges for a route. Every entry
// carries an explicit applies decision; only applying entries contribute to
// the effective rate.
func additionalDuties(route bom.TradeRoute) []bom.AdditionalDuty {
	origin := strings.ToLower(strings.TrimSpace(route.Origin))
	destination := strings.ToLower(strings.TrimSpace(route.Destination))

	section301 := bom.AdditionalDuty{
		Name:        "Section 301 Tariff",
		RatePercent: 25.0,
		Applies:     false,
		Reason:      "Applies only to goods of Chinese origin imported into the United States",
	}
	if origin == "china" && (destination == "united states" || destination == "usa" || destination == "us") {
		section301.Applies = true
		section301.Reason = "Product manufactured in China, subject to Section 301 tariffs on Chinese goods"
	}

	antiDumping := bom.AdditionalDuty{
		Name:        "Anti-Dumping Duty",
		RatePercent: 0.0,
		Applies:     false,
		Reason:      "No anti-dumping order matched for this route and product class",
	}

	return []bom.AdditionalDuty{section301, antiDumping}
}

var genericDisclaimers = []string{
	"This is an automated estimate based on indicative tariff schedules and may not reflect recent changes",
	"Actual duties may vary based on customs classification decisions and product specifications",
	"Consult with a licensed customs broker for official duty calculations",
}

var genericCompliance = []bom.Compliance{
	{
		Requirement: "Customs Entry",
		Description: "Standard customs entry documentation required (commercial invoice, packing list, bill of lading)",
		Agency:      "Destination customs authority",
	},
}
