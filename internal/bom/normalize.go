package bom

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Warning records a repaired or dropped field during normalization. Warnings
// are logged by the caller, never surfaced as errors.
type Warning struct {
	Index   int
	Field   string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("component[%d].%s: %s", w.Index, w.Field, w.Message)
}

// Normalize validates and repairs raw candidate records into the canonical
// component schema. It is a pure function: deterministic, no external calls,
// never fatal. Records missing both a name and a material are dropped;
// everything else is repaired with a recorded warning.
func Normalize(raw []RawComponent) (BillOfMaterials, []Warning) {
	bill := make(BillOfMaterials, 0, len(raw))
	var warnings []Warning

	for i, rec := range raw {
		name := coerceString(rec.Name)
		material := coerceString(rec.Material)

		if name == "" && material == "" {
			warnings = append(warnings, Warning{i, "component_name", "missing both name and material, record dropped"})
			continue
		}

		quantity, ok := coerceInt(rec.Quantity)
		if !ok || quantity < 1 {
			if rec.Quantity != nil {
				warnings = append(warnings, Warning{i, "quantity", "absent or non-positive, defaulted to 1"})
			}
			quantity = 1
		}

		weight, ok := coerceFloat(rec.WeightPerUnitKg)
		if !ok || weight < 0 {
			if rec.WeightPerUnitKg != nil {
				warnings = append(warnings, Warning{i, "weight_per_unit_kg", "unparsable or negative, set to 0"})
			}
			weight = 0
		}

		materials, matWarnings := coerceMaterials(i, rec.RawMaterials)
		warnings = append(warnings, matWarnings...)

		bill = append(bill, Component{
			Name:                name,
			Quantity:            quantity,
			Material:            material,
			Dimensions:          coerceString(rec.Dimensions),
			SearchTerm:          coerceString(rec.SearchTerm),
			WeightPerUnitKg:     weight,
			WeightTotalKg:       weight * float64(quantity),
			RawMaterials:        materials,
			DataSource:          SourceExtraction,
			IdentificationLogic: coerceString(rec.Logic),
		})
	}

	return bill, warnings
}

func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case json.Number:
		return s.String()
	default:
		return ""
	}
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int(f), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceMaterials(index int, v any) (map[string]float64, []Warning) {
	if v == nil {
		return nil, nil
	}

	entries, ok := v.(map[string]any)
	if !ok {
		if typed, isTyped := v.(map[string]float64); isTyped {
			out := make(map[string]float64, len(typed))
			for name, pct := range typed {
				out[name] = pct
			}
			return out, nil
		}
		return nil, []Warning{{index, "raw_materials", "not an object, discarded"}}
	}

	out := make(map[string]float64, len(entries))
	var warnings []Warning
	for name, pct := range entries {
		f, ok := coerceFloat(pct)
		if !ok || f < 0 || f > 100 {
			warnings = append(warnings, Warning{index, "raw_materials." + name, "unparsable or out-of-range percentage, entry dropped"})
			continue
		}
		out[name] = f
	}
	if len(out) == 0 {
		return nil, warnings
	}
	return out, warnings
}
