package ingestion

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	kgPerPound = 0.45359237
	kgPerOunce = 0.028349523125
)

var weightPattern = regexp.MustCompile(`(?i)([0-9]+(?:[.,][0-9]+)?)\s*(kg|kilograms?|g|grams?|lbs?|pounds?|oz|ounces?)\b`)

// ParseWeightKg extracts the first weight figure from free text and converts
// it to kilograms. Everything downstream of ingestion works in kilograms
// only.
func ParseWeightKg(text string) (float64, bool) {
	m := weightPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || value < 0 {
		return 0, false
	}

	switch strings.ToLower(m[2]) {
	case "kg", "kilogram", "kilograms":
		return value, true
	case "g", "gram", "grams":
		return value / 1000, true
	case "lb", "lbs", "pound", "pounds":
		return value * kgPerPound, true
	case "oz", "ounce", "ounces":
		return value * kgPerOunce, true
	}
	return 0, false
}

var pricePattern = regexp.MustCompile(`(?:USD|US\$|\$)\s*([0-9]+(?:,[0-9]{3})*(?:\.[0-9]+)?)`)

// ParsePriceUSD extracts a dollar amount from free text.
func ParsePriceUSD(text string) (float64, bool) {
	m := pricePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}
