package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWeightKg(t *testing.T) {
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"2.5 kg", 2.5, true},
		{"Weight: 500 g", 0.5, true},
		{"500g", 0.5, true},
		{"3 lbs", 1.36077711, true},
		{"1 pound", 0.45359237, true},
		{"12 oz", 0.3401942775, true},
		{"1,2 kg", 1.2, true},
		{"4 Kilograms", 4, true},
		{"dimensions 40x40 mm", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		got, ok := ParseWeightKg(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-6, tc.text)
		}
	}
}

func TestParsePriceUSD(t *testing.T) {
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"$1,299.99", 1299.99, true},
		{"USD 45", 45, true},
		{"Price: $18.50 incl. VAT", 18.5, true},
		{"contact us for pricing", 0, false},
	}

	for _, tc := range cases {
		got, ok := ParsePriceUSD(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, tc.text)
		}
	}
}
