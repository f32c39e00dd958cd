package ingestion

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `
<html>
<head><title>Acme Parts</title></head>
<body>
<h1 itemprop="name">Galvanized Shelf Bracket 250mm</h1>
<span itemprop="sku">BRK-250-GLV</span>
<div class="price">$4.75</div>
<table class="specs">
  <tr><th>Material</th><td>Galvanized steel</td></tr>
  <tr><th>Dimensions</th><td>250mm x 40mm x 3mm</td></tr>
  <tr><th>Weight</th><td>320 g</td></tr>
</table>
</body>
</html>`

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractProductFields(t *testing.T) {
	doc := parseDoc(t, productPage)

	assert.Equal(t, "Galvanized Shelf Bracket 250mm", extractName(doc))
	assert.Equal(t, "BRK-250-GLV", extractPartNumber(doc))
	assert.Equal(t, "Galvanized steel", extractSpec(doc, "material"))
	assert.Equal(t, "250mm x 40mm x 3mm", extractSpec(doc, "dimensions", "size"))

	kg, ok := ParseWeightKg(extractSpec(doc, "weight"))
	require.True(t, ok)
	assert.InDelta(t, 0.32, kg, 1e-9)

	usd, ok := ParsePriceUSD(doc.Find(".price").First().Text())
	require.True(t, ok)
	assert.Equal(t, 4.75, usd)
}

func TestExtractNameFallsBackToTitle(t *testing.T) {
	doc := parseDoc(t, `<html><head><title>M8 Hex Bolt</title></head><body><p>no headings</p></body></html>`)
	assert.Equal(t, "M8 Hex Bolt", extractName(doc))
}

func TestExtractPartNumberFromText(t *testing.T) {
	doc := parseDoc(t, `<html><body><p>Part Number: HDW-4471-B available now</p></body></html>`)
	assert.Equal(t, "HDW-4471-B", extractPartNumber(doc))
}

func TestExtractSpecFromDefinitionList(t *testing.T) {
	doc := parseDoc(t, `<html><body><dl><dt>Material</dt><dd>Beech hardwood</dd></dl></body></html>`)
	assert.Equal(t, "Beech hardwood", extractSpec(doc, "material"))
}

func TestComponentInputValidation(t *testing.T) {
	valid := ComponentInput{Name: "Bracket", WeightKg: 0.3, RawMaterials: map[string]float64{"steel": 100}}
	assert.NoError(t, valid.validate())

	noName := ComponentInput{WeightKg: 0.3}
	assert.Error(t, noName.validate())

	noWeight := ComponentInput{Name: "Bracket"}
	assert.Error(t, noWeight.validate())

	badMaterials := ComponentInput{Name: "Bracket", WeightKg: 0.3, RawMaterials: map[string]float64{"steel": 120}}
	assert.Error(t, badMaterials.validate())
}

func TestEmbeddingTextSkipsEmptyFields(t *testing.T) {
	in := ComponentInput{Name: "Bracket", Dimensions: "250mm"}
	assert.Equal(t, "Bracket 250mm", embeddingText(in))
}
