package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/bomlens/backend/internal/llm"
	"github.com/bomlens/backend/internal/metrics"
	"github.com/bomlens/backend/internal/storage/models"
	"github.com/bomlens/backend/internal/storage/sqlite"
	"github.com/bomlens/backend/internal/vector/milvus"
	"github.com/bomlens/backend/pkg/logger"
	"github.com/bomlens/backend/pkg/utils"
)

// Processor ingests known components into the vector index and the relational
// catalog, either from structured JSON or scraped supplier product pages.
type Processor struct {
	db        *sqlite.Client
	index     *milvus.Client
	llmClient *llm.Client
}

func NewProcessor(db *sqlite.Client, index *milvus.Client, llmClient *llm.Client) *Processor {
	return &Processor{db: db, index: index, llmClient: llmClient}
}

// ComponentInput is one catalog candidate. WeightKg must already be in
// kilograms.
type ComponentInput struct {
	PartNumber   string             `json:"part_number"`
	Name         string             `json:"name"`
	Material     string             `json:"material"`
	Dimensions   string             `json:"dimensions"`
	WeightKg     float64            `json:"weight_kg"`
	RawMaterials map[string]float64 `json:"raw_materials"`
	PriceUSD     float64            `json:"price_usd"`
	SourceURL    string             `json:"source_url,omitempty"`
}

func (in *ComponentInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("component name is required")
	}
	if in.WeightKg <= 0 {
		return fmt.Errorf("component %q: weight_kg must be positive", in.Name)
	}
	for material, pct := range in.RawMaterials {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("component %q: material %q percentage %v out of range", in.Name, material, pct)
		}
	}
	return nil
}

// IngestComponents validates, embeds, and indexes a batch of components,
// mirroring each into the relational catalog. The whole batch is rejected on
// the first invalid entry so callers can fix their input and resubmit.
func (p *Processor) IngestComponents(ctx context.Context, inputs []ComponentInput) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(inputs))
	for i := range inputs {
		if err := inputs[i].validate(); err != nil {
			return 0, err
		}
		if inputs[i].PartNumber == "" {
			inputs[i].PartNumber = "GEN-" + utils.CacheKey(inputs[i].Name, inputs[i].Material)[:12]
		}
		texts[i] = embeddingText(inputs[i])
	}

	embeddings, err := p.llmClient.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(inputs) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(inputs))
	}

	known := make([]milvus.KnownComponent, len(inputs))
	for i, in := range inputs {
		known[i] = milvus.KnownComponent{
			ID:           utils.CacheKey(in.PartNumber),
			Embedding:    embeddings[i],
			PartNumber:   in.PartNumber,
			Name:         in.Name,
			Material:     in.Material,
			Dimensions:   in.Dimensions,
			WeightKg:     in.WeightKg,
			RawMaterials: in.RawMaterials,
			PriceUSD:     in.PriceUSD,
		}
	}

	if err := p.index.Insert(ctx, known); err != nil {
		return 0, fmt.Errorf("failed to index components: %w", err)
	}

	for i, in := range inputs {
		rawJSON, _ := json.Marshal(in.RawMaterials)
		entry := &models.CatalogEntry{
			ID:           known[i].ID,
			PartNumber:   in.PartNumber,
			Name:         in.Name,
			Material:     in.Material,
			Dimensions:   in.Dimensions,
			WeightKg:     in.WeightKg,
			RawMaterials: string(rawJSON),
			PriceUSD:     in.PriceUSD,
			SourceURL:    in.SourceURL,
			CreatedAt:    time.Now(),
		}
		if err := p.db.InsertCatalogEntry(entry); err != nil {
			logger.Warn("Failed to record catalog entry",
				zap.String("part_number", in.PartNumber), zap.Error(err))
		}
	}

	metrics.CatalogProductsIndexed.Add(float64(len(inputs)))
	logger.Info("Components ingested", zap.Int("count", len(inputs)))

	return len(inputs), nil
}

// ProcessProductPage scrapes one supplier product page and ingests the
// component it describes. Weights and prices on such pages arrive in mixed
// units; they are converted to kilograms and USD here, never downstream.
func (p *Processor) ProcessProductPage(ctx context.Context, url, htmlContent string) (*ComponentInput, error) {
	logger.Info("Processing product page", zap.String("url", url))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	input := ComponentInput{
		Name:       extractName(doc),
		PartNumber: extractPartNumber(doc),
		Material:   extractSpec(doc, "material"),
		Dimensions: extractSpec(doc, "dimensions", "size"),
		SourceURL:  url,
	}
	if input.Name == "" {
		return nil, fmt.Errorf("no product name found at %s", url)
	}

	if weightText := extractSpec(doc, "weight"); weightText != "" {
		if kg, ok := ParseWeightKg(weightText); ok {
			input.WeightKg = kg
		}
	}
	if input.WeightKg == 0 {
		if kg, ok := ParseWeightKg(doc.Text()); ok {
			input.WeightKg = kg
		}
	}
	if input.WeightKg == 0 {
		return nil, fmt.Errorf("no parseable weight found at %s", url)
	}

	if priceText := doc.Find(`[itemprop="price"], .price, #price`).First().Text(); priceText != "" {
		if usd, ok := ParsePriceUSD(priceText); ok {
			input.PriceUSD = usd
		}
	}
	if input.PriceUSD == 0 {
		if usd, ok := ParsePriceUSD(doc.Text()); ok {
			input.PriceUSD = usd
		}
	}

	if _, err := p.IngestComponents(ctx, []ComponentInput{input}); err != nil {
		return nil, err
	}

	return &input, nil
}

func embeddingText(in ComponentInput) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{in.Name, in.Material, in.Dimensions} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func extractName(doc *goquery.Document) string {
	for _, sel := range []string{`[itemprop="name"]`, "h1", "title"} {
		if name := strings.TrimSpace(doc.Find(sel).First().Text()); name != "" {
			return name
		}
	}
	return ""
}

var partNumberPattern = regexp.MustCompile(`(?i)(?:SKU|MPN|Part\s*(?:No\.?|Number))\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9._-]+)`)

func extractPartNumber(doc *goquery.Document) string {
	for _, sel := range []string{`[itemprop="sku"]`, `[itemprop="mpn"]`} {
		if pn := strings.TrimSpace(doc.Find(sel).First().Text()); pn != "" {
			return pn
		}
	}
	if m := partNumberPattern.FindStringSubmatch(doc.Text()); m != nil {
		return m[1]
	}
	return ""
}

// extractSpec walks specification tables and definition lists for a row whose
// label contains one of the given keys.
func extractSpec(doc *goquery.Document, keys ...string) string {
	var value string

	doc.Find("tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		label := strings.ToLower(strings.TrimSpace(row.Find("th, td").First().Text()))
		for _, key := range keys {
			if strings.Contains(label, key) {
				value = strings.TrimSpace(row.Find("td").Last().Text())
				return false
			}
		}
		return true
	})
	if value != "" {
		return value
	}

	doc.Find("dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		label := strings.ToLower(strings.TrimSpace(dt.Text()))
		for _, key := range keys {
			if strings.Contains(label, key) {
				value = strings.TrimSpace(dt.Next().Text())
				return false
			}
		}
		return true
	})

	return value
}
