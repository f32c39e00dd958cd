package milvus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/bomlens/backend/pkg/logger"
)

// Client fronts the known-component collection. Embeddings are normalized,
// so inner-product scores behave as cosine similarity (higher is better).
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// KnownComponent is one catalog entry in the index. WeightKg is always
// kilograms; unit conversion happens at ingestion time.
type KnownComponent struct {
	ID           string
	Embedding    []float32
	PartNumber   string
	Name         string
	Material     string
	Dimensions   string
	WeightKg     float64
	RawMaterials map[string]float64
	PriceUSD     float64
}

// ComponentMatch is one ranked search result.
type ComponentMatch struct {
	PartNumber   string
	Name         string
	WeightKg     float64
	RawMaterials map[string]float64
	PriceUSD     float64
	Score        float64
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	var c client.Client
	var err error
	if apiKey != "" {
		c, err = client.NewClient(context.Background(), client.Config{Address: endpoint, APIKey: apiKey})
	} else {
		c, err = client.NewGrpcClient(context.Background(), endpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Known mechanical components with weight and material data",
		Fields: []*entity.Field{
			{
				Name:       "component_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.vectorDim)},
			},
			{
				Name:       "part_number",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "name",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "material",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "256"},
			},
			{
				Name:       "dimensions",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "256"},
			},
			{
				Name:     "weight_kg",
				DataType: entity.FieldTypeDouble,
			},
			{
				Name:       "raw_materials",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "2048"},
			},
			{
				Name:     "price_usd",
				DataType: entity.FieldTypeDouble,
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index params: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, components []KnownComponent) error {
	if len(components) == 0 {
		return nil
	}

	ids := make([]string, len(components))
	embeddings := make([][]float32, len(components))
	partNumbers := make([]string, len(components))
	names := make([]string, len(components))
	materials := make([]string, len(components))
	dimensions := make([]string, len(components))
	weights := make([]float64, len(components))
	rawMaterials := make([]string, len(components))
	prices := make([]float64, len(components))

	for i, comp := range components {
		ids[i] = comp.ID
		embeddings[i] = comp.Embedding
		partNumbers[i] = comp.PartNumber
		names[i] = comp.Name
		materials[i] = comp.Material
		dimensions[i] = comp.Dimensions
		weights[i] = comp.WeightKg
		prices[i] = comp.PriceUSD

		encoded, err := json.Marshal(comp.RawMaterials)
		if err != nil {
			return fmt.Errorf("failed to encode raw materials for %q: %w", comp.ID, err)
		}
		rawMaterials[i] = string(encoded)
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("component_id", ids),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("part_number", partNumbers),
		entity.NewColumnVarChar("name", names),
		entity.NewColumnVarChar("material", materials),
		entity.NewColumnVarChar("dimensions", dimensions),
		entity.NewColumnDouble("weight_kg", weights),
		entity.NewColumnVarChar("raw_materials", rawMaterials),
		entity.NewColumnDouble("price_usd", prices),
	)
	if err != nil {
		return fmt.Errorf("failed to insert components: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Components inserted into index", zap.Int("count", len(components)))

	return nil
}

// Search returns the topK nearest known components for the given query
// vector, best match first. An empty result is valid.
func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ComponentMatch, error) {
	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"part_number", "name", "weight_kg", "raw_materials", "price_usd"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]ComponentMatch, 0)
	for _, sr := range searchResult {
		partNumberCol := sr.Fields.GetColumn("part_number")
		nameCol := sr.Fields.GetColumn("name")
		weightCol := sr.Fields.GetColumn("weight_kg")
		rawMaterialsCol := sr.Fields.GetColumn("raw_materials")
		priceCol := sr.Fields.GetColumn("price_usd")

		for i := 0; i < sr.ResultCount; i++ {
			partNumber, _ := partNumberCol.Get(i)
			name, _ := nameCol.Get(i)
			weight, _ := weightCol.Get(i)
			rawJSON, _ := rawMaterialsCol.Get(i)
			price, _ := priceCol.Get(i)

			var materials map[string]float64
			if s, ok := rawJSON.(string); ok && s != "" {
				if err := json.Unmarshal([]byte(s), &materials); err != nil {
					logger.Warn("Failed to decode indexed raw materials",
						zap.Any("part_number", partNumber), zap.Error(err))
					materials = nil
				}
			}

			matches = append(matches, ComponentMatch{
				PartNumber:   partNumber.(string),
				Name:         name.(string),
				WeightKg:     weight.(float64),
				RawMaterials: materials,
				PriceUSD:     price.(float64),
				Score:        float64(sr.Scores[i]),
			})
		}
	}

	logger.Debug("Component index search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(matches)),
	)

	return matches, nil
}
