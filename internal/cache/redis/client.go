package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bomlens/backend/internal/metrics"
	"github.com/bomlens/backend/pkg/logger"
)

// Client caches search-key embeddings so repeat analyses of similar products
// do not re-bill the embedding API. The cache is best-effort: callers treat
// every failure as a miss.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis cache initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) GetEmbedding(ctx context.Context, keyHash string) ([]float32, bool) {
	data, err := c.client.Get(ctx, "embedding:"+keyHash).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
		return nil, false
	}
	if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
		return nil, false
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		logger.Warn("Embedding cache entry corrupt", zap.String("key", keyHash), zap.Error(err))
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues("embedding").Inc()
	return embedding, true
}

func (c *Client) SetEmbedding(ctx context.Context, keyHash string, embedding []float32) {
	data, err := json.Marshal(embedding)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, "embedding:"+keyHash, data, c.ttl).Err(); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}
}
