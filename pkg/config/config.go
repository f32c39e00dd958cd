package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Milvus     MilvusConfig
	Redis      RedisConfig
	SQLite     SQLiteConfig
	LLM        LLMConfig
	Enrichment EnrichmentConfig
	Tariff     TariffConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host                 string
	Port                 int
	ReadTimeout          int
	WriteTimeout         int
	BodyLimit            int
	MaxRequestsPerMinute int
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type SQLiteConfig struct {
	Path string
}

type LLMConfig struct {
	APIKey          string
	BaseURL         string
	VisionModel     string
	EstimationModel string
	ReasoningModel  string
	EmbeddingModel  string
	Temperature     float32
	MaxTokens       int
	TimeoutSec      int
}

// EnrichmentConfig carries the policy constants for component matching.
// MatchThreshold is the minimum index similarity for accepting a database
// match instead of falling back to AI estimation.
type EnrichmentConfig struct {
	Concurrency    int
	MatchThreshold float64
	RetryDelayMS   int
	SearchTopK     int
	CallTimeoutSec int
}

type TariffConfig struct {
	DefaultOrigin      string
	DefaultDestination string
	// FallbackUnitValueUSD values a kilogram of unrecognized material when
	// no declared value is given.
	FallbackUnitValueUSD float64
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bomlens")

	viper.SetEnvPrefix("BOMLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 60)
	viper.SetDefault("server.writeTimeout", 120)
	viper.SetDefault("server.bodyLimit", 16*1024*1024)
	viper.SetDefault("server.maxRequestsPerMinute", 30)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "known_components")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlHours", 24)

	viper.SetDefault("sqlite.path", "./data/bomlens.db")

	viper.SetDefault("llm.visionModel", "gpt-4o")
	viper.SetDefault("llm.estimationModel", "gpt-4o-mini")
	viper.SetDefault("llm.reasoningModel", "gpt-4o")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("enrichment.concurrency", 6)
	viper.SetDefault("enrichment.matchThreshold", 0.75)
	viper.SetDefault("enrichment.retryDelayMS", 500)
	viper.SetDefault("enrichment.searchTopK", 3)
	viper.SetDefault("enrichment.callTimeoutSec", 30)

	viper.SetDefault("tariff.defaultOrigin", "China")
	viper.SetDefault("tariff.defaultDestination", "United States")
	viper.SetDefault("tariff.fallbackUnitValueUSD", 5.0)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
