// Package config loads application configuration from file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ErrInvalid marks configuration that cannot start the engine.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the application.
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Graph database configuration
	Graph GraphConfig `mapstructure:"graph"`

	// Extractor configuration
	Extractor ExtractorConfig `mapstructure:"extractor"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Cache configuration
	Cache CacheConfig `mapstructure:"cache"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// GraphConfig holds graph database configuration.
type GraphConfig struct {
	Driver   string `mapstructure:"driver"` // neo4j, memory
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// ExtractorConfig holds LLM extractor configuration.
type ExtractorConfig struct {
	Provider     string  `mapstructure:"provider"` // openai, none
	Model        string  `mapstructure:"model"`
	APIKey       string  `mapstructure:"api_key"`
	BaseURL      string  `mapstructure:"base_url"`
	Temperature  float32 `mapstructure:"temperature"`
	RatePerSec   float64 `mapstructure:"rate_per_sec"`
	RateBurst    int     `mapstructure:"rate_burst"`
	MaxRetries   int     `mapstructure:"max_retries"`
	InitialDelay int     `mapstructure:"initial_delay"` // in seconds
}

// PipelineConfig holds resolution pipeline configuration.
type PipelineConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	Concurrency  int `mapstructure:"concurrency"`

	EntitySimilarityThreshold    float64 `mapstructure:"entity_similarity_threshold"`
	CrossTypeSimilarityThreshold float64 `mapstructure:"cross_type_similarity_threshold"`
	TypeSimilarityThreshold      float64 `mapstructure:"type_similarity_threshold"`

	LookupTimeout         int  `mapstructure:"lookup_timeout"` // in seconds
	RelationshipDedup     bool `mapstructure:"relationship_dedup"`
	CoreferenceResolution bool `mapstructure:"coreference_resolution"`
	WriteBatchSize        int  `mapstructure:"write_batch_size"`
	TypeRefreshInterval   int  `mapstructure:"type_refresh_interval"` // in seconds
	FallbackTypeLimit     int  `mapstructure:"fallback_type_limit"`
	MaxComparedTypes      int  `mapstructure:"max_compared_types"`
}

// CacheConfig holds embedded cache configuration.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// TelemetryConfig holds telemetry configuration.
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// CircuitBreakerConfig holds configuration for circuit breaking.
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a configuration populated with defaults only, for
// embedding the library without a config file.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Host: "localhost", Port: 8080, Mode: "release"},
		Graph: GraphConfig{
			Driver:   "memory",
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Extractor: ExtractorConfig{
			Provider:     "none",
			Model:        "gpt-4o-mini",
			Temperature:  0.1,
			RatePerSec:   2.0,
			RateBurst:    4,
			MaxRetries:   3,
			InitialDelay: 1,
		},
		Pipeline: PipelineConfig{
			ChunkSize:                    1000,
			ChunkOverlap:                 200,
			Concurrency:                  5,
			EntitySimilarityThreshold:    0.8,
			CrossTypeSimilarityThreshold: 0.95,
			TypeSimilarityThreshold:      0.8,
			LookupTimeout:                5,
			RelationshipDedup:            true,
			CoreferenceResolution:        true,
			WriteBatchSize:               100,
			TypeRefreshInterval:          300,
			FallbackTypeLimit:            10,
			MaxComparedTypes:             200,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      2,
			Interval:         60,
			Timeout:          30,
			ReadyToTripRatio: 0.6,
		},
	}
}

// Validate rejects configurations the engine cannot run with. Called at
// startup; a failure here is fatal.
func (c *Config) Validate() error {
	if c.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalid, c.Pipeline.ChunkSize)
	}
	if c.Pipeline.ChunkOverlap < 0 || c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size %d)",
			ErrInvalid, c.Pipeline.ChunkOverlap, c.Pipeline.ChunkSize)
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalid, c.Pipeline.Concurrency)
	}
	for name, threshold := range map[string]float64{
		"entity_similarity_threshold":     c.Pipeline.EntitySimilarityThreshold,
		"cross_type_similarity_threshold": c.Pipeline.CrossTypeSimilarityThreshold,
		"type_similarity_threshold":       c.Pipeline.TypeSimilarityThreshold,
	} {
		if threshold <= 0 || threshold > 1 {
			return fmt.Errorf("%w: %s must be in (0, 1], got %v", ErrInvalid, name, threshold)
		}
	}
	switch c.Graph.Driver {
	case "neo4j", "memory":
	default:
		return fmt.Errorf("%w: unknown graph driver %q", ErrInvalid, c.Graph.Driver)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("graph.driver", "neo4j")
	viper.SetDefault("graph.uri", "bolt://localhost:7687")
	viper.SetDefault("graph.username", "neo4j")
	viper.SetDefault("graph.password", "")
	viper.SetDefault("graph.database", "neo4j")

	viper.SetDefault("extractor.provider", "openai")
	viper.SetDefault("extractor.model", "gpt-4o-mini")
	viper.SetDefault("extractor.temperature", 0.1)
	viper.SetDefault("extractor.rate_per_sec", 2.0)
	viper.SetDefault("extractor.rate_burst", 4)
	viper.SetDefault("extractor.max_retries", 3)
	viper.SetDefault("extractor.initial_delay", 1)

	viper.SetDefault("pipeline.chunk_size", 1000)
	viper.SetDefault("pipeline.chunk_overlap", 200)
	viper.SetDefault("pipeline.concurrency", 5)
	viper.SetDefault("pipeline.entity_similarity_threshold", 0.8)
	viper.SetDefault("pipeline.cross_type_similarity_threshold", 0.95)
	viper.SetDefault("pipeline.type_similarity_threshold", 0.8)
	viper.SetDefault("pipeline.lookup_timeout", 5)
	viper.SetDefault("pipeline.relationship_dedup", true)
	viper.SetDefault("pipeline.coreference_resolution", true)
	viper.SetDefault("pipeline.write_batch_size", 100)
	viper.SetDefault("pipeline.type_refresh_interval", 300)
	viper.SetDefault("pipeline.fallback_type_limit", 10)
	viper.SetDefault("pipeline.max_compared_types", 200)

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 2)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("cache.dir", fmt.Sprintf("%s/.akgraph/cache", home))
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.akgraph/telemetry", home))
	}
}

// overrideWithEnv overrides config with environment variables.
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Extractor.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Extractor.BaseURL = baseURL
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Graph.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Graph.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Graph.Password = pass
	}
	if driver := os.Getenv("GRAPH_DRIVER"); driver != "" {
		config.Graph.Driver = driver
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if dir := os.Getenv("AKGRAPH_CACHE_DIR"); dir != "" {
		config.Cache.Dir = dir
	}
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
