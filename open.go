package akgraph

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/soundprediction/akgraph/pkg/config"
	"github.com/soundprediction/akgraph/pkg/docstore"
	"github.com/soundprediction/akgraph/pkg/domaincache"
	"github.com/soundprediction/akgraph/pkg/driver"
	"github.com/soundprediction/akgraph/pkg/extractor"
)

// Open builds a fully wired client from configuration: graph store,
// document store, domain cache, and the extraction chain.
func Open(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	var store driver.GraphStore
	switch cfg.Graph.Driver {
	case "neo4j":
		s, err := driver.NewNeo4jStore(cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
		if err != nil {
			return nil, fmt.Errorf("%w: neo4j: %v", ErrConfiguration, err)
		}
		store = s
	case "memory":
		store = driver.NewMemoryStore()
	default:
		return nil, fmt.Errorf("%w: unknown graph driver %q", ErrConfiguration, cfg.Graph.Driver)
	}

	var docs docstore.Store
	var cache *domaincache.Cache
	if cfg.Cache.Dir != "" {
		d, err := docstore.OpenBadger(filepath.Join(cfg.Cache.Dir, "documents"))
		if err != nil {
			return nil, fmt.Errorf("%w: document store: %v", ErrConfiguration, err)
		}
		docs = d
		cache, err = domaincache.Open(filepath.Join(cfg.Cache.Dir, "domain"))
		if err != nil {
			return nil, fmt.Errorf("%w: domain cache: %v", ErrConfiguration, err)
		}
	} else {
		docs = docstore.NewMemory()
		c, err := domaincache.OpenInMemory()
		if err != nil {
			return nil, fmt.Errorf("%w: domain cache: %v", ErrConfiguration, err)
		}
		cache = c
	}

	chain := buildExtractorChain(cfg, logger)

	return NewClient(store, docs, cache, chain, cfg, logger)
}

// buildExtractorChain assembles the strategy chain: the LLM extractor
// wrapped with retry and a circuit breaker when configured, then the
// pattern fallback, then the terminal noop.
func buildExtractorChain(cfg *config.Config, logger *slog.Logger) extractor.Extractor {
	strategies := make([]extractor.Extractor, 0, 3)

	if cfg.Extractor.Provider == "openai" && cfg.Extractor.APIKey != "" {
		var llm extractor.Extractor = extractor.NewOpenAI(cfg.Extractor.APIKey, cfg.Extractor.BaseURL,
			extractor.WithModel(cfg.Extractor.Model),
			extractor.WithTemperature(cfg.Extractor.Temperature),
			extractor.WithRateLimit(rate.Limit(cfg.Extractor.RatePerSec), cfg.Extractor.RateBurst),
			extractor.WithOpenAILogger(logger),
		)

		llm = extractor.NewRetry(llm, &extractor.RetryConfig{
			MaxRetries:        cfg.Extractor.MaxRetries,
			InitialDelay:      time.Duration(cfg.Extractor.InitialDelay) * time.Second,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2.0,
		})

		if cfg.CircuitBreaker.Enabled {
			llm = extractor.NewBreaker(llm, &extractor.BreakerConfig{
				MaxRequests:      cfg.CircuitBreaker.MaxRequests,
				Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
				Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
				ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
			}, logger)
		}

		strategies = append(strategies, llm)
	}

	strategies = append(strategies, extractor.NewPattern(), extractor.Noop{})
	return extractor.NewChain(logger, strategies...)
}
