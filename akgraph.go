package akgraph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soundprediction/akgraph/pkg/analyzer"
	"github.com/soundprediction/akgraph/pkg/config"
	"github.com/soundprediction/akgraph/pkg/docstore"
	"github.com/soundprediction/akgraph/pkg/domaincache"
	"github.com/soundprediction/akgraph/pkg/driver"
	"github.com/soundprediction/akgraph/pkg/extractor"
	"github.com/soundprediction/akgraph/pkg/resolver"
	"github.com/soundprediction/akgraph/pkg/typeresolver"
	"github.com/soundprediction/akgraph/pkg/types"
	"github.com/soundprediction/akgraph/pkg/writer"
)

// Akgraph is the main interface for incremental knowledge graph
// construction. It turns raw documents into deduplicated entities and
// relationships in the backing graph store.
type Akgraph interface {
	// ProcessDocument runs one document through the full pipeline:
	// analysis, chunking, extraction, resolution, and graph writes.
	// Chunk-level failures are contained and reported on the result;
	// the returned error covers only document-level failures.
	ProcessDocument(ctx context.Context, doc types.Document) (*types.DocumentResult, error)

	// ProcessDocuments processes a batch of documents concurrently. One
	// document's failure never aborts its siblings.
	ProcessDocuments(ctx context.Context, docs []types.Document) (*types.BatchResult, error)

	// Stats reports aggregate graph counts.
	Stats(ctx context.Context) (driver.Stats, error)

	// EntityTypes returns the distinct canonical entity types present
	// in the graph.
	EntityTypes(ctx context.Context) ([]string, error)

	// Close releases all underlying resources.
	Close(ctx context.Context) error
}

// Client is the main implementation of the Akgraph interface.
type Client struct {
	store         driver.GraphStore
	docs          docstore.Store
	cache         *domaincache.Cache
	analyzer      *analyzer.Analyzer
	extractor     extractor.Extractor
	typeResolver  *typeresolver.Resolver
	coref         *resolver.Coref
	entities      *resolver.EntityResolver
	relationships *resolver.RelationshipResolver
	writer        *writer.Writer
	cfg           *config.Config
	logger        *slog.Logger

	refreshMu       sync.Mutex
	lastTypeRefresh time.Time
}

var _ Akgraph = (*Client)(nil)

// NewClient assembles a client from pre-built components. Most callers
// should use Open, which builds the components from configuration.
func NewClient(store driver.GraphStore, docs docstore.Store, cache *domaincache.Cache, extract extractor.Extractor, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: graph store is required", ErrConfiguration)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if docs == nil {
		docs = docstore.NewMemory()
	}
	if cache == nil {
		c, err := domaincache.OpenInMemory()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		cache = c
	}
	if extract == nil {
		extract = extractor.NewChain(logger, extractor.NewPattern(), extractor.Noop{})
	}

	analyzerOpts := []analyzer.Option{analyzer.WithLogger(logger)}
	if cfg.Extractor.Provider == "openai" && cfg.Extractor.APIKey != "" {
		analyzerOpts = append(analyzerOpts, analyzer.WithClassifier(
			analyzer.NewOpenAIClassifier(cfg.Extractor.APIKey, cfg.Extractor.BaseURL, cfg.Extractor.Model)))
	}

	relOpts := []resolver.RelationshipResolverOption{resolver.WithRelationshipLogger(logger)}
	if !cfg.Pipeline.RelationshipDedup {
		relOpts = append(relOpts, resolver.WithDedupDisabled())
	}

	var coref *resolver.Coref
	if cfg.Pipeline.CoreferenceResolution {
		coref = resolver.NewCoref(logger)
	}

	return &Client{
		store:     store,
		docs:      docs,
		cache:     cache,
		analyzer:  analyzer.New(cache, analyzerOpts...),
		extractor: extract,
		typeResolver: typeresolver.New(
			typeresolver.WithThreshold(cfg.Pipeline.TypeSimilarityThreshold),
			typeresolver.WithMaxCompare(cfg.Pipeline.MaxComparedTypes),
		),
		coref: coref,
		entities: resolver.NewEntityResolver(store,
			resolver.WithSameTypeThreshold(cfg.Pipeline.EntitySimilarityThreshold),
			resolver.WithCrossTypeThreshold(cfg.Pipeline.CrossTypeSimilarityThreshold),
			resolver.WithLookupTimeout(time.Duration(cfg.Pipeline.LookupTimeout)*time.Second),
			resolver.WithLogger(logger),
		),
		relationships: resolver.NewRelationshipResolver(store, relOpts...),
		writer: writer.New(store,
			writer.WithBatchSize(cfg.Pipeline.WriteBatchSize),
			writer.WithLogger(logger),
		),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// GetStore returns the underlying graph store.
func (c *Client) GetStore() driver.GraphStore {
	return c.store
}

// GetTypeResolver returns the type registry.
func (c *Client) GetTypeResolver() *typeresolver.Resolver {
	return c.typeResolver
}

// Stats reports aggregate graph counts.
func (c *Client) Stats(ctx context.Context) (driver.Stats, error) {
	return c.store.Stats(ctx)
}

// EntityTypes returns the distinct canonical entity types in the graph.
func (c *Client) EntityTypes(ctx context.Context) ([]string, error) {
	return c.store.DistinctEntityTypes(ctx)
}

// Close closes the graph store, the document store, and the domain cache.
func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if err := c.store.Close(ctx); err != nil {
		firstErr = err
	}
	if err := c.docs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
