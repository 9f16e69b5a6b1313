// Package analyzer classifies documents into a domain and subdomain and
// suggests the entity and relationship types to expect. Results are cached
// by content hash; on a cache miss the LLM classifier runs, and when it is
// unavailable a keyword heuristic stands in.
package analyzer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soundprediction/akgraph/pkg/domaincache"
	"github.com/soundprediction/akgraph/pkg/types"
)

// Analysis method names.
const (
	MethodLLM     = "llm"
	MethodKeyword = "keyword_based"
	MethodCached  = "cached"
)

// Classifier is the external document-analysis step, typically LLM-backed.
type Classifier interface {
	Classify(ctx context.Context, title, contentSample string) (*types.DocumentAnalysis, error)
}

// sampleSize bounds how much content the classifier sees.
const sampleSize = 2000

// Analyzer resolves a document's analysis through cache, classifier and
// keyword fallback in that order.
type Analyzer struct {
	cache      *domaincache.Cache
	classifier Classifier
	logger     *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClassifier sets the LLM-backed classifier. Without one the analyzer
// goes straight to the keyword heuristic on cache miss.
func WithClassifier(c Classifier) Option {
	return func(a *Analyzer) { a.classifier = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// New builds an Analyzer over the given cache.
func New(cache *domaincache.Cache, opts ...Option) *Analyzer {
	a := &Analyzer{cache: cache, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze classifies the document. The cache is consulted first so
// near-duplicate content never recomputes; fresh results are written back.
// Analyze never fails outright: when both cache and classifier miss, the
// keyword heuristic produces a lower-confidence analysis.
func (a *Analyzer) Analyze(ctx context.Context, doc *types.Document) (*types.DocumentAnalysis, error) {
	hash := doc.ContentHash()

	if a.cache != nil {
		cached, err := a.cache.GetAnalysis(hash)
		if err == nil {
			a.logger.Debug("analysis cache hit", "document_id", doc.ID, "domain", cached.Domain)
			hit := *cached
			hit.Method = MethodCached
			return &hit, nil
		}
		if !errors.Is(err, domaincache.ErrMiss) {
			a.logger.Warn("analysis cache lookup failed", "document_id", doc.ID, "error", err)
		}
	}

	analysis := a.classify(ctx, doc)

	if a.cache != nil {
		if err := a.cache.PutAnalysis(hash, *analysis); err != nil {
			a.logger.Warn("analysis cache write failed", "document_id", doc.ID, "error", err)
		}
	}
	return analysis, nil
}

func (a *Analyzer) classify(ctx context.Context, doc *types.Document) *types.DocumentAnalysis {
	if a.classifier != nil {
		sample := doc.Content
		if len(sample) > sampleSize {
			sample = sample[:sampleSize]
		}
		analysis, err := a.classifier.Classify(ctx, doc.Title, sample)
		if err == nil && analysis.Domain != "" {
			analysis.Method = MethodLLM
			return analysis
		}
		if err != nil {
			a.logger.Warn("document classification failed, using keyword fallback",
				"document_id", doc.ID, "error", err)
		}
	}
	return keywordAnalysis(doc)
}
