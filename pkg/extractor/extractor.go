// Package extractor turns chunk text into candidate entities and
// relationships. The production path calls an OpenAI-compatible model with
// rate limiting, retries and a circuit breaker; when that path is down, a
// chain of fallback strategies keeps documents moving at reduced quality.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soundprediction/akgraph/pkg/types"
)

// ErrNoResult signals that a strategy produced nothing for this chunk.
// The chain treats it as "try the next strategy", not as a failure.
var ErrNoResult = errors.New("extractor: no result")

// Extraction method names recorded on results.
const (
	MethodLLM     = "llm"
	MethodPattern = "pattern_matching"
	MethodNoop    = "noop"
)

// Request carries one chunk plus the context that guides extraction.
type Request struct {
	ChunkText string
	Domain    string
	Subdomain string
	// Known canonical types for the document's scope, passed as hints.
	EntityTypes       []string
	RelationshipTypes []string
}

// Result is one strategy's output for a chunk.
type Result struct {
	Entities      []types.CandidateEntity
	Relationships []types.CandidateRelationship
	// Method names the strategy that produced the result.
	Method string
}

// Extractor proposes candidates for one chunk.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// Chain tries strategies in order until one returns a result. A strategy
// error or ErrNoResult moves on to the next; only when every strategy is
// exhausted does the chain fail.
type Chain struct {
	strategies []Extractor
	logger     *slog.Logger
}

// NewChain builds a chain over the given strategies, tried in order.
func NewChain(logger *slog.Logger, strategies ...Extractor) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{strategies: strategies, logger: logger}
}

func (c *Chain) Name() string { return "chain" }

// Primary returns the name of the first strategy, the one whose results
// are considered full quality. Anything else on a result marks the chunk
// as degraded.
func (c *Chain) Primary() string {
	if len(c.strategies) == 0 {
		return ""
	}
	return c.strategies[0].Name()
}

// Extract runs the strategies in order. The returned result's Method
// records which strategy produced it, so callers can tell degraded chunks
// from healthy ones.
func (c *Chain) Extract(ctx context.Context, req Request) (*Result, error) {
	var errs []error
	for _, strategy := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := strategy.Extract(ctx, req)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrNoResult) {
			c.logger.Warn("extraction strategy failed, trying next",
				"strategy", strategy.Name(), "error", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", strategy.Name(), err))
	}
	if len(errs) == 0 {
		return nil, ErrNoResult
	}
	return nil, fmt.Errorf("all extraction strategies failed: %w", errors.Join(errs...))
}

// Noop is the terminal fallback: it always succeeds with an empty result,
// so a document completes (degraded) instead of failing when nothing can
// extract.
type Noop struct{}

func (Noop) Name() string { return MethodNoop }

func (Noop) Extract(ctx context.Context, req Request) (*Result, error) {
	return &Result{Method: MethodNoop}, nil
}
