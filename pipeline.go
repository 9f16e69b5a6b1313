package akgraph

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/soundprediction/akgraph/pkg/chunker"
	"github.com/soundprediction/akgraph/pkg/extractor"
	"github.com/soundprediction/akgraph/pkg/resolver"
	"github.com/soundprediction/akgraph/pkg/similarity"
	"github.com/soundprediction/akgraph/pkg/typeresolver"
	"github.com/soundprediction/akgraph/pkg/types"
	"github.com/soundprediction/akgraph/pkg/utils"
)

// usageTally accumulates one document's type observations so the flush at
// the end of the run records only this document's increments.
type usageTally map[string]*types.TypeUsage

func (t usageTally) observe(canonical string, kind types.TypeKind, confidence float64) {
	key := string(kind) + "\x00" + canonical
	u, ok := t[key]
	if !ok {
		u = &types.TypeUsage{Type: canonical, Kind: kind, Source: types.SourceExtractor}
		t[key] = u
	}
	u.AvgConfidence = (u.AvgConfidence*float64(u.UsageCount) + confidence) / float64(u.UsageCount+1)
	u.UsageCount++
}

// ProcessDocument runs one document through the pipeline. The document
// moves through analysis, chunking, and then a per-chunk loop of
// extraction, resolution, and graph writes. Each chunk's records are
// committed before the next chunk starts, so later chunks deduplicate
// against earlier ones.
func (c *Client) ProcessDocument(ctx context.Context, doc types.Document) (*types.DocumentResult, error) {
	start := time.Now()
	result := &types.DocumentResult{
		DocumentID: doc.ID,
		Status:     types.StatusPending,
	}

	if err := doc.Validate(); err != nil {
		result.Status = types.StatusFailed
		return result, fmt.Errorf("%w: %v", ErrDocumentInvalid, err)
	}

	ctx = context.WithValue(ctx, types.ContextKeyDocumentID, doc.ID)

	// Unchanged documents are skipped outright.
	if existing, err := c.docs.GetByHash(ctx, doc.ContentHash()); err == nil && existing.ID == doc.ID {
		c.logger.InfoContext(ctx, "document unchanged, skipping", "document_id", doc.ID)
		result.Status = types.StatusSkipped
		result.ProcessingTime = time.Since(start)
		return result, nil
	}

	result.Status = types.StatusAnalyzing
	analysis, err := c.analyzer.Analyze(ctx, &doc)
	if err != nil {
		// The analyzer has its own fallbacks; an error here means even
		// the keyword heuristic could not run.
		result.Status = types.StatusFailed
		return result, err
	}

	scope := c.scopeFor(&doc, analysis)
	c.seedTypes(ctx, scope, analysis)
	c.refreshTypeCache(ctx)

	result.Status = types.StatusChunking
	chunks, err := chunker.Split(doc.ID, doc.Content, c.cfg.Pipeline.ChunkSize, c.cfg.Pipeline.ChunkOverlap)
	if err != nil {
		result.Status = types.StatusFailed
		return result, fmt.Errorf("chunking %s: %w", doc.ID, err)
	}
	result.Chunks = len(chunks)

	tally := make(usageTally)
	for _, chunk := range chunks {
		if ctx.Err() != nil {
			result.Status = types.StatusFailed
			result.ProcessingTime = time.Since(start)
			return result, ctx.Err()
		}
		c.processChunk(ctx, &doc, chunk, scope, analysis, result, tally)
	}

	if err := c.docs.Put(ctx, &doc); err != nil {
		c.logger.WarnContext(ctx, "failed to record document", "document_id", doc.ID, "error", err)
	}
	c.flushTypeUsage(ctx, scope, tally)

	if result.Degraded() {
		result.Status = types.StatusDegraded
	} else {
		result.Status = types.StatusCompleted
	}
	result.ProcessingTime = time.Since(start)

	c.logger.InfoContext(ctx, "document processed",
		"document_id", doc.ID,
		"status", result.Status,
		"chunks", result.Chunks,
		"entities_created", result.EntitiesCreated,
		"relationships_created", result.RelationshipsCreated,
		"duration", result.ProcessingTime,
	)
	return result, nil
}

// processChunk extracts, resolves, and commits one chunk. Failures are
// contained: they are recorded on the result and the pipeline moves on.
func (c *Client) processChunk(ctx context.Context, doc *types.Document, chunk types.Chunk, scope typeresolver.Scope, analysis *types.DocumentAnalysis, result *types.DocumentResult, tally usageTally) {
	ctx = context.WithValue(ctx, types.ContextKeyChunkIndex, strconv.Itoa(chunk.Index))

	result.Status = types.StatusExtracting
	extracted, err := c.extractor.Extract(ctx, extractor.Request{
		ChunkText:         chunk.Text,
		Domain:            analysis.Domain,
		Subdomain:         analysis.Subdomain,
		EntityTypes:       c.typeHints(scope, types.KindEntity, analysis.EntityTypes),
		RelationshipTypes: c.typeHints(scope, types.KindRelationship, analysis.RelationshipTypes),
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "chunk extraction failed", "chunk_index", chunk.Index, "error", err)
		result.Errors = append(result.Errors, types.ChunkError{
			ChunkIndex: chunk.Index,
			Stage:      "extract",
			Message:    fmt.Errorf("%w: %v", ErrExtraction, err).Error(),
		})
		return
	}
	degraded := false
	if p, ok := c.extractor.(interface{ Primary() string }); ok && extracted.Method != p.Primary() {
		degraded = true
	}

	if c.coref != nil {
		extracted.Entities, extracted.Relationships = c.coref.Rewrite(extracted.Entities, extracted.Relationships)
	}

	result.Status = types.StatusResolving
	batch := resolver.NewBatch()
	byName := make(map[string]*types.ResolvedEntity, len(extracted.Entities))

	for _, candidate := range extracted.Entities {
		canonical, _ := c.typeResolver.Resolve(candidate.Type, types.KindEntity, scope, candidate.Confidence)
		candidate.Type = canonical
		tally.observe(canonical, types.KindEntity, candidate.Confidence)

		res, err := c.entities.Resolve(ctx, candidate, doc.ID, chunk.Index, batch)
		if err != nil {
			c.logger.WarnContext(ctx, "entity resolution failed",
				"chunk_index", chunk.Index, "entity", candidate.Name, "error", err)
			continue
		}
		if res.Created {
			result.EntitiesCreated++
		} else {
			result.EntitiesReused++
		}
		if res.Degraded {
			degraded = true
		}
		byName[similarity.Normalize(candidate.Name)] = res.Entity
	}

	for _, candidate := range extracted.Relationships {
		source, ok := byName[similarity.Normalize(candidate.SourceName)]
		if !ok {
			result.RelationshipsSkipped++
			continue
		}
		target, ok := byName[similarity.Normalize(candidate.TargetName)]
		if !ok {
			result.RelationshipsSkipped++
			continue
		}

		canonical, _ := c.typeResolver.Resolve(candidate.Type, types.KindRelationship, scope, candidate.Confidence)
		candidate.Type = canonical
		tally.observe(canonical, types.KindRelationship, candidate.Confidence)

		res, err := c.relationships.Resolve(ctx, candidate, source.ID, target.ID, doc.ID, chunk.Index, batch)
		if err != nil {
			c.logger.WarnContext(ctx, "relationship resolution failed",
				"chunk_index", chunk.Index, "type", candidate.Type, "error", err)
			result.RelationshipsSkipped++
			continue
		}
		if res.Created {
			result.RelationshipsCreated++
		}
	}

	result.Status = types.StatusWriting
	written, err := c.writer.Commit(ctx, batch)
	if err != nil {
		result.Errors = append(result.Errors, types.ChunkError{
			ChunkIndex: chunk.Index,
			Stage:      "write",
			Message:    fmt.Errorf("%w: %v", ErrGraphWrite, err).Error(),
		})
		return
	}
	for _, failed := range written.Failed {
		result.Errors = append(result.Errors, types.ChunkError{
			ChunkIndex: chunk.Index,
			Stage:      "write",
			Message:    fmt.Sprintf("%s %s: %v", failed.RecordKind, failed.RecordID, failed.Err),
		})
	}

	if degraded {
		result.DegradedChunks++
	}
}

// ProcessDocuments processes documents concurrently with a bounded worker
// pool. Results are positional.
func (c *Client) ProcessDocuments(ctx context.Context, docs []types.Document) (*types.BatchResult, error) {
	start := time.Now()
	pool := utils.NewWorkerPool(c.cfg.Pipeline.Concurrency,
		func(ctx context.Context, doc types.Document) (*types.DocumentResult, error) {
			return c.ProcessDocument(ctx, doc)
		})

	results, errs := pool.ProcessItems(ctx, docs)

	batch := &types.BatchResult{Results: make([]*types.DocumentResult, len(docs))}
	for i, res := range results {
		if res == nil {
			res = &types.DocumentResult{DocumentID: docs[i].ID, Status: types.StatusFailed}
			if errs[i] != nil {
				res.Errors = []types.ChunkError{{Stage: "document", Message: errs[i].Error()}}
			}
		}
		batch.Results[i] = res

		switch res.Status {
		case types.StatusFailed:
			batch.Failed++
		default:
			batch.Succeeded++
		}
		batch.EntitiesCreated += res.EntitiesCreated
		batch.RelationshipsCreated += res.RelationshipsCreated
	}
	batch.TotalProcessingTime = time.Since(start)
	return batch, nil
}

// scopeFor derives the type-cache namespace for a document. Explicit
// document fields win over the analyzer's classification.
func (c *Client) scopeFor(doc *types.Document, analysis *types.DocumentAnalysis) typeresolver.Scope {
	scope := typeresolver.Scope{Domain: analysis.Domain, Subdomain: analysis.Subdomain}
	if doc.Domain != "" {
		scope.Domain = doc.Domain
	}
	if doc.Subdomain != "" {
		scope.Subdomain = doc.Subdomain
	}
	return scope
}

// seedTypes primes the scope's type registry from the analysis and from
// previously cached usage for the domain.
func (c *Client) seedTypes(ctx context.Context, scope typeresolver.Scope, analysis *types.DocumentAnalysis) {
	for _, t := range analysis.EntityTypes {
		c.typeResolver.Register(t, types.KindEntity, scope, types.SourceCache)
	}
	for _, t := range analysis.RelationshipTypes {
		c.typeResolver.Register(t, types.KindRelationship, scope, types.SourceCache)
	}

	for _, kind := range []types.TypeKind{types.KindEntity, types.KindRelationship} {
		cached, err := c.cache.FallbackTypes(scope.Domain, kind, c.cfg.Pipeline.FallbackTypeLimit)
		if err != nil {
			c.logger.WarnContext(ctx, "fallback type lookup failed", "domain", scope.Domain, "error", err)
			continue
		}
		for _, t := range cached {
			c.typeResolver.Register(t, kind, scope, types.SourceCache)
		}
	}
}

// refreshTypeCache additively registers the entity types currently in the
// graph, at most once per configured interval.
func (c *Client) refreshTypeCache(ctx context.Context) {
	interval := time.Duration(c.cfg.Pipeline.TypeRefreshInterval) * time.Second

	c.refreshMu.Lock()
	due := time.Since(c.lastTypeRefresh) >= interval
	if due {
		c.lastTypeRefresh = time.Now()
	}
	c.refreshMu.Unlock()
	if !due {
		return
	}

	known, err := c.store.DistinctEntityTypes(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "type cache refresh failed", "error", err)
		return
	}
	for _, t := range known {
		c.typeResolver.Register(t, types.KindEntity, typeresolver.GlobalScope, types.SourceGraph)
	}
}

// typeHints merges the registry's known types for the scope with the
// analysis hints, deduplicated and order-preserving.
func (c *Client) typeHints(scope typeresolver.Scope, kind types.TypeKind, fromAnalysis []string) []string {
	known := c.typeResolver.KnownTypes(scope, kind)
	seen := make(map[string]struct{}, len(known)+len(fromAnalysis))
	merged := make([]string, 0, len(known)+len(fromAnalysis))
	for _, t := range append(known, fromAnalysis...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		merged = append(merged, t)
	}
	return merged
}

// flushTypeUsage persists the document's usage observations so future
// runs in the same domain can seed their registries before any
// extraction.
func (c *Client) flushTypeUsage(ctx context.Context, scope typeresolver.Scope, tally usageTally) {
	for _, usage := range tally {
		usage.Domain = scope.Domain
		usage.Subdomain = scope.Subdomain
		if err := c.cache.RecordTypeUsage(*usage); err != nil {
			c.logger.WarnContext(ctx, "type usage flush failed", "type", usage.Type, "error", err)
		}
	}
}
