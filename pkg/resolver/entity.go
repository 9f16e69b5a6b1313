package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/akgraph/pkg/driver"
	"github.com/soundprediction/akgraph/pkg/similarity"
	"github.com/soundprediction/akgraph/pkg/types"
)

// Default resolution parameters.
const (
	DefaultSameTypeThreshold  = 0.8
	DefaultCrossTypeThreshold = 0.95
	DefaultLookupTimeout      = 5 * time.Second
)

// ErrDedupTimeout marks a lookup that exceeded its bound. The resolver
// recovers by creating a new entity, so callers see this through the
// Degraded flag rather than as a returned error.
var ErrDedupTimeout = errors.New("resolver: dedup lookup timed out")

// EntityResolution is the outcome of resolving one candidate.
type EntityResolution struct {
	Entity  *types.ResolvedEntity
	Created bool
	// Degraded is set when a lookup timeout forced a create-new fallback;
	// the result may duplicate an existing entity until a later pass
	// merges them.
	Degraded bool
}

// EntityResolver maps candidate entities onto canonical graph entities.
// Candidates must arrive with their type already canonicalized.
type EntityResolver struct {
	store              driver.GraphStore
	sameTypeThreshold  float64
	crossTypeThreshold float64
	lookupTimeout      time.Duration
	logger             *slog.Logger
}

// EntityResolverOption configures an EntityResolver.
type EntityResolverOption func(*EntityResolver)

// WithSameTypeThreshold overrides the same-type fuzzy threshold.
func WithSameTypeThreshold(t float64) EntityResolverOption {
	return func(r *EntityResolver) { r.sameTypeThreshold = t }
}

// WithCrossTypeThreshold overrides the cross-type fuzzy threshold.
func WithCrossTypeThreshold(t float64) EntityResolverOption {
	return func(r *EntityResolver) { r.crossTypeThreshold = t }
}

// WithLookupTimeout bounds each candidate's lookup phase.
func WithLookupTimeout(d time.Duration) EntityResolverOption {
	return func(r *EntityResolver) { r.lookupTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EntityResolverOption {
	return func(r *EntityResolver) { r.logger = l }
}

// NewEntityResolver builds a resolver over the given store.
func NewEntityResolver(store driver.GraphStore, opts ...EntityResolverOption) *EntityResolver {
	r := &EntityResolver{
		store:              store,
		sameTypeThreshold:  DefaultSameTypeThreshold,
		crossTypeThreshold: DefaultCrossTypeThreshold,
		lookupTimeout:      DefaultLookupTimeout,
		logger:             slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve decides whether candidate denotes an entity already in the graph
// or in the current batch. Matching runs three levels in order, first hit
// wins: exact normalized name and type, same-type fuzzy at the standard
// threshold, cross-type fuzzy at the strict threshold. A miss creates a
// new entity. Lookups share one timeout; on expiry the resolver falls back
// to creating a new entity and marks the resolution degraded.
func (r *EntityResolver) Resolve(ctx context.Context, candidate types.CandidateEntity, documentID string, chunkIndex int, batch *Batch) (EntityResolution, error) {
	if err := candidate.Validate(); err != nil {
		return EntityResolution{}, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	match, err := r.findMatch(lookupCtx, candidate, batch)
	if err != nil {
		if timedOut(lookupCtx, err) {
			r.logger.Warn("entity lookup timed out, creating new entity",
				"name", candidate.Name,
				"type", candidate.Type,
				"document_id", documentID,
				"chunk", chunkIndex,
			)
			res := r.create(candidate, documentID, chunkIndex, batch)
			res.Degraded = true
			return res, nil
		}
		return EntityResolution{}, fmt.Errorf("entity lookup for %q: %w", candidate.Name, err)
	}

	if match != nil {
		r.reuse(match, candidate, documentID, chunkIndex, batch)
		return EntityResolution{Entity: match}, nil
	}
	return r.create(candidate, documentID, chunkIndex, batch), nil
}

// findMatch runs the three matching levels. A nil entity with nil error
// means no match.
func (r *EntityResolver) findMatch(ctx context.Context, candidate types.CandidateEntity, batch *Batch) (*types.ResolvedEntity, error) {
	normalized := similarity.Normalize(candidate.Name)

	// level 1: exact normalized name and type
	if e := batch.entityByNameType(normalized, candidate.Type); e != nil {
		return e, nil
	}
	stored, err := r.store.EntityByNameType(ctx, normalized, candidate.Type)
	if err == nil {
		return r.adopt(stored, batch), nil
	}
	if !errors.Is(err, driver.ErrNotFound) {
		return nil, err
	}

	// level 2: fuzzy within the same type
	pool, err := r.store.EntitiesByType(ctx, candidate.Type)
	if err != nil {
		return nil, err
	}
	pool = append(pool, batch.entitiesByType(candidate.Type)...)
	if best := r.bestMatch(candidate.Name, pool, r.sameTypeThreshold); best != nil {
		return r.adopt(best, batch), nil
	}

	// level 3: fuzzy across all types at the strict threshold, absorbing
	// type-classification drift between extractions
	pool, err = r.store.AllEntities(ctx)
	if err != nil {
		return nil, err
	}
	pool = append(pool, batch.Entities...)
	if best := r.bestMatch(candidate.Name, pool, r.crossTypeThreshold); best != nil {
		return r.adopt(best, batch), nil
	}
	return nil, nil
}

// adopt routes a store-loaded entity through the batch index so repeat
// mentions in this chunk reuse the same in-memory record.
func (r *EntityResolver) adopt(e *types.ResolvedEntity, batch *Batch) *types.ResolvedEntity {
	key := entityKey(similarity.Normalize(e.Name), e.Type)
	if tracked, ok := batch.entityIndex[key]; ok {
		return tracked
	}
	batch.trackEntity(e)
	return e
}

// bestMatch scores candidateName against every entity in pool and returns
// the best one at or above threshold. Ties break on higher stored
// confidence, then most recent reinforcement, then id for determinism.
func (r *EntityResolver) bestMatch(candidateName string, pool []*types.ResolvedEntity, threshold float64) *types.ResolvedEntity {
	var best *types.ResolvedEntity
	bestScore := 0.0
	for _, e := range pool {
		score := similarity.Score(candidateName, e.Name)
		if score < threshold {
			continue
		}
		if best == nil || score > bestScore || (score == bestScore && preferOver(e, best)) {
			best = e
			bestScore = score
		}
	}
	return best
}

func preferOver(a, b *types.ResolvedEntity) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if !a.LastSeenAt.Equal(b.LastSeenAt) {
		return a.LastSeenAt.After(b.LastSeenAt)
	}
	return a.ID < b.ID
}

// reuse reinforces an existing entity with a new observation: confidence
// keeps the maximum seen, a differing surface form is kept as an alias,
// and provenance is appended.
func (r *EntityResolver) reuse(entity *types.ResolvedEntity, candidate types.CandidateEntity, documentID string, chunkIndex int, batch *Batch) {
	if candidate.Confidence > entity.Confidence {
		entity.Confidence = candidate.Confidence
	}
	if similarity.Normalize(candidate.Name) != similarity.Normalize(entity.Name) {
		entity.AddAlias(candidate.Name)
	}
	for _, alias := range candidate.Aliases {
		entity.AddAlias(alias)
	}
	for k, v := range candidate.Properties {
		if entity.Properties == nil {
			entity.Properties = make(map[string]any)
		}
		if _, ok := entity.Properties[k]; !ok {
			entity.Properties[k] = v
		}
	}
	batch.addProvenance(types.Provenance{
		RecordID:   entity.ID,
		RecordKind: types.RecordKindEntity,
		DocumentID: documentID,
		ChunkIndex: chunkIndex,
		Timestamp:  time.Now().UTC(),
	})
}

func (r *EntityResolver) create(candidate types.CandidateEntity, documentID string, chunkIndex int, batch *Batch) EntityResolution {
	entity := &types.ResolvedEntity{
		ID:         uuid.New().String(),
		Name:       candidate.Name,
		Type:       candidate.Type,
		DocumentID: documentID,
		Confidence: candidate.Confidence,
		Aliases:    append([]string(nil), candidate.Aliases...),
		CreatedAt:  time.Now().UTC(),
	}
	if len(candidate.Properties) > 0 {
		entity.Properties = make(map[string]any, len(candidate.Properties))
		for k, v := range candidate.Properties {
			entity.Properties[k] = v
		}
	}
	batch.addEntity(entity)
	batch.addProvenance(types.Provenance{
		RecordID:   entity.ID,
		RecordKind: types.RecordKindEntity,
		DocumentID: documentID,
		ChunkIndex: chunkIndex,
		Timestamp:  time.Now().UTC(),
	})
	return EntityResolution{Entity: entity, Created: true}
}

func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		(ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded))
}
