package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/akgraph/pkg/driver"
	"github.com/soundprediction/akgraph/pkg/types"
)

// RelationshipResolution is the outcome of resolving one candidate edge.
type RelationshipResolution struct {
	Relationship *types.ResolvedRelationship
	Created      bool
}

// RelationshipResolver deduplicates candidate relationships between
// already-resolved entities. Candidates must arrive with their type in
// canonical ALL_CAPS form. Dedup can be disabled to let provenance-distinct
// edges of the same type coexist.
type RelationshipResolver struct {
	store  driver.GraphStore
	dedup  bool
	logger *slog.Logger
}

// RelationshipResolverOption configures a RelationshipResolver.
type RelationshipResolverOption func(*RelationshipResolver)

// WithDedupDisabled turns off triple dedup; every candidate creates a new
// edge.
func WithDedupDisabled() RelationshipResolverOption {
	return func(r *RelationshipResolver) { r.dedup = false }
}

// WithRelationshipLogger sets the structured logger.
func WithRelationshipLogger(l *slog.Logger) RelationshipResolverOption {
	return func(r *RelationshipResolver) { r.logger = l }
}

// NewRelationshipResolver builds a resolver over the given store with
// dedup enabled.
func NewRelationshipResolver(store driver.GraphStore, opts ...RelationshipResolverOption) *RelationshipResolver {
	r := &RelationshipResolver{
		store:  store,
		dedup:  true,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve checks for an existing edge with the same directed (source,
// target, type) triple. A hit reinforces the stored edge instead of
// creating a duplicate; a miss creates a new edge in the batch.
func (r *RelationshipResolver) Resolve(ctx context.Context, candidate types.CandidateRelationship, sourceID, targetID, documentID string, chunkIndex int, batch *Batch) (RelationshipResolution, error) {
	if err := candidate.Validate(); err != nil {
		return RelationshipResolution{}, err
	}
	if sourceID == "" || targetID == "" {
		return RelationshipResolution{}, types.ErrEmptyID
	}

	if r.dedup {
		if existing := batch.relationship(sourceID, targetID, candidate.Type); existing != nil {
			r.reinforce(existing, candidate, documentID, chunkIndex, batch)
			return RelationshipResolution{Relationship: existing}, nil
		}

		stored, err := r.store.Relationship(ctx, sourceID, targetID, candidate.Type)
		if err == nil {
			batch.addRelationship(stored)
			r.reinforce(stored, candidate, documentID, chunkIndex, batch)
			return RelationshipResolution{Relationship: stored}, nil
		}
		if !errors.Is(err, driver.ErrNotFound) {
			return RelationshipResolution{}, fmt.Errorf("relationship lookup %s-[%s]->%s: %w",
				sourceID, candidate.Type, targetID, err)
		}
	}

	rel := &types.ResolvedRelationship{
		ID:         uuid.New().String(),
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       candidate.Type,
		DocumentID: documentID,
		Confidence: candidate.Confidence,
		CreatedAt:  time.Now().UTC(),
	}
	if len(candidate.Properties) > 0 {
		rel.Properties = make(map[string]any, len(candidate.Properties))
		for k, v := range candidate.Properties {
			rel.Properties[k] = v
		}
	}
	batch.addRelationship(rel)
	batch.addProvenance(types.Provenance{
		RecordID:   rel.ID,
		RecordKind: types.RecordKindRelationship,
		DocumentID: documentID,
		ChunkIndex: chunkIndex,
		Timestamp:  time.Now().UTC(),
	})
	return RelationshipResolution{Relationship: rel, Created: true}, nil
}

func (r *RelationshipResolver) reinforce(rel *types.ResolvedRelationship, candidate types.CandidateRelationship, documentID string, chunkIndex int, batch *Batch) {
	if candidate.Confidence > rel.Confidence {
		rel.Confidence = candidate.Confidence
	}
	batch.addProvenance(types.Provenance{
		RecordID:   rel.ID,
		RecordKind: types.RecordKindRelationship,
		DocumentID: documentID,
		ChunkIndex: chunkIndex,
		Timestamp:  time.Now().UTC(),
	})
}
