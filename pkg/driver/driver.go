// Package driver defines the graph storage boundary and its
// implementations. The resolution engine only ever talks to the GraphStore
// interface; the Neo4j implementation is the production backend and the
// in-memory implementation backs tests and dry runs.
package driver

import (
	"context"
	"errors"

	"github.com/soundprediction/akgraph/pkg/types"
)

// ErrNotFound is returned by lookup methods when no matching record
// exists.
var ErrNotFound = errors.New("driver: record not found")

// Stats summarizes the stored graph.
type Stats struct {
	Entities      int64 `json:"entities"`
	Relationships int64 `json:"relationships"`
	EntityTypes   int64 `json:"entity_types"`
	Documents     int64 `json:"documents"`
}

// GraphStore is the persistence boundary for resolved records. All writes
// are idempotent merges keyed on stable identity: re-applying a record
// refreshes properties without creating duplicates.
type GraphStore interface {
	// UpsertEntity merges an entity node, applying both the base label
	// and the sanitized type label.
	UpsertEntity(ctx context.Context, entity *types.ResolvedEntity) error

	// UpsertRelationship merges an edge keyed on (source, target,
	// canonical type).
	UpsertRelationship(ctx context.Context, rel *types.ResolvedRelationship) error

	// EntityByNameType finds the entity with the given normalized name
	// and canonical type. Returns ErrNotFound on miss.
	EntityByNameType(ctx context.Context, normalizedName, canonicalType string) (*types.ResolvedEntity, error)

	// EntitiesByType returns the candidate pool for same-type fuzzy
	// matching. Entities written before dynamic labeling existed are
	// matched through their type property.
	EntitiesByType(ctx context.Context, canonicalType string) ([]*types.ResolvedEntity, error)

	// AllEntities returns every stored entity, the candidate pool for
	// cross-type matching.
	AllEntities(ctx context.Context) ([]*types.ResolvedEntity, error)

	// Relationship finds the edge for the (source, target, type) triple.
	// Returns ErrNotFound on miss.
	Relationship(ctx context.Context, sourceID, targetID, canonicalType string) (*types.ResolvedRelationship, error)

	// RecordProvenance appends a provenance record. Never overwrites.
	RecordProvenance(ctx context.Context, prov types.Provenance) error

	// DistinctEntityTypes returns the canonical entity types currently
	// present in the store, used for additive type-cache refresh.
	DistinctEntityTypes(ctx context.Context) ([]string, error)

	// Stats reports aggregate counts.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the underlying connections.
	Close(ctx context.Context) error
}
