package driver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soundprediction/akgraph/pkg/similarity"
	"github.com/soundprediction/akgraph/pkg/types"
)

// MemoryStore is an in-memory GraphStore with the same merge semantics as
// the Neo4j backend. It backs tests and dry runs.
type MemoryStore struct {
	mu            sync.RWMutex
	entities      map[string]*types.ResolvedEntity
	byNameType    map[string]string // normalized name + type -> entity id
	relationships map[string]*types.ResolvedRelationship
	provenance    []types.Provenance
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:      make(map[string]*types.ResolvedEntity),
		byNameType:    make(map[string]string),
		relationships: make(map[string]*types.ResolvedRelationship),
	}
}

func nameTypeKey(normalizedName, canonicalType string) string {
	return normalizedName + "\x00" + canonicalType
}

func tripleKey(sourceID, targetID, canonicalType string) string {
	return sourceID + "\x00" + targetID + "\x00" + canonicalType
}

func (s *MemoryStore) UpsertEntity(ctx context.Context, entity *types.ResolvedEntity) error {
	if err := entity.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneEntity(entity)
	stored.LastSeenAt = time.Now().UTC()
	if existing, ok := s.entities[entity.ID]; ok {
		// merge semantics: drop the stale name/type index entry when the
		// record's identity fields changed
		delete(s.byNameType, nameTypeKey(similarity.Normalize(existing.Name), existing.Type))
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = existing.CreatedAt
		}
	}
	s.entities[entity.ID] = stored
	s.byNameType[nameTypeKey(similarity.Normalize(entity.Name), entity.Type)] = entity.ID
	return nil
}

func (s *MemoryStore) UpsertRelationship(ctx context.Context, rel *types.ResolvedRelationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneRelationship(rel)
	stored.LastSeenAt = time.Now().UTC()
	key := tripleKey(rel.SourceID, rel.TargetID, rel.Type)
	if existing, ok := s.relationships[key]; ok {
		// keep the original identity on re-merge
		stored.ID = existing.ID
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = existing.CreatedAt
		}
	}
	s.relationships[key] = stored
	return nil
}

func (s *MemoryStore) EntityByNameType(ctx context.Context, normalizedName, canonicalType string) (*types.ResolvedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byNameType[nameTypeKey(normalizedName, canonicalType)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntity(s.entities[id]), nil
}

func (s *MemoryStore) EntitiesByType(ctx context.Context, canonicalType string) ([]*types.ResolvedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.ResolvedEntity
	for _, e := range s.entities {
		if e.Type == canonicalType {
			out = append(out, cloneEntity(e))
		}
	}
	sortEntities(out)
	return out, nil
}

func (s *MemoryStore) AllEntities(ctx context.Context) ([]*types.ResolvedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.ResolvedEntity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, cloneEntity(e))
	}
	sortEntities(out)
	return out, nil
}

func (s *MemoryStore) Relationship(ctx context.Context, sourceID, targetID, canonicalType string) (*types.ResolvedRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.relationships[tripleKey(sourceID, targetID, canonicalType)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRelationship(rel), nil
}

func (s *MemoryStore) RecordProvenance(ctx context.Context, prov types.Provenance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prov.Timestamp.IsZero() {
		prov.Timestamp = time.Now().UTC()
	}
	s.provenance = append(s.provenance, prov)
	return nil
}

// Provenance returns the append-only provenance log for a record.
func (s *MemoryStore) Provenance(recordID string) []types.Provenance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Provenance
	for _, p := range s.provenance {
		if p.RecordID == recordID {
			out = append(out, p)
		}
	}
	return out
}

func (s *MemoryStore) DistinctEntityTypes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range s.entities {
		seen[e.Type] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeSet := make(map[string]struct{})
	docSet := make(map[string]struct{})
	for _, e := range s.entities {
		typeSet[e.Type] = struct{}{}
		docSet[e.DocumentID] = struct{}{}
	}
	return Stats{
		Entities:      int64(len(s.entities)),
		Relationships: int64(len(s.relationships)),
		EntityTypes:   int64(len(typeSet)),
		Documents:     int64(len(docSet)),
	}, nil
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func sortEntities(entities []*types.ResolvedEntity) {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID < entities[j].ID
	})
}

func cloneEntity(e *types.ResolvedEntity) *types.ResolvedEntity {
	if e == nil {
		return nil
	}
	c := *e
	c.Aliases = append([]string(nil), e.Aliases...)
	if e.Properties != nil {
		c.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}

func cloneRelationship(r *types.ResolvedRelationship) *types.ResolvedRelationship {
	if r == nil {
		return nil
	}
	c := *r
	if r.Properties != nil {
		c.Properties = make(map[string]any, len(r.Properties))
		for k, v := range r.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}
