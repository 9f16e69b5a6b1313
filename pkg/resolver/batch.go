// Package resolver decides reuse-vs-create for candidate entities and
// relationships. Entity resolution is three-level: exact name+type match,
// same-type fuzzy match, then cross-type fuzzy match at a stricter
// threshold. Relationship resolution deduplicates on the (source, target,
// canonical type) triple.
package resolver

import (
	"github.com/soundprediction/akgraph/pkg/similarity"
	"github.com/soundprediction/akgraph/pkg/types"
)

// Batch accumulates the records resolved within one chunk before they are
// committed. Lookups consult the batch before the graph store, so repeated
// mentions inside a single chunk deduplicate against records that have not
// been written yet.
type Batch struct {
	Entities      []*types.ResolvedEntity
	Relationships []*types.ResolvedRelationship
	Provenance    []types.Provenance

	entityIndex map[string]*types.ResolvedEntity
	relIndex    map[string]*types.ResolvedRelationship
}

// NewBatch returns an empty accumulator for one chunk's resolution pass.
func NewBatch() *Batch {
	return &Batch{
		entityIndex: make(map[string]*types.ResolvedEntity),
		relIndex:    make(map[string]*types.ResolvedRelationship),
	}
}

func entityKey(normalizedName, canonicalType string) string {
	return normalizedName + "\x00" + canonicalType
}

func relKey(sourceID, targetID, canonicalType string) string {
	return sourceID + "\x00" + targetID + "\x00" + canonicalType
}

func (b *Batch) addEntity(e *types.ResolvedEntity) {
	b.Entities = append(b.Entities, e)
	b.entityIndex[entityKey(similarity.Normalize(e.Name), e.Type)] = e
}

// trackEntity registers a reused stored entity so later candidates in the
// same chunk hit it without another store round trip, and so its refreshed
// confidence is written out with the batch.
func (b *Batch) trackEntity(e *types.ResolvedEntity) {
	key := entityKey(similarity.Normalize(e.Name), e.Type)
	if _, ok := b.entityIndex[key]; ok {
		return
	}
	b.Entities = append(b.Entities, e)
	b.entityIndex[key] = e
}

func (b *Batch) entityByNameType(normalizedName, canonicalType string) *types.ResolvedEntity {
	return b.entityIndex[entityKey(normalizedName, canonicalType)]
}

func (b *Batch) entitiesByType(canonicalType string) []*types.ResolvedEntity {
	var out []*types.ResolvedEntity
	for _, e := range b.Entities {
		if e.Type == canonicalType {
			out = append(out, e)
		}
	}
	return out
}

func (b *Batch) addRelationship(r *types.ResolvedRelationship) {
	b.Relationships = append(b.Relationships, r)
	b.relIndex[relKey(r.SourceID, r.TargetID, r.Type)] = r
}

func (b *Batch) relationship(sourceID, targetID, canonicalType string) *types.ResolvedRelationship {
	return b.relIndex[relKey(sourceID, targetID, canonicalType)]
}

func (b *Batch) addProvenance(p types.Provenance) {
	b.Provenance = append(b.Provenance, p)
}
