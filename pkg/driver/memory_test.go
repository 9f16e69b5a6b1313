package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/akgraph/pkg/types"
)

func entityFixture(id, name, entityType string) *types.ResolvedEntity {
	return &types.ResolvedEntity{
		ID:         id,
		Name:       name,
		Type:       entityType,
		DocumentID: "doc-1",
		Confidence: 0.9,
	}
}

func TestMemoryStoreUpsertEntityIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	entity := entityFixture("e-1", "John Smith", "PERSON")
	require.NoError(t, store.UpsertEntity(ctx, entity))
	require.NoError(t, store.UpsertEntity(ctx, entity))

	all, err := store.AllEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryStoreEntityByNameType(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.UpsertEntity(ctx, entityFixture("e-1", "John Smith", "PERSON")))

	found, err := store.EntityByNameType(ctx, "john smith", "PERSON")
	require.NoError(t, err)
	assert.Equal(t, "e-1", found.ID)

	_, err = store.EntityByNameType(ctx, "john smith", "PROJECT")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.EntityByNameType(ctx, "jane smith", "PERSON")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreEntitiesByType(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.UpsertEntity(ctx, entityFixture("e-1", "John Smith", "PERSON")))
	require.NoError(t, store.UpsertEntity(ctx, entityFixture("e-2", "Jane Doe", "PERSON")))
	require.NoError(t, store.UpsertEntity(ctx, entityFixture("e-3", "Project Alpha", "PROJECT")))

	people, err := store.EntitiesByType(ctx, "PERSON")
	require.NoError(t, err)
	assert.Len(t, people, 2)

	all, err := store.AllEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStoreRelationshipTripleKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.UpsertEntity(ctx, entityFixture("e-1", "John Smith", "PERSON")))
	require.NoError(t, store.UpsertEntity(ctx, entityFixture("e-2", "Project Alpha", "PROJECT")))

	rel := &types.ResolvedRelationship{
		ID:         "r-1",
		SourceID:   "e-1",
		TargetID:   "e-2",
		Type:       "MANAGES",
		DocumentID: "doc-1",
		Confidence: 0.8,
	}
	require.NoError(t, store.UpsertRelationship(ctx, rel))

	// re-merge under a different id keeps the stored identity
	again := *rel
	again.ID = "r-2"
	require.NoError(t, store.UpsertRelationship(ctx, &again))

	found, err := store.Relationship(ctx, "e-1", "e-2", "MANAGES")
	require.NoError(t, err)
	assert.Equal(t, "r-1", found.ID)

	// direction matters
	_, err = store.Relationship(ctx, "e-2", "e-1", "MANAGES")
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Relationships)
}

func TestMemoryStoreDistinctEntityTypes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.UpsertEntity(ctx, entityFixture("e-1", "John Smith", "PERSON")))
	require.NoError(t, store.UpsertEntity(ctx, entityFixture("e-2", "Project Alpha", "PROJECT")))
	require.NoError(t, store.UpsertEntity(ctx, entityFixture("e-3", "Jane Doe", "PERSON")))

	distinct, err := store.DistinctEntityTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"PERSON", "PROJECT"}, distinct)
}

func TestMemoryStoreProvenanceAppendOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordProvenance(ctx, types.Provenance{
			RecordID:   "e-1",
			RecordKind: "entity",
			DocumentID: "doc-1",
			ChunkIndex: i,
		}))
	}

	log := store.Provenance("e-1")
	require.Len(t, log, 3)
	for i, p := range log {
		assert.Equal(t, i, p.ChunkIndex)
		assert.False(t, p.Timestamp.IsZero())
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	entity := entityFixture("e-1", "John Smith", "PERSON")
	entity.Properties = map[string]any{"role": "manager"}
	require.NoError(t, store.UpsertEntity(ctx, entity))

	found, err := store.EntityByNameType(ctx, "john smith", "PERSON")
	require.NoError(t, err)
	found.Name = "mutated"
	found.Properties["role"] = "mutated"

	again, err := store.EntityByNameType(ctx, "john smith", "PERSON")
	require.NoError(t, err)
	assert.Equal(t, "John Smith", again.Name)
	assert.Equal(t, "manager", again.Properties["role"])
}
