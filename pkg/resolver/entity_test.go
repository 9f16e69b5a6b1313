package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/akgraph/pkg/driver"
	"github.com/soundprediction/akgraph/pkg/types"
)

func candidate(name, entityType string, confidence float64) types.CandidateEntity {
	return types.CandidateEntity{Name: name, Type: entityType, Confidence: confidence}
}

// commit writes a batch's entities into the store the way the pipeline
// does between chunks.
func commit(t *testing.T, store driver.GraphStore, batch *Batch) {
	t.Helper()
	ctx := context.Background()
	for _, e := range batch.Entities {
		require.NoError(t, store.UpsertEntity(ctx, e))
	}
	for _, r := range batch.Relationships {
		require.NoError(t, store.UpsertRelationship(ctx, r))
	}
}

func TestResolveCreatesNewEntity(t *testing.T) {
	store := driver.NewMemoryStore()
	r := NewEntityResolver(store)
	batch := NewBatch()

	res, err := r.Resolve(context.Background(), candidate("John Smith", "PERSON", 0.9), "doc-1", 0, batch)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Degraded)
	assert.NotEmpty(t, res.Entity.ID)
	assert.Equal(t, "John Smith", res.Entity.Name)
	assert.Len(t, batch.Entities, 1)
	assert.Len(t, batch.Provenance, 1)
}

func TestResolveIdempotentAcrossCommits(t *testing.T) {
	store := driver.NewMemoryStore()
	r := NewEntityResolver(store)

	first := NewBatch()
	res1, err := r.Resolve(context.Background(), candidate("John Smith", "PERSON", 0.9), "doc-1", 0, first)
	require.NoError(t, err)
	require.True(t, res1.Created)
	commit(t, store, first)

	second := NewBatch()
	res2, err := r.Resolve(context.Background(), candidate("John Smith", "PERSON", 0.9), "doc-1", 1, second)
	require.NoError(t, err)
	assert.False(t, res2.Created)
	assert.Equal(t, res1.Entity.ID, res2.Entity.ID)

	all, err := store.AllEntities(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResolveDedupsWithinChunk(t *testing.T) {
	store := driver.NewMemoryStore()
	r := NewEntityResolver(store)
	batch := NewBatch()

	res1, err := r.Resolve(context.Background(), candidate("John Smith", "PERSON", 0.9), "doc-1", 0, batch)
	require.NoError(t, err)
	res2, err := r.Resolve(context.Background(), candidate("john smith", "PERSON", 0.8), "doc-1", 0, batch)
	require.NoError(t, err)

	assert.True(t, res1.Created)
	assert.False(t, res2.Created)
	assert.Equal(t, res1.Entity.ID, res2.Entity.ID)
	assert.Len(t, batch.Entities, 1)
}

func TestResolveSameTypeFuzzyBoundary(t *testing.T) {
	store := driver.NewMemoryStore()
	r := NewEntityResolver(store)

	seed := NewBatch()
	res, err := r.Resolve(context.Background(), candidate("delta gamma beta alpha", "TOPIC", 1.0), "doc-1", 0, seed)
	require.NoError(t, err)
	commit(t, store, seed)

	// word overlap 4/5 scores exactly 0.80, matched on an inclusive
	// threshold
	batch := NewBatch()
	hit, err := r.Resolve(context.Background(), candidate("alpha beta gamma delta epsilon", "TOPIC", 1.0), "doc-2", 0, batch)
	require.NoError(t, err)
	assert.False(t, hit.Created)
	assert.Equal(t, res.Entity.ID, hit.Entity.ID)

	// overlap 2/7 stays below threshold and creates a new entity
	miss, err := r.Resolve(context.Background(), candidate("alpha beta zeta eta theta", "TOPIC", 1.0), "doc-2", 0, batch)
	require.NoError(t, err)
	assert.True(t, miss.Created)
	assert.NotEqual(t, res.Entity.ID, miss.Entity.ID)
}

func TestResolveCrossTypeDrift(t *testing.T) {
	store := driver.NewMemoryStore()
	r := NewEntityResolver(store)

	seed := NewBatch()
	company, err := r.Resolve(context.Background(), candidate("Apple Inc.", "COMPANY", 1.0), "doc-1", 0, seed)
	require.NoError(t, err)
	commit(t, store, seed)

	// no ORGANIZATION entities exist, but "Apple" is contained in
	// "Apple Inc." and scores 0.95, clearing the cross-type bar
	batch := NewBatch()
	org, err := r.Resolve(context.Background(), candidate("Apple", "ORGANIZATION", 0.9), "doc-2", 0, batch)
	require.NoError(t, err)
	assert.False(t, org.Created)
	assert.Equal(t, company.Entity.ID, org.Entity.ID)
	assert.Contains(t, org.Entity.Aliases, "Apple")
}

func TestResolveCrossTypeRequiresStrictScore(t *testing.T) {
	store := driver.NewMemoryStore()
	r := NewEntityResolver(store)

	seed := NewBatch()
	_, err := r.Resolve(context.Background(), candidate("delta gamma beta alpha", "TOPIC", 1.0), "doc-1", 0, seed)
	require.NoError(t, err)
	commit(t, store, seed)

	// 0.80 clears the same-type bar but not the 0.95 cross-type bar
	batch := NewBatch()
	res, err := r.Resolve(context.Background(), candidate("alpha beta gamma delta epsilon", "CONCEPT", 1.0), "doc-2", 0, batch)
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestResolveReuseRaisesConfidence(t *testing.T) {
	store := driver.NewMemoryStore()
	r := NewEntityResolver(store)

	seed := NewBatch()
	res, err := r.Resolve(context.Background(), candidate("John Smith", "PERSON", 0.6), "doc-1", 0, seed)
	require.NoError(t, err)
	commit(t, store, seed)

	batch := NewBatch()
	hit, err := r.Resolve(context.Background(), candidate("John Smith", "PERSON", 0.95), "doc-2", 0, batch)
	require.NoError(t, err)
	assert.Equal(t, res.Entity.ID, hit.Entity.ID)
	assert.Equal(t, 0.95, hit.Entity.Confidence)
	commit(t, store, batch)

	// a weaker observation never lowers it
	batch2 := NewBatch()
	hit2, err := r.Resolve(context.Background(), candidate("John Smith", "PERSON", 0.3), "doc-3", 0, batch2)
	require.NoError(t, err)
	assert.Equal(t, 0.95, hit2.Entity.Confidence)
}

func TestResolveInvalidCandidate(t *testing.T) {
	r := NewEntityResolver(driver.NewMemoryStore())
	_, err := r.Resolve(context.Background(), candidate("", "PERSON", 0.9), "doc-1", 0, NewBatch())
	assert.ErrorIs(t, err, types.ErrEmptyName)
}

// slowStore delays every lookup until the context expires.
type slowStore struct {
	*driver.MemoryStore
}

func (s *slowStore) EntityByNameType(ctx context.Context, name, entityType string) (*types.ResolvedEntity, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolveTimeoutFallsBackToCreate(t *testing.T) {
	store := &slowStore{MemoryStore: driver.NewMemoryStore()}
	r := NewEntityResolver(store, WithLookupTimeout(10*time.Millisecond))

	batch := NewBatch()
	res, err := r.Resolve(context.Background(), candidate("John Smith", "PERSON", 0.9), "doc-1", 0, batch)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Degraded)
	assert.NotEmpty(t, res.Entity.ID)
}
