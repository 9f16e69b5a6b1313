package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/akgraph/pkg/driver"
	"github.com/soundprediction/akgraph/pkg/resolver"
	"github.com/soundprediction/akgraph/pkg/types"
)

func batchWith(t *testing.T, entityCount int) *resolver.Batch {
	t.Helper()
	store := driver.NewMemoryStore()
	r := resolver.NewEntityResolver(store)
	batch := resolver.NewBatch()
	for i := 0; i < entityCount; i++ {
		_, err := r.Resolve(context.Background(), types.CandidateEntity{
			Name:       fmt.Sprintf("Entity %d", i),
			Type:       "THING",
			Confidence: 0.9,
		}, "doc-1", 0, batch)
		require.NoError(t, err)
	}
	return batch
}

func TestCommitWritesAll(t *testing.T) {
	store := driver.NewMemoryStore()
	w := New(store, WithBaseDelay(time.Millisecond))

	batch := resolver.NewBatch()
	r := resolver.NewEntityResolver(store)
	res1, err := r.Resolve(context.Background(), types.CandidateEntity{Name: "John Smith", Type: "PERSON", Confidence: 0.9}, "doc-1", 0, batch)
	require.NoError(t, err)
	res2, err := r.Resolve(context.Background(), types.CandidateEntity{Name: "Project Alpha", Type: "PROJECT", Confidence: 0.9}, "doc-1", 0, batch)
	require.NoError(t, err)

	rr := resolver.NewRelationshipResolver(store)
	_, err = rr.Resolve(context.Background(), types.CandidateRelationship{
		SourceName: "John Smith", TargetName: "Project Alpha", Type: "MANAGES", Confidence: 0.9,
	}, res1.Entity.ID, res2.Entity.ID, "doc-1", 0, batch)
	require.NoError(t, err)

	result, err := w.Commit(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 2, result.EntitiesWritten)
	assert.Equal(t, 1, result.RelationshipsWritten)
	assert.Equal(t, 3, result.ProvenanceWritten)
	assert.False(t, result.PartialFailure())

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Entities)
	assert.Equal(t, int64(1), stats.Relationships)
}

// flakyStore fails the first N upserts per record before succeeding.
type flakyStore struct {
	*driver.MemoryStore
	mu       sync.Mutex
	failures map[string]int
	budget   int
}

func newFlakyStore(budget int) *flakyStore {
	return &flakyStore{
		MemoryStore: driver.NewMemoryStore(),
		failures:    make(map[string]int),
		budget:      budget,
	}
}

func (s *flakyStore) UpsertEntity(ctx context.Context, e *types.ResolvedEntity) error {
	s.mu.Lock()
	n := s.failures[e.ID]
	if n < s.budget {
		s.failures[e.ID] = n + 1
		s.mu.Unlock()
		return errors.New("transient store error")
	}
	s.mu.Unlock()
	return s.MemoryStore.UpsertEntity(ctx, e)
}

func TestCommitRetriesTransientFailures(t *testing.T) {
	store := newFlakyStore(2)
	w := New(store, WithBaseDelay(time.Millisecond))

	batch := batchWith(t, 3)
	result, err := w.Commit(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 3, result.EntitiesWritten)
	assert.False(t, result.PartialFailure())
}

func TestCommitReportsPartialFailure(t *testing.T) {
	// failure budget exceeds retry attempts, so every entity is dropped
	store := newFlakyStore(5)
	w := New(store, WithBaseDelay(time.Millisecond), WithMaxAttempts(2))

	batch := batchWith(t, 2)
	result, err := w.Commit(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 0, result.EntitiesWritten)
	assert.True(t, result.PartialFailure())
	assert.Len(t, result.Failed, 2)
	for _, f := range result.Failed {
		assert.Equal(t, types.RecordKindEntity, f.RecordKind)
		assert.Error(t, f.Err)
	}
}

func TestCommitHonorsCancellation(t *testing.T) {
	store := driver.NewMemoryStore()
	w := New(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Commit(ctx, batchWith(t, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCommitEmptyBatch(t *testing.T) {
	w := New(driver.NewMemoryStore())
	result, err := w.Commit(context.Background(), resolver.NewBatch())
	require.NoError(t, err)
	assert.Equal(t, 0, result.EntitiesWritten)
	assert.False(t, result.PartialFailure())
}
