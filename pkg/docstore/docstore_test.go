package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/akgraph/pkg/types"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	b, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return map[string]Store{"badger": b, "memory": NewMemory()}
}

func TestPutAndGetByHash(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc := &types.Document{ID: "doc-1", Title: "Notes", Content: "hello world"}
			require.NoError(t, store.Put(ctx, doc))

			found, err := store.GetByHash(ctx, doc.ContentHash())
			require.NoError(t, err)
			assert.Equal(t, "doc-1", found.ID)
			assert.Equal(t, "hello world", found.Content)

			_, err = store.GetByHash(ctx, "0000")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestChangedContentSupersedes(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			original := &types.Document{ID: "doc-1", Title: "Notes", Content: "version one"}
			require.NoError(t, store.Put(ctx, original))
			oldHash := original.ContentHash()

			updated := &types.Document{ID: "doc-1", Title: "Notes", Content: "version two"}
			require.NoError(t, store.Put(ctx, updated))

			// the new hash resolves, the stale one no longer matches
			found, err := store.GetByHash(ctx, updated.ContentHash())
			require.NoError(t, err)
			assert.Equal(t, "version two", found.Content)

			_, err = store.GetByHash(ctx, oldHash)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestGetByID(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, &types.Document{ID: "doc-1", Title: "A", Content: "a"}))

			doc, err := store.Get(ctx, "doc-1")
			require.NoError(t, err)
			assert.Equal(t, "A", doc.Title)

			_, err = store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestPutInvalidDocument(t *testing.T) {
	store := NewMemory()
	err := store.Put(context.Background(), &types.Document{ID: "", Content: "x"})
	assert.Error(t, err)
}
