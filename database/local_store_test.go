package database

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamduchanh/docvec-be/types"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func record(text string, vector ...float32) EmbeddingRecord {
	return EmbeddingRecord{Text: text, Vector: vector, Provider: "test"}
}

func TestLocalStoreSearchRanksBySimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "docs", []EmbeddingRecord{
		record("orthogonal", 0, 1, 0),
		record("exact", 1, 0, 0),
		record("close", 0.9, 0.1, 0),
	}))

	matches, err := store.Search(ctx, "docs", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "exact", matches[0].Record.Text)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, "close", matches[1].Record.Text)
	assert.Equal(t, "orthogonal", matches[2].Record.Text)
}

func TestLocalStoreSearchTieBreakIsInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Identical vectors score identically; the earlier insert must rank first.
	require.NoError(t, store.Insert(ctx, "docs", []EmbeddingRecord{
		record("first", 1, 0),
		record("second", 1, 0),
		record("third", 1, 0),
	}))

	matches, err := store.Search(ctx, "docs", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "first", matches[0].Record.Text)
	assert.Equal(t, "second", matches[1].Record.Text)
	assert.Equal(t, "third", matches[2].Record.Text)
}

func TestLocalStoreSearchEmptyCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateCollection(ctx, "empty", 3))
	matches, err := store.Search(ctx, "empty", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLocalStoreSearchUnknownCollection(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Search(context.Background(), "missing", []float32{1}, 5)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLocalStoreInsertDimensionMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "docs", []EmbeddingRecord{record("a", 1, 0, 0)}))
	err := store.Insert(ctx, "docs", []EmbeddingRecord{record("b", 1, 0)})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)

	// The failed insert must not have written anything.
	info, err := store.Info(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Records)
}

func TestLocalStoreCreateCollectionIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateCollection(ctx, "docs", 4))
	require.NoError(t, store.CreateCollection(ctx, "docs", 4))

	err := store.CreateCollection(ctx, "docs", 8)
	assert.ErrorIs(t, err, types.ErrAlreadyExists)
}

func TestLocalStoreBackupRestoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "docs", []EmbeddingRecord{
		record("a", 1, 0),
		record("b", 0, 1),
	}))

	snapshot, err := store.Backup(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", snapshot.Name)
	assert.Equal(t, 2, snapshot.Dimension)
	require.Len(t, snapshot.Records, 2)

	restored := newTestStore(t)
	require.NoError(t, restored.Restore(ctx, snapshot))

	matches, err := restored.Search(ctx, "docs", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Record.Text)
	assert.Equal(t, "b", matches[1].Record.Text)
}

func TestLocalStoreDeleteCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "docs", []EmbeddingRecord{record("a", 1)}))
	require.NoError(t, store.DeleteCollection(ctx, "docs"))

	_, err := store.Info(ctx, "docs")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, store.DeleteCollection(ctx, "docs"), types.ErrNotFound)
}

func TestLocalStoreConcurrentInsertsDifferentCollections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := fmt.Sprintf("col-%d", n)
			for j := 0; j < 10; j++ {
				if err := store.Insert(ctx, name, []EmbeddingRecord{record(fmt.Sprintf("r%d", j), 1, 0)}); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		info, err := store.Info(ctx, fmt.Sprintf("col-%d", i))
		require.NoError(t, err)
		assert.Equal(t, 10, info.Records)
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	assert.Equal(t, float32(0), CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, float32(0), CosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{2, 0}, []float32{5, 0}), 1e-6)
}
