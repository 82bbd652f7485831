package vectorindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testIndex(t *testing.T, store *SQLiteStore, name string, dim int) *SQLiteIndex {
	t.Helper()
	idx, err := store.Index(Spec{Name: name, Dimension: dim})
	require.NoError(t, err)
	return idx
}

func TestNewSQLiteStore(t *testing.T) {
	store := setupTestStore(t)
	assert.NotNil(t, store.db)

	version, err := schemaVersion(context.Background(), store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())
}

func TestSQLiteIndex_EnsureCreatesOnce(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	idx := testIndex(t, store, "docs", 3)
	require.NoError(t, idx.Ensure(ctx))
	require.NoError(t, idx.Ensure(ctx))

	var n int
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM indexes WHERE name = 'docs'`).Scan(&n))
	assert.Equal(t, 1, n)

	t.Run("dimension mismatch with existing index", func(t *testing.T) {
		other := testIndex(t, store, "docs", 4)
		assert.ErrorIs(t, other.Ensure(ctx), ErrDimensionMismatch)
	})
}

func TestSQLiteStore_Index(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Index(Spec{Name: "docs", Dimension: 3, Metric: MetricDotProduct})
	assert.ErrorIs(t, err, ErrUnsupportedMetric)

	_, err = store.Index(Spec{Dimension: 3})
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = store.Index(Spec{Name: "docs"})
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestSQLiteIndex_UpsertAndQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	idx := testIndex(t, store, "docs", 3)

	err := idx.Upsert(ctx, []Vector{
		{ID: "breakfast", Values: []float32{1, 0, 0}, Metadata: Metadata{"parent_text": "Breakfast is served 7-9am."}},
		{ID: "dinner", Values: []float32{0, 1, 0}, Metadata: Metadata{"parent_text": "Dinner is at 8pm."}},
		{ID: "mixed", Values: []float32{1, 1, 0}},
	})
	require.NoError(t, err)

	t.Run("top 1 with metadata", func(t *testing.T) {
		matches, err := idx.Query(ctx, QueryRequest{Vector: []float32{0.9, 0.1, 0}, TopK: 1, IncludeMetadata: true})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "breakfast", matches[0].ID)
		assert.Equal(t, "Breakfast is served 7-9am.", matches[0].Metadata["parent_text"])
	})

	t.Run("descending order", func(t *testing.T) {
		matches, err := idx.Query(ctx, QueryRequest{Vector: []float32{1, 0, 0}, TopK: 3})
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, []string{"breakfast", "mixed", "dinner"}, []string{matches[0].ID, matches[1].ID, matches[2].ID})
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
		assert.Nil(t, matches[0].Metadata)
	})

	t.Run("zero top k", func(t *testing.T) {
		matches, err := idx.Query(ctx, QueryRequest{Vector: []float32{1, 0, 0}, TopK: 0})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("query dimension mismatch", func(t *testing.T) {
		_, err := idx.Query(ctx, QueryRequest{Vector: []float32{1, 0}, TopK: 1})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestSQLiteIndex_UpsertReplacesByID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	idx := testIndex(t, store, "cache", 2)

	require.NoError(t, idx.Upsert(ctx, []Vector{{ID: "q", Values: []float32{1, 0}, Metadata: Metadata{"v": "first"}}}))
	require.NoError(t, idx.Upsert(ctx, []Vector{{ID: "q", Values: []float32{0, 1}, Metadata: Metadata{"v": "second"}}}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := idx.Query(ctx, QueryRequest{Vector: []float32{0, 1}, TopK: 1, IncludeMetadata: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "second", matches[0].Metadata["v"])
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestSQLiteIndex_Isolation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := testIndex(t, store, "docs", 2)
	cache := testIndex(t, store, "cache", 2)

	require.NoError(t, docs.Upsert(ctx, []Vector{{ID: "a", Values: []float32{1, 0}}}))

	matches, err := cache.Query(ctx, QueryRequest{Vector: []float32{1, 0}, TopK: 1})
	require.NoError(t, err)
	assert.Empty(t, matches, "indexes in one store must not see each other's vectors")
}

func TestSQLiteIndex_UpsertValidation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	idx := testIndex(t, store, "docs", 2)

	err := idx.Upsert(ctx, []Vector{
		{ID: "ok", Values: []float32{1, 0}},
		{ID: "bad", Values: []float32{1, 0, 0}},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a rejected batch must not be partially written")

	assert.NoError(t, idx.Upsert(ctx, nil))
}

func TestSQLiteIndex_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	idx, err := store.Index(Spec{Name: "docs", Dimension: 2})
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []Vector{{ID: "a", Values: []float32{1, 0}}}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	idx, err = reopened.Index(Spec{Name: "docs", Dimension: 2})
	require.NoError(t, err)
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_VectorSearchPath(t *testing.T) {
	store := setupTestStore(t)
	assert.Equal(t, VectorExtensionAvailable, store.vectorSQL)

	ctx := context.Background()
	idx := testIndex(t, store, "docs", 2)
	require.NoError(t, idx.Upsert(ctx, []Vector{{ID: "a", Values: []float32{1, 0}}}))

	matches, err := idx.Query(ctx, QueryRequest{Vector: []float32{1, 0}, TopK: 1})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}
