package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) Backend {
	t.Helper()
	return map[string]func(t *testing.T) Backend{
		"memory": func(t *testing.T) Backend {
			return NewMemoryVectorStore()
		},
		"chromem": func(t *testing.T) Backend {
			s, err := NewChromemStore("", false)
			require.NoError(t, err)
			return s
		},
		"chromem-persistent": func(t *testing.T) Backend {
			s, err := NewChromemStore(filepath.Join(t.TempDir(), "chromem"), false)
			require.NoError(t, err)
			return s
		},
		"sqlite-vec": func(t *testing.T) Backend {
			s, err := NewSQLiteVectorStore(filepath.Join(t.TempDir(), "index.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestBackends(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			t.Cleanup(func() { _ = b.Close() })
			ctx := context.Background()

			testEmptyCollection(t, ctx, b)
			testAddAndQuery(t, ctx, b)
			testReset(t, ctx, b)
		})
	}
}

func testEmptyCollection(t *testing.T, ctx context.Context, b Backend) {
	require.NoError(t, b.CreateOrGet(ctx, "empty"))
	require.NoError(t, b.CreateOrGet(ctx, "empty"))

	n, err := b.Count(ctx, "empty")
	require.NoError(t, err)
	assert.Zero(t, n)

	res, err := b.Query(ctx, "empty", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Zero(t, res.Len())
}

func testAddAndQuery(t *testing.T, ctx context.Context, b Backend) {
	require.NoError(t, b.CreateOrGet(ctx, "book"))

	err := b.Add(ctx, "book",
		[]string{"section_1", "section_2", "section_3"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}},
		[]map[string]string{{"section_id": "1"}, {"section_id": "2"}, {"section_id": "3"}},
		[]string{"alpha", "beta", "alpha-ish"},
	)
	require.NoError(t, err)

	n, err := b.Count(ctx, "book")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	has, err := b.Has(ctx, "book", "section_2")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = b.Has(ctx, "book", "section_9")
	require.NoError(t, err)
	assert.False(t, has)

	res, err := b.Query(ctx, "book", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	assert.Equal(t, []string{"alpha", "alpha-ish"}, res.Documents)
	assert.Equal(t, "1", res.Metadatas[0]["section_id"])
	assert.InDelta(t, 0, res.Distances[0], 1e-4)
	assert.LessOrEqual(t, res.Distances[0], res.Distances[1])

	// more than stored
	res, err = b.Query(ctx, "book", []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Len())
	assert.Equal(t, "beta", res.Documents[0])
}

func testReset(t *testing.T, ctx context.Context, b Backend) {
	require.NoError(t, b.Reset(ctx))

	_, err := b.Count(ctx, "book")
	var notFound *ErrCollectionNotFound
	assert.ErrorAs(t, err, &notFound)

	require.NoError(t, b.CreateOrGet(ctx, "book"))
	n, err := b.Count(ctx, "book")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteVectorStore_DimensionMismatch(t *testing.T) {
	s, err := NewSQLiteVectorStore(filepath.Join(t.TempDir(), "dim.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	require.NoError(t, s.CreateOrGet(ctx, "c"))
	require.NoError(t, s.Add(ctx, "c", []string{"a"}, [][]float32{{1, 0}}, nil, []string{"a"}))

	err = s.Add(ctx, "c", []string{"b"}, [][]float32{{1, 0, 0}}, nil, []string{"b"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "embedding length")
}

func TestMemoryVectorStore_DimensionMismatch(t *testing.T) {
	s := NewMemoryVectorStore()
	ctx := context.Background()
	require.NoError(t, s.CreateOrGet(ctx, "c"))
	require.NoError(t, s.Add(ctx, "c", []string{"a"}, [][]float32{{1, 0}}, nil, []string{"a"}))
	assert.Error(t, s.Add(ctx, "c", []string{"b"}, [][]float32{{1, 0, 0}}, nil, []string{"b"}))
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(Options{})
	require.NoError(t, err)
	assert.Equal(t, BackendChromem, b.Name())

	b, err = NewBackend(Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, b.Name())

	b, err = NewBackend(Options{Backend: BackendSQLiteVec})
	require.NoError(t, err)
	assert.Equal(t, BackendSQLiteVec, b.Name())
	_ = b.Close()

	_, err = NewBackend(Options{Backend: "faiss"})
	assert.Error(t, err)
}
