package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"trafficlaw-gateway/internal/domain/entity"
)

func TestLoadDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	data := `[
  {"id": 0, "title": "Điều 6", "content": "Điều 6\nXe mô tô...", "embedding": [1, 0]},
  {"id": 1, "title": "Điều 7", "content": "Điều 7\nÔ tô...", "embedding": [0, 2]}
]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	records, err := LoadDocuments(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Điều 7", records[1].Title)
	require.Equal(t, []string{"Điều 6\nXe mô tô...", "Điều 7\nÔ tô..."}, Contents(records))
}

func TestLoadDocuments_MissingFile(t *testing.T) {
	_, err := LoadDocuments(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestMemoryIndex_TopKByCosine(t *testing.T) {
	idx := NewMemoryIndex([]entity.DocumentRecord{
		{ID: 0, Embedding: []float32{1, 0}},
		{ID: 1, Embedding: []float32{0, 5}},
		{ID: 2, Embedding: []float32{3, 3}},
	})
	require.Equal(t, 3, idx.Len())

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, 0, hits[0].Ordinal)
	require.InDelta(t, 1.0, hits[0].Score, 1e-6)
	require.Equal(t, 2, hits[1].Ordinal)
	require.InDelta(t, 0.7071, hits[1].Score, 1e-3)
}

func TestMemoryIndex_EmptyAndMismatch(t *testing.T) {
	hits, err := NewMemoryIndex(nil).Search(context.Background(), []float32{1}, 5)
	require.NoError(t, err)
	require.Empty(t, hits)

	idx := NewMemoryIndex([]entity.DocumentRecord{{Embedding: []float32{1, 0, 0}}})
	_, err = idx.Search(context.Background(), []float32{1, 0}, 5)
	require.Error(t, err)
}
