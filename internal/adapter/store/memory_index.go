package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"trafficlaw-gateway/internal/domain/entity"
	"trafficlaw-gateway/internal/domain/vector"
)

// LoadDocuments reads the JSON vector DB written by the ingest job.
func LoadDocuments(path string) ([]entity.DocumentRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	defer file.Close()

	var records []entity.DocumentRecord
	if err := json.NewDecoder(file).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode vector db: %w", err)
	}
	return records, nil
}

// Contents returns the content array aligned with the records' ordinals.
func Contents(records []entity.DocumentRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Content
	}
	return out
}

// MemoryIndex is an exact cosine index over normalized vectors. Scores are
// inner products of unit vectors.
type MemoryIndex struct {
	vectors [][]float32
}

func NewMemoryIndex(records []entity.DocumentRecord) *MemoryIndex {
	vectors := make([][]float32, len(records))
	for i, r := range records {
		vectors[i] = vector.Normalize(r.Embedding)
	}
	return &MemoryIndex{vectors: vectors}
}

func (m *MemoryIndex) Len() int { return len(m.vectors) }

func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]entity.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 || len(m.vectors) == 0 {
		return nil, nil
	}
	hits := make([]entity.Hit, 0, len(m.vectors))
	for i, v := range m.vectors {
		if len(v) != len(query) {
			return nil, fmt.Errorf("dimension mismatch: index %d, query %d", len(v), len(query))
		}
		hits = append(hits, entity.Hit{Ordinal: i, Score: vector.Dot(v, query)})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
