package usecase

import (
	"context"
	"strings"

	"trafficlaw-gateway/internal/domain/repository"
	"trafficlaw-gateway/internal/domain/vector"

	"go.uber.org/zap"
)

const snippetSeparator = "\n\n---\n\n"

// Retriever looks up law sections relevant to a question. It never fails:
// any embedding or index error means "no context".
type Retriever struct {
	embedder  repository.Embedder
	index     repository.VectorIndex
	contents  []string
	k         int
	threshold float32
	log       *zap.Logger
}

func NewRetriever(emb repository.Embedder, idx repository.VectorIndex, contents []string, k int, threshold float32, log *zap.Logger) *Retriever {
	return &Retriever{
		embedder:  emb,
		index:     idx,
		contents:  contents,
		k:         k,
		threshold: threshold,
		log:       log.Named("retriever"),
	}
}

// Search uses the configured k and threshold. A nil Retriever finds nothing.
func (r *Retriever) Search(ctx context.Context, query string) (string, bool) {
	if r == nil {
		return "", false
	}
	return r.SearchWith(ctx, query, r.k, r.threshold)
}

func (r *Retriever) SearchWith(ctx context.Context, query string, k int, threshold float32) (string, bool) {
	if r == nil || r.embedder == nil || r.index == nil || len(r.contents) == 0 {
		return "", false
	}

	embedding, err := r.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		r.log.Warn("embedding failed, answering without context", zap.Error(err))
		return "", false
	}

	hits, err := r.index.Search(ctx, vector.Normalize(embedding), k)
	if err != nil {
		r.log.Warn("index search failed, answering without context", zap.Error(err))
		return "", false
	}

	var snippets []string
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		if h.Ordinal < 0 || h.Ordinal >= len(r.contents) {
			r.log.Warn("hit outside content array", zap.Int("ordinal", h.Ordinal), zap.Int("documents", len(r.contents)))
			continue
		}
		snippets = append(snippets, r.contents[h.Ordinal])
	}
	if len(snippets) == 0 {
		return "", false
	}
	r.log.Debug("context found", zap.Int("snippets", len(snippets)))
	return strings.Join(snippets, snippetSeparator), true
}
