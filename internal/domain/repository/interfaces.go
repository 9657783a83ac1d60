package repository

import (
	"context"
	"iter"
	"time"

	"trafficlaw-gateway/internal/domain/entity"
)

type RateLimiter interface {
	Admit(ctx context.Context, clientID string, now time.Time) bool
}

type ResponseCache interface {
	Get(key string) (string, bool)
	Put(key, text string)
}

// Generator calls the generative backend with a single credential.
type Generator interface {
	Generate(ctx context.Context, prompt entity.Prompt) (string, error)
	GenerateStream(ctx context.Context, prompt entity.Prompt) iter.Seq2[string, error]
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// DocumentEmbedder embeds corpus sections for the ingest job.
type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, title, content string) ([]float32, error)
}

type VectorIndex interface {
	Search(ctx context.Context, vector []float32, k int) ([]entity.Hit, error)
}
