package client

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

var errNoEmbedding = errors.New("no embedding values returned")

type Embedder struct {
	client *genai.Client
	model  string // e.g., "text-embedding-004"
}

func NewEmbedder(c *genai.Client, model string) *Embedder {
	return &Embedder{
		client: c,
		model:  model,
	}
}

// CreateEmbedding embeds a user question for retrieval.
func (e *Embedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, &genai.EmbedContentConfig{TaskType: "RETRIEVAL_QUERY"})
}

// EmbedDocument embeds one corpus section at ingest time.
func (e *Embedder) EmbedDocument(ctx context.Context, title, content string) ([]float32, error) {
	return e.embed(ctx, content, &genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT", Title: title})
}

func (e *Embedder) embed(ctx context.Context, text string, cfg *genai.EmbedContentConfig) ([]float32, error) {
	res, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) == 0 {
		return nil, errNoEmbedding
	}
	return res.Embeddings[0].Values, nil
}
