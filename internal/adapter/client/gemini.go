package client

import (
	"context"
	"errors"
	"iter"
	"strings"

	"trafficlaw-gateway/internal/domain/entity"

	"google.golang.org/genai"
)

// GeminiClient generates answers with a single API key.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewAPIClient opens a Gemini API client bound to one API key.
func NewAPIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func NewGeminiClient(c *genai.Client, model string) *GeminiClient {
	return &GeminiClient{
		client: c,
		model:  model,
	}
}

func (g *GeminiClient) Generate(ctx context.Context, prompt entity.Prompt) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, Contents(prompt), generateConfig(prompt))
	if err != nil {
		return "", withStatus(err)
	}
	return result.Text(), nil
}

func (g *GeminiClient) GenerateStream(ctx context.Context, prompt entity.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for chunk, err := range g.client.Models.GenerateContentStream(ctx, g.model, Contents(prompt), generateConfig(prompt)) {
			if err != nil {
				yield("", withStatus(err))
				return
			}
			if !yield(chunk.Text(), nil) {
				return
			}
		}
	}
}

// Contents maps history and the final user message onto Gemini turns.
func Contents(prompt entity.Prompt) []*genai.Content {
	contents := make([]*genai.Content, 0, len(prompt.History)+1)
	for _, turn := range prompt.History {
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role(turn.Role)))
	}
	return append(contents, genai.NewContentFromText(prompt.UserMessage(), genai.RoleUser))
}

func generateConfig(prompt entity.Prompt) *genai.GenerateContentConfig {
	if prompt.System == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
	}
}

func role(r string) genai.Role {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case "model", "assistant", "bot":
		return genai.RoleModel
	default:
		return genai.RoleUser
	}
}

// withStatus keeps the HTTP status of a Gemini API error so callers can
// classify it without parsing the message.
func withStatus(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &entity.UpstreamStatusError{Code: apiErr.Code, Status: apiErr.Status, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &entity.UpstreamStatusError{Code: apiErrPtr.Code, Status: apiErrPtr.Status, Err: err}
	}
	return err
}
