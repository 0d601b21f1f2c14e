// internal/embedding/gemini.go
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultEmbeddingModel = "gemini-embedding-001"

// GeminiProvider embeds text through the Google GenAI API.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

// NewGeminiProvider creates a provider configured for the Gemini API backend.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}

	return &GeminiProvider{client: client, modelName: model}, nil
}

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text to embed must not be empty")
	}

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.modelName, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("embedding response is empty")
	}

	return resp.Embeddings[0].Values, nil
}
