package embedding

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
)

// OpenAIProvider generates embeddings via the OpenAI embeddings API.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a provider from an API key.
func NewOpenAIProvider(apiKey string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return &OpenAIProvider{client: openai.NewClient(apiKey)}, nil
}

// Embed generates a single embedding vector.
func (p *OpenAIProvider) Embed(ctx context.Context, model, text string) ([]float32, error) {
	start := time.Now()
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: []string{text},
	})
	latency := time.Since(start)
	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("OpenAI embed failed after %v: %v", latency, err)
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embed: empty response")
	}
	logging.EmbeddingDebug("OpenAI embed: %d dims in %v", len(resp.Data[0].Embedding), latency)
	return resp.Data[0].Embedding, nil
}

// Name identifies the provider in logs.
func (p *OpenAIProvider) Name() string { return "openai" }
