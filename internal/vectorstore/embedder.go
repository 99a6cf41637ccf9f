package vectorstore

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIEmbedder generates embeddings through any OpenAI-compatible
// embeddings API. The default deployment points it at Mistral's hosted
// endpoint with the mistral-embed model.
type OpenAIEmbedder struct {
	inner *embeddings.EmbedderImpl
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder for the given endpoint and model.
// An empty apiKey is passed through as a placeholder token; the provider
// decides whether to accept it.
func NewOpenAIEmbedder(baseURL, model, apiKey string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		// The client constructor requires a token even for providers that
		// ignore it.
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
		openai.WithEmbeddingModel(model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embeddings client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &OpenAIEmbedder{inner: embedder}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.inner.EmbedDocuments(ctx, texts)
}

// EmbedQuery generates an embedding for a single query.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.inner.EmbedQuery(ctx, text)
}
