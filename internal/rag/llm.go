package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LLM generates an answer from a system prompt and a user question.
type LLM interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// chatLLM speaks to any OpenAI-compatible chat completion endpoint.
type chatLLM struct {
	model llms.Model
}

// NewChatLLM creates an LLM client for the given endpoint. The token is
// sent as-is; endpoints that do not authenticate accept any value.
func NewChatLLM(baseURL, model, apiKey string) (LLM, error) {
	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}
	return &chatLLM{model: client}, nil
}

func (c *chatLLM) Generate(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	resp, err := c.model.GenerateContent(ctx, messages)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Content, nil
}
