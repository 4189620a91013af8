package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/questionbot/internal/model"
)

// OpenAI wraps an OpenAI-compatible chat completion API.
type OpenAI struct {
	api   *openai.Client
	model string
}

// NewOpenAI creates a generator for an OpenAI-compatible endpoint.
func NewOpenAI(baseURL, apiKey, modelName string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAI{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Generate sends prompt as a single user message.
func (c *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("%w: LLM API call: %w", model.ErrGeneration, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: LLM returned no choices", model.ErrEmptyGeneration)
	}

	text := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", c.model, "chars", len(text))
	if strings.TrimSpace(text) == "" {
		return "", model.ErrEmptyGeneration
	}
	return text, nil
}

// Ping verifies the endpoint answers a model listing.
func (c *OpenAI) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
