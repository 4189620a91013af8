package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/pavelanni/questionbot/internal/model"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// DefaultSafetyThreshold blocks harassment rated medium or above.
const DefaultSafetyThreshold = genai.HarmBlockThresholdBlockMediumAndAbove

// Gemini generates text with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGemini creates a Gemini generator. threshold is a HarmBlockThreshold name
// such as "BLOCK_MEDIUM_AND_ABOVE"; empty means DefaultSafetyThreshold.
func NewGemini(ctx context.Context, apiKey, modelName, threshold string) (*Gemini, error) {
	return newGemini(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, modelName, threshold)
}

func newGemini(ctx context.Context, cc *genai.ClientConfig, modelName, threshold string) (*Gemini, error) {
	if cc.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	t := DefaultSafetyThreshold
	if threshold != "" {
		t = genai.HarmBlockThreshold(strings.ToUpper(threshold))
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{
		client: client,
		model:  modelName,
		config: &genai.GenerateContentConfig{
			SafetySettings: []*genai.SafetySetting{
				{Category: genai.HarmCategoryHarassment, Threshold: t},
			},
		},
	}, nil
}

// Generate sends prompt as a single user turn.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %w", model.ErrGeneration, err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: blocked (%s)", model.ErrEmptyGeneration, resp.PromptFeedback.BlockReason)
	}

	text := resp.Text()
	slog.Debug("gemini response", "model", g.model, "chars", len(text))
	if strings.TrimSpace(text) == "" {
		return "", model.ErrEmptyGeneration
	}
	return text, nil
}

// Ping checks that the configured model exists and the key is accepted.
func (g *Gemini) Ping(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return fmt.Errorf("gemini model %s: %w", g.model, err)
	}
	return nil
}
