// Package llm adapts text-generation backends to a single Generator interface.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Generator turns a prompt into text. Implementations return errors wrapping
// model.ErrGeneration for provider failures and model.ErrEmptyGeneration when
// the provider answered without text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Pinger is implemented by generators that can verify their endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend names accepted by New.
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
	BackendNone   = "none"
)

// Options configures a generator backend.
type Options struct {
	Backend string

	// Gemini.
	GeminiKey       string
	GeminiModel     string
	SafetyThreshold string

	// OpenAI-compatible endpoint.
	BaseURL string
	APIKey  string
	Model   string
}

// New creates the generator selected by opts.Backend. It returns (nil, nil)
// for BackendNone or when the selected backend has no credentials, so the
// server can start and report the generator as unavailable.
func New(ctx context.Context, opts Options) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case BackendGemini, "":
		if opts.GeminiKey == "" {
			return nil, nil
		}
		return NewGemini(ctx, opts.GeminiKey, opts.GeminiModel, opts.SafetyThreshold)
	case BackendOpenAI:
		return NewOpenAI(opts.BaseURL, opts.APIKey, opts.Model), nil
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown generator backend %q", opts.Backend)
	}
}
