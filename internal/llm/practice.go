package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/questionbot/internal/llm/prompts"
	"github.com/pavelanni/questionbot/internal/model"
)

// MaxPracticeQuestions caps a single practice request.
const MaxPracticeQuestions = 20

type practiceResponse struct {
	Questions []model.PracticeQuestion `json:"questions"`
}

// GeneratePractice asks g for count multiple-choice questions on topic.
func GeneratePractice(ctx context.Context, g Generator, topic string, count int, difficulty string) ([]model.PracticeQuestion, error) {
	if count <= 0 {
		count = 1
	}
	count = min(count, MaxPracticeQuestions)

	prompt, err := prompts.BuildPracticePrompt(topic, count, difficulty)
	if err != nil {
		return nil, fmt.Errorf("build practice prompt: %w", err)
	}
	raw, err := g.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parsePractice(raw, topic)
}

// parsePractice decodes the generator's JSON, tolerating a markdown code fence,
// and fills in a default explanation where one is missing.
func parsePractice(raw, topic string) ([]model.PracticeQuestion, error) {
	cleaned := stripFence(raw)

	var resp practiceResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		slog.Warn("unparseable practice questions", "error", err, "raw", raw)
		return nil, fmt.Errorf("%w: parse practice questions: %v", model.ErrGeneration, err)
	}
	for i, q := range resp.Questions {
		if strings.TrimSpace(q.Explanation) == "" {
			resp.Questions[i].Explanation = fmt.Sprintf(
				"This question helps you understand the topic %q. The correct answer is %q.", topic, q.Answer)
		}
	}
	return resp.Questions, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
