package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/questionbot/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

// maxInputRunes caps each user-supplied block placed into a prompt.
const maxInputRunes = 10000

var (
	questionTagRegex = regexp.MustCompile(`(?i)</?\s*question\b[^>]*>`)
	messageTagRegex  = regexp.MustCompile(`(?i)</?\s*user-message\b[^>]*>`)
)

var (
	loadOnce sync.Once
	loadErr  error
	tutor    *template.Template
	practice *template.Template
)

// TutorData holds template data for the interactive tutor prompt.
type TutorData struct {
	Anchor      string
	HistoryJSON string
	Message     string
}

// PracticeData holds template data for practice question generation.
type PracticeData struct {
	Topic      string
	Count      int
	Difficulty string
}

func load() error {
	loadOnce.Do(func() {
		tutor, loadErr = parse("templates/tutor.txt")
		if loadErr != nil {
			return
		}
		practice, loadErr = parse("templates/practice.txt")
	})
	return loadErr
}

func parse(name string) (*template.Template, error) {
	content, err := templateFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

// BuildTutorPrompt renders the anchor question, the history oldest first, and
// the new message, in that order. History is replayed verbatim as JSON outside
// the tagged blocks; only the anchor and the new message are sanitized.
func BuildTutorPrompt(anchor string, history []model.Turn, message string) (string, error) {
	if err := load(); err != nil {
		return "", err
	}

	if history == nil {
		history = []model.Turn{}
	}
	var hist bytes.Buffer
	enc := json.NewEncoder(&hist)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(history); err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}

	data := TutorData{
		Anchor:      sanitize(anchor),
		HistoryJSON: strings.TrimSpace(hist.String()),
		Message:     sanitize(message),
	}
	var buf bytes.Buffer
	if err := tutor.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildPracticePrompt renders the practice question generation prompt.
func BuildPracticePrompt(topic string, count int, difficulty string) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	data := PracticeData{
		Topic:      sanitize(topic),
		Count:      count,
		Difficulty: sanitize(difficulty),
	}
	var buf bytes.Buffer
	if err := practice.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitize strips the delimiter tags used by the templates so user text cannot
// close its own block, and truncates oversized input.
func sanitize(s string) string {
	s = questionTagRegex.ReplaceAllString(s, "")
	s = messageTagRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if utf8.RuneCountInString(s) > maxInputRunes {
		runes := []rune(s)
		s = string(runes[:maxInputRunes]) + "\n\n[truncated due to length]"
	}
	return s
}
