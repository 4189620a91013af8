package model

import (
	"context"
	"time"
)

// QuestionRecord is one row of the question bank. Fields are stored as read
// from the source; comparisons case-fold at match time.
type QuestionRecord struct {
	Year         string `json:"year"`
	Subject      string `json:"sub"`
	ExamType     string `json:"examtype"`
	QuestionType string `json:"type"`
	Difficulty   string `json:"difficulty"`
	Text         string `json:"question"`
}

// Turn is one exchange in an interactive conversation.
type Turn struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// Session is a point-in-time copy of a conversation's state.
type Session struct {
	ID           string    `json:"session_id"`
	Anchor       string    `json:"question"`
	History      []Turn    `json:"history"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// PracticeQuestion is a generated multiple-choice question.
type PracticeQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	Language          string // default language for classifier calls and messages
	ClassifierTimeout time.Duration
	GeneratorTimeout  time.Duration
	AdminPassword     string   // empty disables admin routes
	CORSOrigins       []string // empty disables CORS headers
}

type requestIDCtxKey struct{}

// ContextWithRequestID stores a request identifier in context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

// RequestIDFromContext retrieves the request identifier (empty string if not set).
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}
