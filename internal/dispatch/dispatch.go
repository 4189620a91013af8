// Package dispatch routes chat requests to the retrieval flow or the
// interactive tutoring flow.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/questionbot/internal/intent"
	"github.com/pavelanni/questionbot/internal/llm"
	"github.com/pavelanni/questionbot/internal/metrics"
	"github.com/pavelanni/questionbot/internal/model"
	"github.com/pavelanni/questionbot/internal/query"
	"github.com/pavelanni/questionbot/internal/session"
)

// RetrievalIntent is the classifier intent that triggers a question bank search.
const RetrievalIntent = "get_questions_by_intent"

// Records is the read side of the question bank.
type Records interface {
	All() []model.QuestionRecord
}

// Journal receives completed queries and turns. Writes are best effort.
type Journal interface {
	RecordQuery(ctx context.Context, sessionID, text, intentName string, matches int) error
	RecordTurn(ctx context.Context, sessionID, anchor, user, bot string) error
}

// Deps are the collaborators of a Service. Classifier, Generator, Journal and
// Metrics may be nil.
type Deps struct {
	Records    Records
	Sessions   *session.Manager
	Classifier intent.Classifier
	Generator  llm.Generator
	Journal    Journal
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Config holds per-call limits.
type Config struct {
	Language          string
	ClassifierTimeout time.Duration
	GeneratorTimeout  time.Duration
}

// QueryRequest is a free-text retrieval request.
type QueryRequest struct {
	Text      string
	SessionID string
	Language  string
}

// InteractRequest is one interactive tutoring turn. Question, when set,
// replaces the session's anchor.
type InteractRequest struct {
	SessionID string
	Question  string
	Message   string
}

// Reply is the result of an interactive turn.
type Reply struct {
	Response string       `json:"response"`
	History  []model.Turn `json:"history"`
}

// PracticeRequest asks for generated multiple-choice questions.
type PracticeRequest struct {
	Topic      string
	Count      int
	Difficulty string
}

// Service implements the chat flows.
type Service struct {
	deps   Deps
	cfg    Config
	lanes  *laneLock
	logger *slog.Logger
}

// New creates a Service. Records and Sessions are required.
func New(deps Deps, cfg Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deps:   deps,
		cfg:    cfg,
		lanes:  newLaneLock(),
		logger: logger,
	}
}

// HasGenerator reports whether interactive and practice flows are available.
func (s *Service) HasGenerator() bool {
	return s.deps.Generator != nil
}

// Query classifies req.Text and, for the retrieval intent, searches the bank.
// When nothing matches, or for any other intent, the classifier's own
// fulfillment text is returned.
func (s *Service) Query(ctx context.Context, req QueryRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", fmt.Errorf("%w: message", model.ErrMissingField)
	}
	if s.deps.Classifier == nil {
		return "", fmt.Errorf("%w: no classifier configured", model.ErrClassifier)
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if req.Language == "" {
		req.Language = s.cfg.Language
	}

	cctx, cancel := withTimeout(ctx, s.cfg.ClassifierTimeout)
	start := time.Now()
	res, err := s.deps.Classifier.Classify(cctx, intent.Request{
		Text:      req.Text,
		SessionID: req.SessionID,
		Language:  req.Language,
	})
	cancel()
	s.deps.Metrics.ObserveUpstream("classifier", time.Since(start))
	if err != nil {
		if !errors.Is(err, model.ErrClassifier) {
			err = fmt.Errorf("%w: %w", model.ErrClassifier, err)
		}
		s.deps.Metrics.RecordQuery("", metrics.OutcomeError, 0)
		return "", err
	}

	reply := res.FulfillmentText
	matches := 0
	if strings.EqualFold(res.Intent, RetrievalIntent) {
		c, err := query.CriteriaFromParams(res.Params)
		if err != nil {
			s.deps.Metrics.RecordQuery(res.Intent, metrics.OutcomeError, 0)
			return "", err
		}
		found := query.Filter(s.deps.Records.All(), c)
		matches = len(found)
		if text, ok := query.Present(found); ok {
			reply = text
		}
		s.logger.Debug("retrieval", "session_id", req.SessionID, "matches", matches, "limit", c.Limit,
			"request_id", model.RequestIDFromContext(ctx))
	}
	s.deps.Metrics.RecordQuery(res.Intent, metrics.OutcomeOK, matches)

	if s.deps.Journal != nil {
		if err := s.deps.Journal.RecordQuery(ctx, req.SessionID, req.Text, res.Intent, matches); err != nil {
			s.logger.Warn("journal query", "session_id", req.SessionID, "error", err)
		}
	}
	return reply, nil
}

// Interact runs one tutoring turn. Turns for the same session are serialized
// so a reply always sees the history of every earlier turn. On failure the
// session's history is left unchanged.
func (s *Service) Interact(ctx context.Context, req InteractRequest) (Reply, error) {
	if req.SessionID == "" {
		return Reply{}, fmt.Errorf("%w: session id", model.ErrMissingField)
	}
	if strings.TrimSpace(req.Message) == "" {
		return Reply{}, fmt.Errorf("%w: message", model.ErrMissingField)
	}
	if s.deps.Generator == nil {
		return Reply{}, model.ErrGeneratorUnavailable
	}

	release, err := s.lanes.acquire(ctx, req.SessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("wait for session %s: %w", req.SessionID, err)
	}
	defer release()

	_, unhold, err := s.deps.Sessions.Hold(req.SessionID, req.Question)
	if err != nil {
		return Reply{}, err
	}
	defer unhold()
	prompt, err := s.deps.Sessions.BuildPrompt(req.SessionID, req.Message)
	if err != nil {
		return Reply{}, err
	}

	text, err := s.generate(ctx, prompt)
	s.deps.Metrics.RecordTurn(metrics.Outcome(err))
	if err != nil {
		s.logger.Error("interactive turn", "session_id", req.SessionID,
			"request_id", model.RequestIDFromContext(ctx), "error", err)
		return Reply{}, err
	}

	if err := s.deps.Sessions.AppendTurn(req.SessionID, req.Message, text); err != nil {
		return Reply{}, err
	}
	snap, err := s.deps.Sessions.Get(req.SessionID)
	if err != nil {
		return Reply{}, err
	}

	if s.deps.Journal != nil {
		if err := s.deps.Journal.RecordTurn(ctx, snap.ID, snap.Anchor, req.Message, text); err != nil {
			s.logger.Warn("journal turn", "session_id", snap.ID, "error", err)
		}
	}
	return Reply{Response: text, History: snap.History}, nil
}

// Reset deletes a session. It waits for an in-flight turn on the same session.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id", model.ErrMissingField)
	}
	release, err := s.lanes.acquire(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("wait for session %s: %w", sessionID, err)
	}
	defer release()
	return s.deps.Sessions.Reset(sessionID)
}

// Practice generates multiple-choice questions on a topic.
func (s *Service) Practice(ctx context.Context, req PracticeRequest) ([]model.PracticeQuestion, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: topic", model.ErrMissingField)
	}
	if s.deps.Generator == nil {
		return nil, model.ErrGeneratorUnavailable
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = "medium"
	}

	gctx, cancel := withTimeout(ctx, s.cfg.GeneratorTimeout)
	defer cancel()
	start := time.Now()
	qs, err := llm.GeneratePractice(gctx, s.deps.Generator, req.Topic, req.Count, difficulty)
	s.deps.Metrics.ObserveUpstream("generator", time.Since(start))
	s.deps.Metrics.RecordPractice(metrics.Outcome(err))
	if err != nil {
		return nil, generationError(err)
	}
	return qs, nil
}

// generate makes the single generator call of a turn.
func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	gctx, cancel := withTimeout(ctx, s.cfg.GeneratorTimeout)
	defer cancel()

	start := time.Now()
	text, err := s.deps.Generator.Generate(gctx, prompt)
	s.deps.Metrics.ObserveUpstream("generator", time.Since(start))
	if err != nil {
		return "", generationError(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", model.ErrEmptyGeneration
	}
	return text, nil
}

// generationError makes sure err carries one of the generation sentinels.
func generationError(err error) error {
	if errors.Is(err, model.ErrGeneration) || errors.Is(err, model.ErrEmptyGeneration) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrGeneration, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
