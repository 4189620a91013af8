// Package handler exposes the chatbot over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/questionbot/internal/dispatch"
	appI18n "github.com/pavelanni/questionbot/internal/i18n"
	"github.com/pavelanni/questionbot/internal/metrics"
	"github.com/pavelanni/questionbot/internal/model"
	"github.com/pavelanni/questionbot/internal/session"
)

const maxBodyBytes = 1 << 20

// Counter reports a size, such as the number of loaded questions.
type Counter interface {
	Len() int
}

// Exporter reads back the transcript journal.
type Exporter interface {
	ExportTranscripts(ctx context.Context) (model.TranscriptExport, error)
	TurnCount(ctx context.Context) (int, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc       *dispatch.Service
	sessions  *session.Manager
	bank      Counter
	metrics   *metrics.Metrics
	exporter  Exporter
	config    model.ServerConfig
	adminHash []byte
}

// New creates a new Handler. metrics and exporter may be nil.
func New(svc *dispatch.Service, sessions *session.Manager, bank Counter, m *metrics.Metrics, exporter Exporter, cfg model.ServerConfig) (*Handler, error) {
	h := &Handler{
		svc:      svc,
		sessions: sessions,
		bank:     bank,
		metrics:  m,
		exporter: exporter,
		config:   cfg,
	}
	if cfg.AdminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		h.adminHash = hash
	}
	return h, nil
}

// Router builds the full middleware stack and mounts Routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(h.config.Language))
	if len(h.config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.config.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	h.Routes(r)
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/interactive-chat", h.handleInteractiveChat)
	r.Post("/reset-session", h.handleResetSession)
	r.Post("/generate-questions", h.handleGenerateQuestions)
	r.Post("/webhook", h.handleWebhook)
	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	if h.adminHash != nil {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(h.requireAdmin)
			ar.Get("/sessions", h.handleAdminSessions)
			ar.Delete("/sessions/{id}", h.handleAdminDeleteSession)
			ar.Get("/export", h.handleAdminExport)
		})
	}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	FulfillmentText string `json:"fulfillmentText"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{FulfillmentText: appI18n.T(r.Context(), "NoMessage")})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, chatResponse{FulfillmentText: appI18n.T(r.Context(), "NoMessage")})
		return
	}

	text, err := h.svc.Query(r.Context(), dispatch.QueryRequest{
		Text:      req.Message,
		SessionID: req.SessionID,
	})
	if err != nil {
		status, msg := h.describe(r.Context(), err)
		slog.Error("chat query failed", "session_id", req.SessionID, "status", status, "error", err)
		writeJSON(w, status, map[string]string{"fulfillmentText": msg, "error": msg})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{FulfillmentText: text})
}

// sessionRequest accepts both spellings of the session id used by clients.
type sessionRequest struct {
	SessionID      string `json:"sessionId"`
	SessionIDSnake string `json:"session_id"`
}

func (s sessionRequest) id() string {
	if s.SessionID != "" {
		return s.SessionID
	}
	return s.SessionIDSnake
}

type interactiveRequest struct {
	sessionRequest
	Question string `json:"question"`
	Message  string `json:"message"`
}

func (h *Handler) handleInteractiveChat(w http.ResponseWriter, r *http.Request) {
	var req interactiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "InvalidRequest"))
		return
	}
	if req.id() == "" {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "SessionIDRequired"))
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "MessageRequired"))
		return
	}

	reply, err := h.svc.Interact(r.Context(), dispatch.InteractRequest{
		SessionID: req.id(),
		Question:  req.Question,
		Message:   req.Message,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleResetSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "InvalidRequest"))
		return
	}
	if req.id() == "" {
		writeError(w, http.StatusNotFound, appI18n.T(r.Context(), "SessionNotFound"))
		return
	}
	if err := h.svc.Reset(r.Context(), req.id()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "SessionResetOK")})
}

type practiceRequest struct {
	Topic      string `json:"topic"`
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
}

func (h *Handler) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	var req practiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "InvalidRequest"))
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "TopicRequired"))
		return
	}

	qs, err := h.svc.Practice(r.Context(), dispatch.PracticeRequest{
		Topic:      req.Topic,
		Count:      req.Count,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": qs})
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, chatResponse{FulfillmentText: appI18n.T(r.Context(), "WebhookConnected")})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"sessions":  h.sessions.Len(),
		"questions": h.bank.Len(),
		"generator": h.svc.HasGenerator(),
		"languages": appI18n.Languages(),
	})
}

// fail logs err and writes the matching status and localized message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := h.describe(r.Context(), err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "status", status, "error", err,
			"lang", appI18n.Language(r.Context()), "request_id", model.RequestIDFromContext(r.Context()))
	}
	writeError(w, status, msg)
}

// describe maps an error to an HTTP status and a user-facing message.
func (h *Handler) describe(ctx context.Context, err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrMissingField):
		return http.StatusBadRequest, appI18n.T(ctx, "InvalidRequest")
	case errors.Is(err, model.ErrInvalidCriteria):
		return http.StatusBadRequest, appI18n.T(ctx, "InvalidCriteria")
	case errors.Is(err, model.ErrSessionNotFound):
		return http.StatusNotFound, appI18n.T(ctx, "SessionNotFound")
	case errors.Is(err, model.ErrGeneratorUnavailable):
		return http.StatusServiceUnavailable, appI18n.T(ctx, "GeneratorUnavailable")
	case errors.Is(err, model.ErrEmptyGeneration):
		return http.StatusBadGateway, appI18n.T(ctx, "EmptyGeneration")
	case errors.Is(err, model.ErrGeneration):
		return http.StatusBadGateway, appI18n.T(ctx, "GenerationFailed")
	case errors.Is(err, model.ErrClassifier):
		return http.StatusBadGateway, appI18n.T(ctx, "ClassifierFailed")
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, appI18n.T(ctx, "InternalError")
	default:
		return http.StatusInternalServerError, appI18n.T(ctx, "InternalError")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestIDMiddleware copies chi's request id into the context key read by
// the rest of the service.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(model.ContextWithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
