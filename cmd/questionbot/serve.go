package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/questionbot/internal/bank"
	"github.com/pavelanni/questionbot/internal/dispatch"
	"github.com/pavelanni/questionbot/internal/handler"
	appI18n "github.com/pavelanni/questionbot/internal/i18n"
	"github.com/pavelanni/questionbot/internal/intent"
	"github.com/pavelanni/questionbot/internal/llm"
	"github.com/pavelanni/questionbot/internal/metrics"
	"github.com/pavelanni/questionbot/internal/model"
	"github.com/pavelanni/questionbot/internal/session"
	"github.com/pavelanni/questionbot/internal/store"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP chatbot server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("bank", "b", "questions.csv", "Question bank CSV path")
	f.String("db", "questionbot.db", "SQLite journal path (empty disables the journal)")
	f.StringP("lang", "l", "en", "Default language for messages and intent detection (en, ru)")
	f.String("dialogflow-project", "", "Dialogflow ES project ID (empty disables /chat retrieval)")
	f.String("dialogflow-credentials", "", "Service account JSON file (or set GOOGLE_APPLICATION_CREDENTIALS_JSON)")
	f.String("dialogflow-language", "", "Dialogflow language code (defaults to --lang)")
	f.String("generator", llm.BackendGemini, "Text generator backend (gemini, openai, none)")
	f.String("gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	f.String("gemini-model", llm.DefaultGeminiModel, "Gemini model name")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for the OpenAI-compatible endpoint")
	f.String("llm-model", "llama3.2", "OpenAI-compatible model name")
	f.Duration("classifier-timeout", 10*time.Second, "Timeout for one intent detection call")
	f.Duration("generator-timeout", 60*time.Second, "Timeout for one generation call")
	f.Int("max-sessions", 10000, "Maximum live interactive sessions (0 = unbounded)")
	f.Duration("session-idle", 2*time.Hour, "Idle time after which a session is pruned (0 = never)")
	f.String("prune-schedule", "@every 10m", "Cron schedule for pruning idle sessions")
	f.String("admin-password", "", "Admin password for /admin routes (or set QUESTIONBOT_ADMIN_PASSWORD)")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins (empty disables CORS)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	b := loadBank(v.GetString("bank"))

	var m *metrics.Metrics
	sessions := session.NewManager(session.Config{
		MaxSessions: v.GetInt("max-sessions"),
		MaxIdle:     v.GetDuration("session-idle"),
		OnEvict:     func(reason string) { m.RecordEviction(reason) },
	})
	m = metrics.New(sessions.Len, b.Len)

	deps := dispatch.Deps{Records: b, Sessions: sessions, Metrics: m}
	var exporter handler.Exporter

	if path := v.GetString("db"); path != "" {
		db, err := store.New(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.SetBankInfo(ctx, store.BankInfo{Source: b.Source(), Checksum: b.Checksum(), Records: b.Len()}); err != nil {
			slog.Warn("failed to record bank info", "error", err)
		}
		deps.Journal = db
		exporter = db
	}

	classifier, err := newClassifier(ctx, v, lang)
	if err != nil {
		return err
	}
	if classifier != nil {
		defer classifier.Close()
		deps.Classifier = classifier
	}

	generator, err := newGenerator(ctx, v)
	if err != nil {
		return err
	}
	if generator != nil {
		deps.Generator = generator
	}

	svc := dispatch.New(deps, dispatch.Config{
		Language:          v.GetString("dialogflow-language"),
		ClassifierTimeout: v.GetDuration("classifier-timeout"),
		GeneratorTimeout:  v.GetDuration("generator-timeout"),
	})

	cfg := model.ServerConfig{
		Language:          lang,
		ClassifierTimeout: v.GetDuration("classifier-timeout"),
		GeneratorTimeout:  v.GetDuration("generator-timeout"),
		AdminPassword:     v.GetString("admin-password"),
		CORSOrigins:       v.GetStringSlice("cors-origins"),
	}
	h, err := handler.New(svc, sessions, b, m, exporter, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	var janitor *session.Janitor
	if v.GetDuration("session-idle") > 0 && v.GetString("prune-schedule") != "" {
		janitor, err = session.NewJanitor(sessions, v.GetString("prune-schedule"), slog.Default())
		if err != nil {
			return err
		}
		janitor.Start()
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server",
			"addr", addr,
			"lang", lang,
			"questions", b.Len(),
			"bank", b.Source(),
			"classifier", classifier != nil,
			"generator", v.GetString("generator"),
			"generator_ready", generator != nil,
			"max_sessions", v.GetInt("max-sessions"),
			"session_idle", v.GetDuration("session-idle"),
			"admin", cfg.AdminPassword != "",
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if janitor != nil {
			if err := janitor.Stop(shutdownCtx); err != nil {
				slog.Warn("session janitor stop", "error", err)
			}
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// loadBank reads the question bank. A missing or unreadable bank is logged
// and replaced by an empty one so the server still answers.
func loadBank(path string) *bank.Bank {
	b, err := bank.LoadFile(path)
	if err != nil {
		slog.Error("question bank unavailable, serving an empty bank", "path", path, "error", err)
		return bank.Empty()
	}
	slog.Info("loaded question bank", "path", path, "count", b.Len(), "checksum", b.Checksum())
	return b
}

func newClassifier(ctx context.Context, v *viper.Viper, lang string) (*intent.Dialogflow, error) {
	project := v.GetString("dialogflow-project")
	if project == "" {
		slog.Warn("no dialogflow project configured, /chat will report classifier errors")
		return nil, nil
	}
	language := v.GetString("dialogflow-language")
	if language == "" {
		language = lang
	}
	d, err := intent.NewDialogflow(ctx, intent.DialogflowConfig{
		ProjectID:       project,
		CredentialsFile: v.GetString("dialogflow-credentials"),
		Language:        language,
	})
	if err != nil {
		return nil, fmt.Errorf("create classifier: %w", err)
	}
	slog.Info("dialogflow classifier ready", "project", project, "language", language)
	return d, nil
}

func newGenerator(ctx context.Context, v *viper.Viper) (llm.Generator, error) {
	geminiKey := v.GetString("gemini-key")
	if geminiKey == "" {
		geminiKey = os.Getenv("GEMINI_API_KEY")
	}
	gen, err := llm.New(ctx, llm.Options{
		Backend:     v.GetString("generator"),
		GeminiKey:   geminiKey,
		GeminiModel: v.GetString("gemini-model"),
		BaseURL:     v.GetString("llm-url"),
		APIKey:      v.GetString("llm-key"),
		Model:       v.GetString("llm-model"),
	})
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	if gen == nil {
		slog.Warn("no generator configured, interactive chat and practice questions are disabled",
			"generator", v.GetString("generator"))
		return nil, nil
	}

	if p, ok := gen.(llm.Pinger); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			slog.Warn("generator health check failed", "generator", v.GetString("generator"), "error", err)
		} else {
			slog.Info("generator endpoint OK", "generator", v.GetString("generator"))
		}
	}
	return gen, nil
}
