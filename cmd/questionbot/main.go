package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/questionbot/internal/bank"
	"github.com/pavelanni/questionbot/internal/query"
	"github.com/pavelanni/questionbot/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "questionbot",
		Short: "Exam question bank chatbot with an interactive tutor",
	}

	serve := serveCmd()
	root.AddCommand(serve, searchCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `questionbot --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the question bank from the command line",
		Args:  cobra.NoArgs,
		RunE:  runSearch,
	}
	f := cmd.Flags()
	f.StringP("bank", "b", "questions.csv", "Question bank CSV path")
	f.String("year", "", "Exact year")
	f.String("exam-type", "", "Exam type (substring, case-insensitive)")
	f.StringP("subject", "s", "", "Subject (substring, case-insensitive)")
	f.String("type", "", "Question type (substring, case-insensitive)")
	f.StringP("difficulty", "d", "", "Difficulty (exact, case-insensitive)")
	f.StringP("topic", "t", "", `Search terms; separate alternatives with "or"`)
	f.IntP("number", "n", query.DefaultLimit, "Maximum number of questions")
	f.Bool("json", false, "Print matching records as JSON")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export journaled transcripts and queries as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "questionbot.db", "SQLite journal path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUESTIONBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("questionbot")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/questionbot")
	v.AddConfigPath("/etc/questionbot")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runSearch(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	b, err := bank.LoadFile(v.GetString("bank"))
	if err != nil {
		return err
	}

	c := query.NewCriteria(
		query.WithYear(bank.NormalizeYear(v.GetString("year"))),
		query.WithExamType(v.GetString("exam-type")),
		query.WithSubject(v.GetString("subject")),
		query.WithQuestionType(v.GetString("type")),
		query.WithDifficulty(v.GetString("difficulty")),
		query.WithSearch(v.GetString("topic")),
		query.WithLimit(v.GetInt("number")),
	)
	found := query.Filter(b.All(), c)
	slog.Debug("search", "bank", b.Source(), "records", b.Len(), "matches", len(found))

	out := cmd.OutOrStdout()
	if v.GetBool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	}
	text, ok := query.Present(found)
	if !ok {
		fmt.Fprintln(out, "No matching questions.")
		return nil
	}
	_, err = fmt.Fprintln(out, text)
	return err
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportTranscripts(context.Background())
	if err != nil {
		return fmt.Errorf("export transcripts: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
