// Package store keeps an append-only sqlite journal of chat traffic. It is an
// audit log and is never read back into live sessions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/questionbot/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		anchor TEXT NOT NULL DEFAULT '',
		user_message TEXT NOT NULL,
		bot_message TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, created_at);

	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		text TEXT NOT NULL,
		intent TEXT NOT NULL DEFAULT '',
		matches INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordTurn appends one interactive exchange.
func (s *Store) RecordTurn(ctx context.Context, sessionID, anchor, user, bot string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, anchor, user_message, bot_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sessionID, anchor, user, bot, s.now(),
	)
	if err != nil {
		slog.Error("failed to record turn", "session_id", sessionID, "error", err)
	}
	return err
}

// RecordQuery appends one retrieval request and the number of records it matched.
func (s *Store) RecordQuery(ctx context.Context, sessionID, text, intentName string, matches int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (id, session_id, text, intent, matches, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sessionID, text, intentName, matches, s.now(),
	)
	return err
}

// ListTurns returns the journaled turns of a session, oldest first.
func (s *Store) ListTurns(ctx context.Context, sessionID string) ([]model.TranscriptTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, anchor, user_message, bot_message, created_at
		 FROM turns WHERE session_id = ? ORDER BY created_at, rowid`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var turns []model.TranscriptTurn
	for rows.Next() {
		var t model.TranscriptTurn
		if err := rows.Scan(&t.ID, &t.Anchor, &t.User, &t.Bot, &t.At); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ListSessionIDs returns every session id with journaled turns, in order of
// first appearance.
func (s *Store) ListSessionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM turns GROUP BY session_id ORDER BY MIN(rowid)`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListQueries returns the query log, oldest first.
func (s *Store) ListQueries(ctx context.Context) ([]model.QueryLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, text, intent, matches, created_at
		 FROM queries ORDER BY created_at, rowid`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.QueryLogEntry
	for rows.Next() {
		var q model.QueryLogEntry
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Text, &q.Intent, &q.Matches, &q.At); err != nil {
			return nil, err
		}
		entries = append(entries, q)
	}
	return entries, rows.Err()
}

// TurnCount returns the number of journaled turns.
func (s *Store) TurnCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&count)
	return count, err
}
