package model

import "time"

// TranscriptExport is the top-level JSON structure for journal export.
type TranscriptExport struct {
	ExportedAt time.Time           `json:"exported_at"`
	BankSource string              `json:"bank_source,omitempty"`
	Sessions   []SessionTranscript `json:"sessions"`
	Queries    []QueryLogEntry     `json:"queries"`
}

// SessionTranscript holds every journaled turn of one interactive session.
type SessionTranscript struct {
	SessionID string           `json:"session_id"`
	Turns     []TranscriptTurn `json:"turns"`
}

// TranscriptTurn is a single journaled exchange.
type TranscriptTurn struct {
	ID     string    `json:"id"`
	Anchor string    `json:"question"`
	User   string    `json:"user"`
	Bot    string    `json:"bot"`
	At     time.Time `json:"at"`
}

// QueryLogEntry records one query-flow request and how it was answered.
type QueryLogEntry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Intent    string    `json:"intent"`
	Matches   int       `json:"matches"`
	At        time.Time `json:"at"`
}
