package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/questionbot/internal/model"
)

// ExportTranscripts builds an export of every journaled session and query.
func (s *Store) ExportTranscripts(ctx context.Context) (model.TranscriptExport, error) {
	export := model.TranscriptExport{ExportedAt: s.now()}

	source, err := s.GetMetadata(ctx, MetaBankSource)
	if err != nil {
		return export, fmt.Errorf("get bank source: %w", err)
	}
	export.BankSource = source

	ids, err := s.ListSessionIDs(ctx)
	if err != nil {
		return export, fmt.Errorf("list sessions: %w", err)
	}

	export.Sessions = make([]model.SessionTranscript, 0, len(ids))
	for _, id := range ids {
		turns, err := s.ListTurns(ctx, id)
		if err != nil {
			return export, fmt.Errorf("list turns for %s: %w", id, err)
		}
		export.Sessions = append(export.Sessions, model.SessionTranscript{
			SessionID: id,
			Turns:     turns,
		})
	}

	queries, err := s.ListQueries(ctx)
	if err != nil {
		return export, fmt.Errorf("list queries: %w", err)
	}
	if queries == nil {
		queries = []model.QueryLogEntry{}
	}
	export.Queries = queries

	return export, nil
}
