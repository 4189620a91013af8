package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/questionbot/internal/i18n"
)

func (h *Handler) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.List()
	resp := map[string]any{
		"summary":  appI18n.Tp(r.Context(), "SessionsActive", len(sessions)),
		"sessions": sessions,
	}
	if h.exporter != nil {
		n, err := h.exporter.TurnCount(r.Context())
		if err != nil {
			slog.Error("failed to count journaled turns", "error", err)
			writeError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "InternalError"))
			return
		}
		resp["journaled_turns"] = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAdminDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Reset(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("admin removed session", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	export, err := h.exporter.ExportTranscripts(r.Context())
	if err != nil {
		slog.Error("failed to export transcripts", "error", err)
		writeError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "InternalError"))
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="transcripts.json"`)
	writeJSON(w, http.StatusOK, export)
}
