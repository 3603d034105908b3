package apihttp

import (
	"log/slog"
	"net/http"

	"mediavault/internal/domain"
)

func (s *Server) handleStreamLogs(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "analytics not configured")
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}

	logs, err := s.analytics.StreamLogs(r.Context(), limit)
	if err != nil {
		s.logger.Error("list stream logs failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "repository_error", "Error fetching stream logs")
		return
	}
	if logs == nil {
		logs = []domain.StreamLogEntry{}
	}
	writeJSON(w, http.StatusOK, logs)
}
