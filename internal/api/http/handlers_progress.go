package apihttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"mediavault/internal/auth"
	"mediavault/internal/domain"
	"mediavault/internal/metrics"
	"mediavault/internal/usecase"
)

const maxProgressBody = 16 << 10

type saveProgressRequest struct {
	FileName string   `json:"fileName"`
	Time     *float64 `json:"time"`
	Duration float64  `json:"duration"`
	Type     string   `json:"type"`
	FullPath string   `json:"fullPath"`
}

func (s *Server) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	if s.progress == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "progress not configured")
		return
	}
	who, _ := auth.PrincipalFromContext(r.Context())

	var body saveProgressRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProgressBody)).Decode(&body); err != nil {
		metrics.ProgressSavesTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}

	err := s.progress.Save(r.Context(), who.Email, usecase.SaveProgressInput{
		FileName: body.FileName,
		Time:     body.Time,
		Duration: body.Duration,
		Type:     domain.ContentType(body.Type),
		FullPath: body.FullPath,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			metrics.ProgressSavesTotal.WithLabelValues("invalid").Inc()
		} else {
			metrics.ProgressSavesTotal.WithLabelValues("error").Inc()
			s.logger.Error("save progress failed",
				slog.String("user", who.Email),
				slog.String("fileName", body.FileName),
				slog.String("error", err.Error()),
			)
		}
		writeUseCaseError(w, err)
		return
	}
	metrics.ProgressSavesTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Progress saved"})
}

// handleGetProgress answers with an empty object when nothing was saved yet,
// which players treat as "start from the beginning".
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if s.progress == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "progress not configured")
		return
	}
	fileName, ok := requiredQuery(r, "fileName")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing fileName")
		return
	}
	who, _ := auth.PrincipalFromContext(r.Context())

	record, found, err := s.progress.Get(r.Context(), who.Email, fileName)
	if err != nil {
		s.logRepoFailure("get progress", who, err)
		writeUseCaseError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleLastSeriesEpisode(w http.ResponseWriter, r *http.Request) {
	if s.progress == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "progress not configured")
		return
	}
	seriesName, ok := requiredQuery(r, "seriesName")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing seriesName")
		return
	}
	who, _ := auth.PrincipalFromContext(r.Context())

	record, err := s.progress.LastSeriesEpisode(r.Context(), who.Email, seriesName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "No progress found")
			return
		}
		s.logRepoFailure("last series episode", who, err)
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleAllForSeries(w http.ResponseWriter, r *http.Request) {
	if s.progress == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "progress not configured")
		return
	}
	seriesName, ok := requiredQuery(r, "seriesName")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing seriesName")
		return
	}
	who, _ := auth.PrincipalFromContext(r.Context())

	records, err := s.progress.ListForSeries(r.Context(), who.Email, seriesName)
	if err != nil {
		s.logRepoFailure("series progress", who, err)
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSeriesState(w http.ResponseWriter, r *http.Request) {
	if s.progress == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "progress not configured")
		return
	}
	seriesName, ok := requiredQuery(r, "seriesName")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing seriesName")
		return
	}
	who, _ := auth.PrincipalFromContext(r.Context())

	states, err := s.progress.SeriesState(r.Context(), who.Email, seriesName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Series not found")
			return
		}
		s.logRepoFailure("series state", who, err)
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) logRepoFailure(op string, who domain.Principal, err error) {
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) {
		return
	}
	s.logger.Error(op+" failed",
		slog.String("user", who.Email),
		slog.String("error", err.Error()),
	)
}
