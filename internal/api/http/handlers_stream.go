package apihttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"mediavault/internal/auth"
	"mediavault/internal/domain"
	"mediavault/internal/metrics"
	"mediavault/internal/services/stream"
	"mediavault/internal/usecase"
)

func (s *Server) handleStreamMovie(w http.ResponseWriter, r *http.Request) {
	s.serveStream(w, r, usecase.StreamTarget{
		Type:     domain.ContentMovie,
		Folder:   r.PathValue("folder"),
		Filename: r.PathValue("filename"),
	})
}

func (s *Server) handleStreamFile(w http.ResponseWriter, r *http.Request) {
	path, ok := requiredQuery(r, "path")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "path is required")
		return
	}
	s.serveStream(w, r, usecase.StreamTarget{Type: domain.ContentSeries, Path: path})
}

func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, target usecase.StreamTarget) {
	if s.streamMedia == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "streaming not configured")
		return
	}
	who, _ := auth.PrincipalFromContext(r.Context())
	target.Probe = r.Method == http.MethodHead
	typ := string(target.Type)

	result, err := s.streamMedia.Execute(r.Context(), who, target, r.Header.Get("Range"))
	if err != nil {
		metrics.StreamRequestsTotal.WithLabelValues(typ, streamOutcome(err)).Inc()
		if errors.Is(err, stream.ErrRangeNotSatisfiable) {
			w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(result.File.Size, 10))
			writeError(w, http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable", "Requested range not satisfiable")
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "File not found")
			return
		}
		s.logger.Error("stream negotiation failed",
			slog.String("type", typ),
			slog.String("error", err.Error()),
		)
		writeUseCaseError(w, err)
		return
	}

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	n, err := stream.Emit(w, result.File, result.Range, result.Synthesized, r.Method != http.MethodHead)
	metrics.StreamBytesTotal.WithLabelValues(typ).Add(float64(n))
	if err == nil {
		metrics.StreamRequestsTotal.WithLabelValues(typ, "ok").Inc()
		return
	}
	if errors.Is(err, stream.ErrFileUnavailable) {
		// Nothing was written yet.
		metrics.StreamRequestsTotal.WithLabelValues(typ, "io_error").Inc()
		s.logger.Error("stream open failed",
			slog.String("path", result.File.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "io_error", "Failed to read media")
		return
	}
	metrics.StreamRequestsTotal.WithLabelValues(typ, "aborted").Inc()
	metrics.StreamAbortsTotal.Inc()
	s.logger.Debug("stream aborted",
		slog.String("path", result.File.Path),
		slog.String("range", result.Range.ContentRange()),
		slog.Int64("bytes", n),
		slog.String("error", err.Error()),
	)
}

func streamOutcome(err error) string {
	switch {
	case errors.Is(err, stream.ErrRangeNotSatisfiable):
		return "unsatisfiable"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
