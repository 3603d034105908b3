package apihttp

import (
	"errors"
	"log/slog"
	"net/http"

	"mediavault/internal/domain"
)

type nextEpisodeResponse struct {
	Next *domain.Episode `json:"next"`
}

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "catalog not configured")
		return
	}
	names, err := s.catalog.ListSeries(r.Context())
	if err != nil {
		s.logger.Error("list series failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "io_error", "Could not list series folders")
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleSeriesSeasons(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "catalog not configured")
		return
	}
	name := r.PathValue("seriesName")
	seasons, err := s.catalog.Seasons(r.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Series not found")
			return
		}
		s.logger.Error("load series failed",
			slog.String("series", name),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "io_error", "Could not load series")
		return
	}
	if seasons == nil {
		seasons = []domain.Season{}
	}
	writeJSON(w, http.StatusOK, domain.Series{Series: name, Seasons: seasons})
}

func (s *Server) handleNextEpisode(w http.ResponseWriter, r *http.Request) {
	if s.nextEpisode == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "catalog not configured")
		return
	}
	path, ok := requiredQuery(r, "path")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing path")
		return
	}

	next, found, err := s.nextEpisode.Execute(r.Context(), path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Season not found")
			return
		}
		if !errors.Is(err, domain.ErrInvalidInput) {
			s.logger.Error("next episode failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		writeUseCaseError(w, err)
		return
	}
	resp := nextEpisodeResponse{}
	if found {
		resp.Next = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTopSeries(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "analytics not configured")
		return
	}
	rows, err := s.analytics.TopSeries(r.Context())
	s.writeTop(w, "top series", rows, err)
}

func (s *Server) handleTopPicks(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "analytics not configured")
		return
	}
	rows, err := s.analytics.TopPicks(r.Context())
	s.writeTop(w, "top picks", rows, err)
}

func (s *Server) writeTop(w http.ResponseWriter, op string, rows []domain.WatchCount, err error) {
	if err != nil {
		s.logger.Error(op+" failed", slog.String("error", err.Error()))
		writeUseCaseError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.WatchCount{}
	}
	writeJSON(w, http.StatusOK, rows)
}
