package apihttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mediavault/internal/domain"
	"mediavault/internal/usecase"
)

type StreamMediaUseCase interface {
	Execute(ctx context.Context, who domain.Principal, target usecase.StreamTarget, rangeHeader string) (usecase.StreamResult, error)
}

type ProgressUseCase interface {
	Save(ctx context.Context, userEmail string, in usecase.SaveProgressInput) error
	Get(ctx context.Context, userEmail, fileName string) (domain.WatchProgress, bool, error)
	LastSeriesEpisode(ctx context.Context, userEmail, seriesName string) (domain.WatchProgress, error)
	ListForSeries(ctx context.Context, userEmail, seriesName string) ([]domain.WatchProgress, error)
	SeriesState(ctx context.Context, userEmail, seriesName string) ([]domain.EpisodeState, error)
}

type CatalogReader interface {
	ListSeries(ctx context.Context) ([]string, error)
	Seasons(ctx context.Context, seriesName string) ([]domain.Season, error)
}

type NextEpisodeUseCase interface {
	Execute(ctx context.Context, currentPath string) (domain.Episode, bool, error)
}

type AnalyticsUseCase interface {
	TopSeries(ctx context.Context) ([]domain.WatchCount, error)
	TopPicks(ctx context.Context) ([]domain.WatchCount, error)
	StreamLogs(ctx context.Context, limit int) ([]domain.StreamLogEntry, error)
}

const (
	defaultRateLimitRPS   = 100
	defaultRateLimitBurst = 200
)

type Server struct {
	streamMedia    StreamMediaUseCase
	progress       ProgressUseCase
	catalog        CatalogReader
	nextEpisode    NextEpisodeUseCase
	analytics      AnalyticsUseCase
	jwtSecret      []byte
	allowedOrigins []string
	rateRPS        float64
	rateBurst      int
	metrics        http.Handler
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithJWTSecret sets the HS256 key used to verify access tokens.
func WithJWTSecret(secret []byte) ServerOption {
	return func(s *Server) {
		s.jwtSecret = secret
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateRPS = rps
		s.rateBurst = burst
	}
}

func WithProgress(uc ProgressUseCase) ServerOption {
	return func(s *Server) {
		s.progress = uc
	}
}

func WithCatalog(catalog CatalogReader) ServerOption {
	return func(s *Server) {
		s.catalog = catalog
	}
}

func WithNextEpisode(uc NextEpisodeUseCase) ServerOption {
	return func(s *Server) {
		s.nextEpisode = uc
	}
}

func WithAnalytics(uc AnalyticsUseCase) ServerOption {
	return func(s *Server) {
		s.analytics = uc
	}
}

// WithMetricsHandler replaces the default Prometheus handler served at
// /metrics, e.g. with one bound to a private registry.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithActivityFeed serves feed at /admin/activity/ws. Without it the server
// runs a feed of its own that nothing publishes to.
func WithActivityFeed(feed *ActivityFeed) ServerOption {
	return func(s *Server) {
		if feed != nil {
			s.wsHub = feed.hub
		}
	}
}

func NewServer(streamMedia StreamMediaUseCase, opts ...ServerOption) *Server {
	s := &Server{
		streamMedia: streamMedia,
		rateRPS:     defaultRateLimitRPS,
		rateBurst:   defaultRateLimitBurst,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = promhttp.Handler()
	}

	if s.wsHub == nil {
		s.wsHub = NewActivityFeed(s.logger).hub
	}

	user := func(h http.HandlerFunc) http.Handler { return authMiddleware(s.jwtSecret, false, h) }
	admin := func(h http.HandlerFunc) http.Handler { return authMiddleware(s.jwtSecret, true, h) }

	mux := http.NewServeMux()
	mux.Handle("GET /stream/movie/{folder}/{filename}", user(s.handleStreamMovie))
	mux.Handle("GET /stream/file", user(s.handleStreamFile))
	mux.Handle("POST /progress", user(s.handleSaveProgress))
	mux.Handle("GET /progress", user(s.handleGetProgress))
	mux.Handle("GET /progress/last-series-episode", user(s.handleLastSeriesEpisode))
	mux.Handle("GET /progress/all-for-series", user(s.handleAllForSeries))
	mux.Handle("GET /progress/series-state", user(s.handleSeriesState))
	mux.Handle("GET /series", user(s.handleListSeries))
	mux.Handle("GET /series/next", user(s.handleNextEpisode))
	mux.Handle("GET /series/{seriesName}", user(s.handleSeriesSeasons))
	mux.Handle("GET /top-series", user(s.handleTopSeries))
	mux.Handle("GET /top-picks", user(s.handleTopPicks))
	mux.Handle("GET /admin/stream-logs", admin(s.handleStreamLogs))
	mux.Handle("GET /admin/activity/ws", admin(s.handleWS))
	mux.Handle("GET /metrics", s.metrics)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "mediavault",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.stopped:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops the WebSocket hub, disconnecting all clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}
