package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	apihttp "mediavault/internal/api/http"
	"mediavault/internal/app"
	"mediavault/internal/domain/ports"
	"mediavault/internal/metrics"
	"mediavault/internal/repository/memory"
	mongorepo "mediavault/internal/repository/mongo"
	"mediavault/internal/services/activity"
	"mediavault/internal/services/catalog"
	"mediavault/internal/services/stream"
	"mediavault/internal/telemetry"
	"mediavault/internal/usecase"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

const serviceName = "mediavault"

type storage struct {
	logs     ports.StreamLogRepository
	progress ports.WatchProgressRepository
	close    func(context.Context) error
}

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRate:  cfg.OTelSampleRate,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("storage", cfg.StorageBackend),
		slog.String("moviesFolder", cfg.MoviesFolder),
		slog.String("seriesFolder", cfg.SeriesFolder),
		slog.Bool("sharedDebounce", cfg.RedisURL != ""),
		slog.Duration("playbackDebounce", cfg.PlaybackDebounce),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	feed := apihttp.NewActivityFeed(logger)
	activityOpts := []activity.Option{
		activity.WithWindow(cfg.PlaybackDebounce),
		activity.WithPublisher(feed),
		activity.WithLogger(logger),
	}
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = newRedisClient(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using per-process debounce", slog.String("error", err.Error()))
		} else {
			activityOpts = append(activityOpts, activity.WithSharedWindow(activity.NewRedisWindow(redisClient)))
		}
	}
	recorder := activity.NewLogger(store.logs, activityOpts...)

	cache := catalog.NewCache(catalog.NewEnumerator(cfg.SeriesFolder), cfg.CatalogCacheSize, cfg.CatalogCacheTTL, logger)
	if cfg.CatalogWatch {
		watcher, err := catalog.NewWatcher(cfg.SeriesFolder, cache, logger)
		if err != nil {
			logger.Warn("catalog watcher disabled", slog.String("error", err.Error()))
		} else {
			go watcher.Run(rootCtx)
		}
	}

	streamUC := usecase.StreamMedia{
		Resolver: stream.NewResolver(cfg.MoviesFolder, cfg.SeriesFolder),
		Activity: recorder,
		Logger:   logger,
	}

	handler := apihttp.NewServer(streamUC,
		apihttp.WithLogger(logger),
		apihttp.WithJWTSecret([]byte(cfg.JWTSecret)),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		apihttp.WithProgress(usecase.Progress{Repo: store.progress, Catalog: cache}),
		apihttp.WithCatalog(cache),
		apihttp.WithNextEpisode(usecase.NextEpisode{Catalog: cache}),
		apihttp.WithAnalytics(usecase.Analytics{Logs: store.logs}),
		apihttp.WithActivityFeed(feed),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", slog.String("error", err.Error()))
		}
	}
	if err := store.close(shutdownCtx); err != nil {
		logger.Warn("storage close error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func openStorage(ctx context.Context, cfg app.Config, logger *slog.Logger) (storage, error) {
	if cfg.StorageBackend == app.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return storage{
			logs:     memory.NewStreamLogRepository(),
			progress: memory.NewWatchProgressRepository(),
			close:    func(context.Context) error { return nil },
		}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		return storage{}, err
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return storage{}, err
	}

	logs := mongorepo.NewStreamLogRepository(client, cfg.MongoDatabase, mongorepo.WithDedupeBucket(cfg.PlaybackDebounce))
	progress := mongorepo.NewWatchProgressRepository(client, cfg.MongoDatabase)
	ensureIndexes(connectCtx, logger, map[string]interface{ EnsureIndexes(context.Context) error }{
		"streamLogs":    logs,
		"watchProgress": progress,
	})

	return storage{
		logs:     logs,
		progress: progress,
		close:    client.Disconnect,
	}, nil
}

func ensureIndexes(ctx context.Context, logger *slog.Logger, repos map[string]interface{ EnsureIndexes(context.Context) error }) {
	for name, repo := range repos {
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn("ensure indexes failed", slog.String("collection", name), slog.String("error", err.Error()))
		}
	}
}

func newRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
