package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type Config struct {
	HTTPAddr           string
	MongoURI           string
	MongoDatabase      string
	StorageBackend     string
	MoviesFolder       string
	SeriesFolder       string
	JWTSecret          string
	CORSAllowedOrigins []string
	RedisURL           string // empty = per-process debounce only
	PlaybackDebounce   time.Duration
	CatalogCacheSize   int
	CatalogCacheTTL    time.Duration
	CatalogWatch       bool
	RateLimitRPS       float64
	RateLimitBurst     int
	LogLevel           string
	LogFormat          string
	OTelEndpoint       string // empty = tracing disabled
	OTelSampleRate     float64
	ShutdownTimeout    time.Duration
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:      getEnv("MONGO_DB", "mediavault"),
		StorageBackend:     strings.ToLower(getEnv("STORAGE_BACKEND", StorageMongo)),
		MoviesFolder:       getEnv("MOVIES_FOLDER", ""),
		SeriesFolder:       getEnv("SERIES_FOLDER", ""),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		CORSAllowedOrigins: parseCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RedisURL:           getEnv("REDIS_URL", ""),
		PlaybackDebounce:   time.Duration(getEnvInt64("PLAYBACK_DEBOUNCE_SECONDS", 60)) * time.Second,
		CatalogCacheSize:   int(getEnvInt64("CATALOG_CACHE_SIZE", 256)),
		CatalogCacheTTL:    time.Duration(getEnvInt64("CATALOG_CACHE_TTL_SECONDS", 300)) * time.Second,
		CatalogWatch:       getEnvBool("CATALOG_WATCH", true),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 100),
		RateLimitBurst:     int(getEnvInt64("RATE_LIMIT_BURST", 200)),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		OTelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelSampleRate:     getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		ShutdownTimeout:    time.Duration(getEnvInt64("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

// Validate reports every setting the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if strings.TrimSpace(c.MoviesFolder) == "" {
		errs = append(errs, errors.New("MOVIES_FOLDER is required"))
	}
	if strings.TrimSpace(c.SeriesFolder) == "" {
		errs = append(errs, errors.New("SERIES_FOLDER is required"))
	}
	switch c.StorageBackend {
	case StorageMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo backend"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND %q is not one of mongo, memory", c.StorageBackend))
	}
	if c.PlaybackDebounce <= 0 {
		errs = append(errs, errors.New("PLAYBACK_DEBOUNCE_SECONDS must be positive"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
