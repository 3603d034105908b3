package catalog

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
	"mediavault/internal/metrics"
)

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 5 * time.Minute

	seriesListKey = "\x00series"
)

// Cache wraps a catalog source with an expiring LRU. Concurrent misses for the
// same key share one load. A load that overlaps an invalidation is returned to
// its callers but not stored.
type Cache struct {
	source  ports.Catalog
	seasons *expirable.LRU[string, []domain.Season]
	series  *expirable.LRU[string, []string]
	group   singleflight.Group
	gen     atomic.Uint64
	logger  *slog.Logger
}

func NewCache(source ports.Catalog, size int, ttl time.Duration, logger *slog.Logger) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		source:  source,
		seasons: expirable.NewLRU[string, []domain.Season](size, nil, ttl),
		series:  expirable.NewLRU[string, []string](1, nil, ttl),
		logger:  logger,
	}
}

func (c *Cache) ListSeries(ctx context.Context) ([]string, error) {
	if names, ok := c.series.Get(seriesListKey); ok {
		metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
		return names, nil
	}
	metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(seriesListKey, func() (any, error) {
		gen := c.gen.Load()
		names, err := c.source.ListSeries(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if c.gen.Load() == gen {
			c.series.Add(seriesListKey, names)
		}
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (c *Cache) Seasons(ctx context.Context, seriesName string) ([]domain.Season, error) {
	key := path.Clean(seriesName)
	if seasons, ok := c.seasons.Get(key); ok {
		metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
		return seasons, nil
	}
	metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()

	// Shared loads outlive the caller that started them.
	v, err, _ := c.group.Do("seasons:"+key, func() (any, error) {
		gen := c.gen.Load()
		seasons, err := c.source.Seasons(context.WithoutCancel(ctx), seriesName)
		if err != nil {
			return nil, err
		}
		if c.gen.Load() == gen {
			c.seasons.Add(key, seasons)
		}
		return seasons, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Season), nil
}

// Invalidate drops the series list and every cached series that contains
// rel or lies below it. rel is a slash path relative to the series root.
func (c *Cache) Invalidate(rel string) {
	rel = path.Clean(rel)
	c.gen.Add(1)
	c.series.Remove(seriesListKey)
	for _, key := range c.seasons.Keys() {
		if key == rel || strings.HasPrefix(rel, key+"/") || strings.HasPrefix(key, rel+"/") {
			c.seasons.Remove(key)
		}
	}
	c.logger.Debug("catalog invalidated", slog.String("path", rel))
}

func (c *Cache) InvalidateAll() {
	c.gen.Add(1)
	c.seasons.Purge()
	c.series.Purge()
	c.logger.Debug("catalog invalidated")
}

func (c *Cache) Len() int {
	return c.seasons.Len()
}
