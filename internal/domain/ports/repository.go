package ports

import (
	"context"
	"time"

	"mediavault/internal/domain"
)

// StreamLogRepository is the append-only playback log.
type StreamLogRepository interface {
	Insert(ctx context.Context, entry domain.StreamLogEntry) error
	HasRecent(ctx context.Context, userEmail, fileName string, since time.Time) (bool, error)
	List(ctx context.Context, filter domain.StreamLogFilter) ([]domain.StreamLogEntry, error)
	TopWatched(ctx context.Context, filter domain.StreamLogFilter) ([]domain.WatchCount, error)
}

// WatchProgressRepository stores resume points keyed by (userEmail, fileName).
type WatchProgressRepository interface {
	Upsert(ctx context.Context, update domain.ProgressUpdate) error
	Get(ctx context.Context, userEmail, fileName string) (domain.WatchProgress, error)
	LastSeriesEpisode(ctx context.Context, userEmail, seriesName string) (domain.WatchProgress, error)
	ListForSeries(ctx context.Context, userEmail, seriesName string) ([]domain.WatchProgress, error)
}
