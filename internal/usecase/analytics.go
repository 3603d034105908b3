package usecase

import (
	"context"
	"time"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
)

const (
	TopWindow       = 30 * 24 * time.Hour
	TopLimit        = 6
	DefaultLogLimit = 100
	MaxLogLimit     = 1000
)

// Analytics answers read-only questions over the playback log.
type Analytics struct {
	Logs ports.StreamLogRepository
	Now  func() time.Time
}

func (uc Analytics) TopSeries(ctx context.Context) ([]domain.WatchCount, error) {
	return uc.top(ctx, domain.ContentSeries)
}

func (uc Analytics) TopPicks(ctx context.Context) ([]domain.WatchCount, error) {
	return uc.top(ctx, domain.ContentMovie)
}

func (uc Analytics) top(ctx context.Context, typ domain.ContentType) ([]domain.WatchCount, error) {
	counts, err := uc.Logs.TopWatched(ctx, domain.StreamLogFilter{
		Type:  typ,
		Since: uc.now().Add(-TopWindow),
		Limit: TopLimit,
	})
	if err != nil {
		return nil, wrapRepo(err)
	}
	if counts == nil {
		counts = []domain.WatchCount{}
	}
	return counts, nil
}

// StreamLogs lists the newest playback starts. limit is clamped to
// [1, MaxLogLimit]; zero selects DefaultLogLimit.
func (uc Analytics) StreamLogs(ctx context.Context, limit int) ([]domain.StreamLogEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultLogLimit
	case limit > MaxLogLimit:
		limit = MaxLogLimit
	}
	entries, err := uc.Logs.List(ctx, domain.StreamLogFilter{Limit: limit})
	if err != nil {
		return nil, wrapRepo(err)
	}
	if entries == nil {
		entries = []domain.StreamLogEntry{}
	}
	return entries, nil
}

func (uc Analytics) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}
