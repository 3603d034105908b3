package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"mediavault/internal/domain"
)

type progressKey struct {
	email    string
	fileName string
}

type WatchProgressRepository struct {
	mu      sync.RWMutex
	records map[progressKey]domain.WatchProgress
	fold    cases.Caser
	now     func() time.Time
}

func NewWatchProgressRepository() *WatchProgressRepository {
	return &WatchProgressRepository{
		records: make(map[progressKey]domain.WatchProgress),
		fold:    cases.Fold(),
		now:     time.Now,
	}
}

func (r *WatchProgressRepository) Upsert(_ context.Context, update domain.ProgressUpdate) error {
	key := progressKey{email: update.UserEmail, fileName: update.FileName}
	now := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok {
		rec = domain.WatchProgress{
			ID:        uuid.NewString(),
			UserEmail: update.UserEmail,
			FileName:  update.FileName,
			CreatedAt: now,
		}
	}
	rec.Time = update.Time
	rec.Duration = update.Duration
	rec.Type = update.Type
	if update.FullPath != "" {
		rec.FullPath = update.FullPath
	}
	rec.UpdatedAt = now
	r.records[key] = rec
	return nil
}

func (r *WatchProgressRepository) Get(_ context.Context, userEmail, fileName string) (domain.WatchProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[progressKey{email: userEmail, fileName: fileName}]
	if !ok {
		return domain.WatchProgress{}, domain.ErrNotFound
	}
	return rec, nil
}

func (r *WatchProgressRepository) LastSeriesEpisode(ctx context.Context, userEmail, seriesName string) (domain.WatchProgress, error) {
	matches, _ := r.ListForSeries(ctx, userEmail, seriesName)
	if len(matches) == 0 {
		return domain.WatchProgress{}, domain.ErrNotFound
	}
	last := matches[0]
	for _, m := range matches[1:] {
		if m.UpdatedAt.After(last.UpdatedAt) {
			last = m
		}
	}
	return last, nil
}

func (r *WatchProgressRepository) ListForSeries(_ context.Context, userEmail, seriesName string) ([]domain.WatchProgress, error) {
	// cases.Caser is stateful and not safe for concurrent use.
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := r.fold.String(seriesName + "/")
	var out []domain.WatchProgress
	for key, rec := range r.records {
		if key.email != userEmail || rec.Type != domain.ContentSeries {
			continue
		}
		if strings.HasPrefix(r.fold.String(rec.FullPath), prefix) {
			out = append(out, rec)
		}
	}
	return out, nil
}
