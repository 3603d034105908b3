package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediavault/internal/domain"
)

// StreamLogRepository keeps playback starts in process memory. It backs
// single-instance deployments without MongoDB and the tests.
type StreamLogRepository struct {
	mu      sync.RWMutex
	entries []domain.StreamLogEntry
	now     func() time.Time
}

func NewStreamLogRepository() *StreamLogRepository {
	return &StreamLogRepository{now: time.Now}
}

func (r *StreamLogRepository) Insert(_ context.Context, entry domain.StreamLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return nil
}

func (r *StreamLogRepository) HasRecent(_ context.Context, userEmail, fileName string, since time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.UserEmail == userEmail && e.FileName == fileName && e.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *StreamLogRepository) List(_ context.Context, filter domain.StreamLogFilter) ([]domain.StreamLogEntry, error) {
	r.mu.RLock()
	out := make([]domain.StreamLogEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if matchesLogFilter(e, filter) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *StreamLogRepository) TopWatched(_ context.Context, filter domain.StreamLogFilter) ([]domain.WatchCount, error) {
	counts := make(map[string]int64)
	r.mu.RLock()
	for _, e := range r.entries {
		if !matchesLogFilter(e, filter) {
			continue
		}
		key := e.FileName
		if filter.Type == domain.ContentSeries {
			key = e.SeriesName
		}
		if key == "" {
			continue
		}
		counts[key]++
	}
	r.mu.RUnlock()

	out := make([]domain.WatchCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, domain.WatchCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

const defaultTopLimit = 6

func matchesLogFilter(e domain.StreamLogEntry, filter domain.StreamLogFilter) bool {
	if filter.Type != "" && e.Type != filter.Type {
		return false
	}
	if !filter.Since.IsZero() && e.CreatedAt.Before(filter.Since) {
		return false
	}
	return true
}
