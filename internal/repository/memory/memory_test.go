package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mediavault/internal/domain"
)

func steppingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(step)
		return t
	}
}

func TestStreamLogInsertAssignsIDAndTime(t *testing.T) {
	repo := NewStreamLogRepository()
	ctx := context.Background()
	if err := repo.Insert(ctx, domain.StreamLogEntry{UserEmail: "a@x.com", FileName: "Heat", Type: domain.ContentMovie}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	list, _ := repo.List(ctx, domain.StreamLogFilter{})
	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list))
	}
	if list[0].ID == "" || list[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and createdAt, got %+v", list[0])
	}
}

func TestStreamLogHasRecent(t *testing.T) {
	repo := NewStreamLogRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_ = repo.Insert(ctx, domain.StreamLogEntry{UserEmail: "a@x.com", FileName: "Heat", CreatedAt: base})

	tests := []struct {
		name  string
		email string
		file  string
		since time.Time
		want  bool
	}{
		{"inside window", "a@x.com", "Heat", base.Add(-time.Minute), true},
		{"boundary is exclusive", "a@x.com", "Heat", base, false},
		{"other file", "a@x.com", "Alien", base.Add(-time.Minute), false},
		{"other user", "b@x.com", "Heat", base.Add(-time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.HasRecent(ctx, tt.email, tt.file, tt.since)
			if err != nil {
				t.Fatalf("HasRecent: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStreamLogListNewestFirstWithLimit(t *testing.T) {
	repo := NewStreamLogRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"a", "b", "c"} {
		_ = repo.Insert(ctx, domain.StreamLogEntry{FileName: name, Type: domain.ContentMovie, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	got, _ := repo.List(ctx, domain.StreamLogFilter{Limit: 2})
	if len(got) != 2 || got[0].FileName != "c" || got[1].FileName != "b" {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestStreamLogTopWatched(t *testing.T) {
	repo := NewStreamLogRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	add := func(file, series string, typ domain.ContentType, age time.Duration) {
		_ = repo.Insert(ctx, domain.StreamLogEntry{FileName: file, SeriesName: series, Type: typ, CreatedAt: now.Add(-age)})
	}
	add("E01.mkv", "Show", domain.ContentSeries, time.Hour)
	add("E02.mkv", "Show", domain.ContentSeries, 2*time.Hour)
	add("P01.mkv", "Other", domain.ContentSeries, time.Hour)
	add("Q01.mkv", "Stale", domain.ContentSeries, 45*24*time.Hour)
	add("Heat", "", domain.ContentMovie, time.Hour)

	since := now.Add(-30 * 24 * time.Hour)
	got, err := repo.TopWatched(ctx, domain.StreamLogFilter{Type: domain.ContentSeries, Since: since})
	if err != nil {
		t.Fatalf("TopWatched: %v", err)
	}
	want := []domain.WatchCount{{Name: "Show", Count: 2}, {Name: "Other", Count: 1}}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	movies, _ := repo.TopWatched(ctx, domain.StreamLogFilter{Type: domain.ContentMovie, Since: since})
	if len(movies) != 1 || movies[0].Name != "Heat" {
		t.Fatalf("unexpected movie ranking %+v", movies)
	}
}

func TestProgressUpsertIsIdempotent(t *testing.T) {
	repo := NewWatchProgressRepository()
	ctx := context.Background()
	u := domain.ProgressUpdate{UserEmail: "a@x.com", FileName: "Heat", Time: 10, Duration: 100, Type: domain.ContentMovie}
	_ = repo.Upsert(ctx, u)
	first, _ := repo.Get(ctx, "a@x.com", "Heat")

	u.Time = 20
	_ = repo.Upsert(ctx, u)
	got, err := repo.Get(ctx, "a@x.com", "Heat")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Time != 20 {
		t.Fatalf("expected time 20, got %v", got.Time)
	}
	if got.ID != first.ID || !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("upsert must update the existing record in place")
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(repo.records))
	}
}

func TestProgressUpsertPreservesFullPath(t *testing.T) {
	repo := NewWatchProgressRepository()
	ctx := context.Background()
	_ = repo.Upsert(ctx, domain.ProgressUpdate{UserEmail: "a@x.com", FileName: "E01.mkv", FullPath: "Show/Season 1/E01.mkv", Time: 1, Type: domain.ContentSeries})
	_ = repo.Upsert(ctx, domain.ProgressUpdate{UserEmail: "a@x.com", FileName: "E01.mkv", Time: 2, Type: domain.ContentSeries})

	got, _ := repo.Get(ctx, "a@x.com", "E01.mkv")
	if got.FullPath != "Show/Season 1/E01.mkv" {
		t.Fatalf("fullPath lost: %q", got.FullPath)
	}
}

func TestProgressGetNotFound(t *testing.T) {
	repo := NewWatchProgressRepository()
	if _, err := repo.Get(context.Background(), "a@x.com", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProgressSeriesPrefixMatch(t *testing.T) {
	repo := NewWatchProgressRepository()
	repo.now = steppingClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Second)
	ctx := context.Background()

	saves := []domain.ProgressUpdate{
		{UserEmail: "a@x.com", FileName: "E01.mkv", FullPath: "Show/Season 1/E01.mkv", Time: 1800, Duration: 2000, Type: domain.ContentSeries},
		{UserEmail: "a@x.com", FileName: "E02.mkv", FullPath: "SHOW/Season 1/E02.mkv", Time: 30, Duration: 2000, Type: domain.ContentSeries},
		{UserEmail: "a@x.com", FileName: "X01.mkv", FullPath: "Showcase/Season 1/X01.mkv", Time: 30, Duration: 2000, Type: domain.ContentSeries},
		{UserEmail: "a@x.com", FileName: "Show", Time: 30, Duration: 2000, Type: domain.ContentMovie},
		{UserEmail: "b@x.com", FileName: "E03.mkv", FullPath: "Show/Season 1/E03.mkv", Time: 30, Duration: 2000, Type: domain.ContentSeries},
	}
	for _, s := range saves {
		_ = repo.Upsert(ctx, s)
	}

	all, _ := repo.ListForSeries(ctx, "a@x.com", "show")
	if len(all) != 2 {
		t.Fatalf("expected 2 matches, got %+v", all)
	}

	last, err := repo.LastSeriesEpisode(ctx, "a@x.com", "Show")
	if err != nil {
		t.Fatalf("LastSeriesEpisode: %v", err)
	}
	if last.FileName != "E02.mkv" {
		t.Fatalf("expected E02.mkv, got %s", last.FileName)
	}

	if _, err := repo.LastSeriesEpisode(ctx, "a@x.com", "Missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProgressConcurrentUpserts(t *testing.T) {
	repo := NewWatchProgressRepository()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.Upsert(ctx, domain.ProgressUpdate{UserEmail: "a@x.com", FileName: "Heat", Time: float64(i), Type: domain.ContentMovie})
			_, _ = repo.ListForSeries(ctx, "a@x.com", "Show")
		}(i)
	}
	wg.Wait()
	if len(repo.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(repo.records))
	}
}
