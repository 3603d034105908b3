package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"mediavault/internal/domain"
	"mediavault/internal/services/stream"
)

type fakeRecorder struct {
	mu      sync.Mutex
	entries []domain.StreamLogEntry
	ctxErrs []error
	err     error
}

func (f *fakeRecorder) LogPlaybackStart(ctx context.Context, e domain.StreamLogEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.err != nil {
		return false, f.err
	}
	f.entries = append(f.entries, e)
	return true, nil
}

func newMediaTree(t *testing.T) (movies, series string) {
	t.Helper()
	base := t.TempDir()
	movies = filepath.Join(base, "movies")
	series = filepath.Join(base, "series")
	files := map[string]int64{
		filepath.Join(movies, "Heat", "heat.mp4"):              10000,
		filepath.Join(series, "Show", "Season 1", "E01.mkv"):   524288000,
		filepath.Join(series, "Show", "Season 1", "empty.mkv"): 0,
	}
	for p, size := range files {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		f, err := os.Create(p)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := f.Truncate(size); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		f.Close()
	}
	return movies, series
}

var viewer = domain.Principal{ID: "u1", Email: "a@x.com", Name: "Ann", Role: "user"}

func TestStreamMediaDefaultChunkLogsEpisodeStart(t *testing.T) {
	movies, series := newMediaTree(t)
	rec := &fakeRecorder{}
	uc := StreamMedia{Resolver: stream.NewResolver(movies, series), Activity: rec}

	res, err := uc.Execute(context.Background(), viewer, StreamTarget{Type: domain.ContentSeries, Path: "Show/Season 1/E01.mkv"}, "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Synthesized || res.Range != (domain.ByteRange{Start: 0, End: 1048575, Size: 524288000}) {
		t.Fatalf("unexpected negotiation %+v synthesized=%v", res.Range, res.Synthesized)
	}
	if !res.Logged || len(rec.entries) != 1 {
		t.Fatalf("expected one logged start, got %+v", rec.entries)
	}
	e := rec.entries[0]
	if e.FileName != "E01.mkv" || e.SeriesName != "Show" || e.Type != domain.ContentSeries || e.UserName != "Ann" {
		t.Fatalf("unexpected log entry %+v", e)
	}
}

func TestStreamMediaMovieLogsFolder(t *testing.T) {
	movies, series := newMediaTree(t)
	rec := &fakeRecorder{}
	uc := StreamMedia{Resolver: stream.NewResolver(movies, series), Activity: rec}

	res, err := uc.Execute(context.Background(), viewer, StreamTarget{Type: domain.ContentMovie, Folder: "Heat", Filename: "heat.mp4"}, "bytes=0-499")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Synthesized || res.Range.End != 499 {
		t.Fatalf("unexpected range %+v", res.Range)
	}
	if len(rec.entries) != 1 || rec.entries[0].FileName != "Heat" || rec.entries[0].SeriesName != "" {
		t.Fatalf("unexpected log entries %+v", rec.entries)
	}
}

func TestStreamMediaSkipsLogging(t *testing.T) {
	movies, series := newMediaTree(t)
	tests := []struct {
		name   string
		target StreamTarget
		header string
	}{
		{"non-zero start", StreamTarget{Type: domain.ContentMovie, Folder: "Heat", Filename: "heat.mp4"}, "bytes=500-"},
		{"head probe", StreamTarget{Type: domain.ContentMovie, Folder: "Heat", Filename: "heat.mp4", Probe: true}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			uc := StreamMedia{Resolver: stream.NewResolver(movies, series), Activity: rec}
			res, err := uc.Execute(context.Background(), viewer, tt.target, tt.header)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if res.Logged || len(rec.entries) != 0 {
				t.Fatalf("expected no log, got %+v", rec.entries)
			}
		})
	}
}

func TestStreamMediaLoggingFailureDoesNotFailStream(t *testing.T) {
	movies, series := newMediaTree(t)
	rec := &fakeRecorder{err: errors.New("db down")}
	uc := StreamMedia{Resolver: stream.NewResolver(movies, series), Activity: rec}

	res, err := uc.Execute(context.Background(), viewer, StreamTarget{Type: domain.ContentMovie, Folder: "Heat", Filename: "heat.mp4"}, "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Logged {
		t.Fatal("failed log must not be reported as logged")
	}
}

func TestStreamMediaLogsAfterClientCancel(t *testing.T) {
	movies, series := newMediaTree(t)
	rec := &fakeRecorder{}
	uc := StreamMedia{Resolver: stream.NewResolver(movies, series), Activity: rec}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := uc.Execute(ctx, viewer, StreamTarget{Type: domain.ContentMovie, Folder: "Heat", Filename: "heat.mp4"}, ""); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rec.ctxErrs) != 1 || rec.ctxErrs[0] != nil {
		t.Fatalf("activity context must not inherit cancellation, got %v", rec.ctxErrs)
	}
}

func TestStreamMediaErrors(t *testing.T) {
	movies, series := newMediaTree(t)
	uc := StreamMedia{Resolver: stream.NewResolver(movies, series)}

	tests := []struct {
		name   string
		target StreamTarget
		header string
		want   error
	}{
		{"traversal", StreamTarget{Type: domain.ContentSeries, Path: "../../etc/passwd"}, "", domain.ErrNotFound},
		{"missing episode", StreamTarget{Type: domain.ContentSeries, Path: "Show/Season 1/E99.mkv"}, "", domain.ErrNotFound},
		{"movie dot folder", StreamTarget{Type: domain.ContentMovie, Folder: "..", Filename: "passwd"}, "", domain.ErrNotFound},
		{"unknown type", StreamTarget{Type: "music", Path: "a/b/c"}, "", domain.ErrNotFound},
		{"start past end", StreamTarget{Type: domain.ContentMovie, Folder: "Heat", Filename: "heat.mp4"}, "bytes=20000-", stream.ErrRangeNotSatisfiable},
		{"empty file", StreamTarget{Type: domain.ContentSeries, Path: "Show/Season 1/empty.mkv"}, "", stream.ErrRangeNotSatisfiable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := uc.Execute(context.Background(), viewer, tt.target, tt.header)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if errors.Is(err, stream.ErrRangeNotSatisfiable) && res.File.Path == "" {
				t.Fatal("unsatisfiable result should carry the resolved file")
			}
		})
	}
}
