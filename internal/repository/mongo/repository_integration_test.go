package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediavault/internal/domain"
)

// testMongoURI returns the MongoDB connection URI for integration tests.
// Defaults to localhost:27017. Set MONGO_TEST_URI to override.
func testMongoURI() string {
	if uri := os.Getenv("MONGO_TEST_URI"); uri != "" {
		return uri
	}
	return "mongodb://localhost:27017"
}

// setupTestDB connects to MongoDB and returns a client plus a unique test
// database name. Calls t.Skip if MongoDB is unreachable.
func setupTestDB(t *testing.T) (*mongo.Client, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	uri := testMongoURI()
	client, err := Connect(ctx, uri, options.Client().SetConnectTimeout(3*time.Second))
	if err != nil {
		t.Skipf("MongoDB not available at %s: %v", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		t.Skipf("MongoDB ping failed at %s: %v", uri, err)
	}

	dbName := fmt.Sprintf("mediavault_test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = client.Database(dbName).Drop(ctx2)
		_ = client.Disconnect(ctx2)
	})
	return client, dbName
}

func setupStreamLogRepo(t *testing.T) *StreamLogRepository {
	t.Helper()
	client, db := setupTestDB(t)
	repo := NewStreamLogRepository(client, db)
	if err := repo.EnsureIndexes(context.Background()); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return repo
}

func setupProgressRepo(t *testing.T) *WatchProgressRepository {
	t.Helper()
	client, db := setupTestDB(t)
	repo := NewWatchProgressRepository(client, db)
	if err := repo.EnsureIndexes(context.Background()); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return repo
}

// ---------------------------------------------------------------------------
// StreamLogRepository
// ---------------------------------------------------------------------------

func TestIntegrationStreamLogInsertAndHasRecent(t *testing.T) {
	repo := setupStreamLogRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := domain.StreamLogEntry{UserEmail: "a@x.com", FileName: "Heat", Type: domain.ContentMovie, CreatedAt: now}
	if err := repo.Insert(ctx, entry); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	recent, err := repo.HasRecent(ctx, "a@x.com", "Heat", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("HasRecent: %v", err)
	}
	if !recent {
		t.Fatal("expected a recent entry")
	}

	recent, err = repo.HasRecent(ctx, "b@x.com", "Heat", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("HasRecent: %v", err)
	}
	if recent {
		t.Fatal("other users must not match")
	}
}

func TestIntegrationStreamLogDuplicateBucket(t *testing.T) {
	repo := setupStreamLogRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := domain.StreamLogEntry{UserEmail: "a@x.com", FileName: "E01.mkv", SeriesName: "Show", Type: domain.ContentSeries, CreatedAt: now}
	if err := repo.Insert(ctx, entry); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	entry.CreatedAt = now.Add(time.Millisecond)
	if dedupeBucket(entry.CreatedAt, repo.bucket) != dedupeBucket(now, repo.bucket) {
		t.Skip("crossed a bucket boundary")
	}
	if err := repo.Insert(ctx, entry); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestIntegrationStreamLogLegacyDocsIgnoreUniqueIndex(t *testing.T) {
	repo := setupStreamLogRepo(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		legacy := bson.M{"userEmail": "a@x.com", "fileName": "Heat", "type": "movie", "createdAt": time.Now()}
		if _, err := repo.collection.InsertOne(ctx, legacy); err != nil {
			t.Fatalf("documents without dedupeBucket must not collide: %v", err)
		}
	}
}

func TestIntegrationStreamLogListAndTop(t *testing.T) {
	repo := setupStreamLogRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inserts := []domain.StreamLogEntry{
		{UserEmail: "a@x.com", FileName: "E01.mkv", SeriesName: "Show", Type: domain.ContentSeries, CreatedAt: now.Add(-3 * time.Hour)},
		{UserEmail: "b@x.com", FileName: "E01.mkv", SeriesName: "Show", Type: domain.ContentSeries, CreatedAt: now.Add(-2 * time.Hour)},
		{UserEmail: "a@x.com", FileName: "P01.mkv", SeriesName: "Other", Type: domain.ContentSeries, CreatedAt: now.Add(-time.Hour)},
		{UserEmail: "a@x.com", FileName: "Heat", Type: domain.ContentMovie, CreatedAt: now},
		{UserEmail: "a@x.com", FileName: "Old", Type: domain.ContentMovie, CreatedAt: now.Add(-40 * 24 * time.Hour)},
	}
	for _, e := range inserts {
		if err := repo.Insert(ctx, e); err != nil {
			t.Fatalf("Insert %s: %v", e.FileName, err)
		}
	}

	all, err := repo.List(ctx, domain.StreamLogFilter{Limit: 3})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].FileName != "Heat" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	since := now.Add(-30 * 24 * time.Hour)
	top, err := repo.TopWatched(ctx, domain.StreamLogFilter{Type: domain.ContentSeries, Since: since})
	if err != nil {
		t.Fatalf("TopWatched: %v", err)
	}
	if len(top) != 2 || top[0] != (domain.WatchCount{Name: "Show", Count: 2}) {
		t.Fatalf("unexpected series ranking %+v", top)
	}

	movies, err := repo.TopWatched(ctx, domain.StreamLogFilter{Type: domain.ContentMovie, Since: since})
	if err != nil {
		t.Fatalf("TopWatched: %v", err)
	}
	if len(movies) != 1 || movies[0].Name != "Heat" {
		t.Fatalf("entries older than the window must be excluded, got %+v", movies)
	}
}

// ---------------------------------------------------------------------------
// WatchProgressRepository
// ---------------------------------------------------------------------------

func TestIntegrationProgressUpsertIsIdempotent(t *testing.T) {
	repo := setupProgressRepo(t)
	ctx := context.Background()

	u := domain.ProgressUpdate{UserEmail: "a@x.com", FileName: "Heat", Time: 10, Duration: 100, Type: domain.ContentMovie}
	if err := repo.Upsert(ctx, u); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	u.Time = 20
	if err := repo.Upsert(ctx, u); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	n, err := repo.collection.CountDocuments(ctx, bson.M{"userEmail": "a@x.com", "fileName": "Heat"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
	got, err := repo.Get(ctx, "a@x.com", "Heat")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Time != 20 {
		t.Fatalf("expected time 20, got %v", got.Time)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.Before(got.CreatedAt) {
		t.Fatalf("unexpected timestamps %v / %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestIntegrationProgressPreservesFullPath(t *testing.T) {
	repo := setupProgressRepo(t)
	ctx := context.Background()

	first := domain.ProgressUpdate{UserEmail: "a@x.com", FileName: "E01.mkv", FullPath: "Show/Season 1/E01.mkv", Time: 5, Duration: 100, Type: domain.ContentSeries}
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second := first
	second.FullPath = ""
	second.Time = 50
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.Get(ctx, "a@x.com", "E01.mkv")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FullPath != "Show/Season 1/E01.mkv" || got.Time != 50 {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestIntegrationProgressGetNotFound(t *testing.T) {
	repo := setupProgressRepo(t)
	if _, err := repo.Get(context.Background(), "a@x.com", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIntegrationProgressSeriesLookups(t *testing.T) {
	repo := setupProgressRepo(t)
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	saves := []domain.ProgressUpdate{
		{UserEmail: "a@x.com", FileName: "E01.mkv", FullPath: "Show/Season 1/E01.mkv", Time: 1800, Duration: 2000, Type: domain.ContentSeries},
		{UserEmail: "a@x.com", FileName: "E02.mkv", FullPath: "Show/Season 1/E02.mkv", Time: 60, Duration: 2000, Type: domain.ContentSeries},
		{UserEmail: "a@x.com", FileName: "X01.mkv", FullPath: "Show Extra/Season 1/X01.mkv", Time: 60, Duration: 2000, Type: domain.ContentSeries},
		{UserEmail: "b@x.com", FileName: "E03.mkv", FullPath: "Show/Season 1/E03.mkv", Time: 60, Duration: 2000, Type: domain.ContentSeries},
	}
	for _, s := range saves {
		if err := repo.Upsert(ctx, s); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	last, err := repo.LastSeriesEpisode(ctx, "a@x.com", "show")
	if err != nil {
		t.Fatalf("LastSeriesEpisode: %v", err)
	}
	if last.FileName != "E02.mkv" {
		t.Fatalf("expected most recent E02.mkv, got %s", last.FileName)
	}

	all, err := repo.ListForSeries(ctx, "a@x.com", "Show")
	if err != nil {
		t.Fatalf("ListForSeries: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}

	if _, err := repo.LastSeriesEpisode(ctx, "a@x.com", "Sh.w"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("regex metacharacters must match literally, got %v", err)
	}
}

func TestIntegrationProgressConcurrentFirstSave(t *testing.T) {
	repo := setupProgressRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- repo.Upsert(ctx, domain.ProgressUpdate{
				UserEmail: "a@x.com", FileName: "Heat", Time: float64(i), Duration: 100, Type: domain.ContentMovie,
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	n, err := repo.collection.CountDocuments(ctx, bson.M{"fileName": "Heat"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
}
