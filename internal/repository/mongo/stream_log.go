package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediavault/internal/domain"
)

const (
	defaultDedupeBucket = 60 * time.Second
	defaultTopLimit     = 6
)

// StreamLogRepository persists playback starts. Each entry carries a
// dedupeBucket derived from its creation time so that a unique index rejects
// a second start of the same file by the same user inside one bucket, even
// when two instances race past the HasRecent check.
type StreamLogRepository struct {
	collection *mongo.Collection
	bucket     time.Duration
}

type StreamLogOption func(*StreamLogRepository)

func WithDedupeBucket(d time.Duration) StreamLogOption {
	return func(r *StreamLogRepository) {
		if d > 0 {
			r.bucket = d
		}
	}
}

type streamLogDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UserEmail    string             `bson:"userEmail"`
	UserName     string             `bson:"userName,omitempty"`
	FileName     string             `bson:"fileName"`
	SeriesName   string             `bson:"seriesName,omitempty"`
	Type         string             `bson:"type"`
	DedupeBucket int64              `bson:"dedupeBucket,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

type watchCountDoc struct {
	Name  string `bson:"_id"`
	Count int64  `bson:"count"`
}

func NewStreamLogRepository(client *mongo.Client, dbName string, opts ...StreamLogOption) *StreamLogRepository {
	r := &StreamLogRepository{
		collection: client.Database(dbName).Collection(StreamLogCollection),
		bucket:     defaultDedupeBucket,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *StreamLogRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "userEmail", Value: 1}, {Key: "fileName", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "createdAt", Value: -1}}},
		{
			// Older records have no bucket and stay outside the constraint.
			Keys: bson.D{{Key: "userEmail", Value: 1}, {Key: "fileName", Value: 1}, {Key: "dedupeBucket", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"dedupeBucket": bson.M{"$exists": true}}),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Insert returns domain.ErrAlreadyExists when the same user already started
// the same file within the current bucket.
func (r *StreamLogRepository) Insert(ctx context.Context, entry domain.StreamLogEntry) error {
	doc := r.toStreamLogDoc(entry)
	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *StreamLogRepository) HasRecent(ctx context.Context, userEmail, fileName string, since time.Time) (bool, error) {
	filter := bson.M{
		"userEmail": userEmail,
		"fileName":  fileName,
		"createdAt": bson.M{"$gt": toMongoTime(since)},
	}
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *StreamLogRepository) List(ctx context.Context, filter domain.StreamLogFilter) ([]domain.StreamLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.collection.Find(ctx, streamLogQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []streamLogDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	entries := make([]domain.StreamLogEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, fromStreamLogDoc(doc))
	}
	return entries, nil
}

// TopWatched counts starts per series name for series entries and per file
// name otherwise.
func (r *StreamLogRepository) TopWatched(ctx context.Context, filter domain.StreamLogFilter) ([]domain.WatchCount, error) {
	cursor, err := r.collection.Aggregate(ctx, topWatchedPipeline(filter))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []watchCountDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	counts := make([]domain.WatchCount, 0, len(docs))
	for _, doc := range docs {
		if doc.Name == "" {
			continue
		}
		counts = append(counts, domain.WatchCount{Name: doc.Name, Count: doc.Count})
	}
	return counts, nil
}

func streamLogQuery(filter domain.StreamLogFilter) bson.M {
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = string(filter.Type)
	}
	if !filter.Since.IsZero() {
		query["createdAt"] = bson.M{"$gte": toMongoTime(filter.Since)}
	}
	return query
}

func topWatchedPipeline(filter domain.StreamLogFilter) mongo.Pipeline {
	groupKey := "$fileName"
	if filter.Type == domain.ContentSeries {
		groupKey = "$seriesName"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTopLimit
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: streamLogQuery(filter)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: groupKey},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: int64(limit)}},
	}
}

func (r *StreamLogRepository) toStreamLogDoc(entry domain.StreamLogEntry) streamLogDoc {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	created = toMongoTime(created)
	doc := streamLogDoc{
		UserEmail:    entry.UserEmail,
		UserName:     entry.UserName,
		FileName:     entry.FileName,
		SeriesName:   entry.SeriesName,
		Type:         string(entry.Type),
		DedupeBucket: dedupeBucket(created, r.bucket),
		CreatedAt:    created,
	}
	if id, err := primitive.ObjectIDFromHex(entry.ID); err == nil {
		doc.ID = id
	}
	return doc
}

func dedupeBucket(t time.Time, bucket time.Duration) int64 {
	if bucket <= 0 {
		bucket = defaultDedupeBucket
	}
	return t.UnixMilli() / bucket.Milliseconds()
}

func fromStreamLogDoc(doc streamLogDoc) domain.StreamLogEntry {
	entry := domain.StreamLogEntry{
		UserEmail:  doc.UserEmail,
		UserName:   doc.UserName,
		FileName:   doc.FileName,
		SeriesName: doc.SeriesName,
		Type:       domain.ContentType(doc.Type),
		CreatedAt:  doc.CreatedAt.UTC(),
	}
	if !doc.ID.IsZero() {
		entry.ID = doc.ID.Hex()
	}
	return entry
}
