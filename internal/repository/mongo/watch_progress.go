package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediavault/internal/domain"
)

type WatchProgressRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

type watchProgressDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserEmail string             `bson:"userEmail"`
	FileName  string             `bson:"fileName"`
	FullPath  string             `bson:"fullPath,omitempty"`
	Time      float64            `bson:"time"`
	Duration  float64            `bson:"duration"`
	Type      string             `bson:"type"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func NewWatchProgressRepository(client *mongo.Client, dbName string) *WatchProgressRepository {
	return &WatchProgressRepository{
		collection: client.Database(dbName).Collection(WatchProgressCollection),
		now:        time.Now,
	}
}

func (r *WatchProgressRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userEmail", Value: 1}, {Key: "fileName", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "userEmail", Value: 1}, {Key: "type", Value: 1}, {Key: "updatedAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Upsert writes time, duration and type on every call. fullPath is only
// written when the update carries one.
func (r *WatchProgressRepository) Upsert(ctx context.Context, update domain.ProgressUpdate) error {
	filter := bson.M{"userEmail": update.UserEmail, "fileName": update.FileName}
	doc := upsertDocument(update, toMongoTime(r.now()))
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, filter, doc, opts)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// Two first saves raced on insert; the loser now finds the document.
		_, err = r.collection.UpdateOne(ctx, filter, doc, opts)
	}
	return err
}

func upsertDocument(update domain.ProgressUpdate, now time.Time) bson.M {
	set := bson.M{
		"time":      update.Time,
		"duration":  update.Duration,
		"type":      string(update.Type),
		"updatedAt": now,
	}
	if update.FullPath != "" {
		set["fullPath"] = update.FullPath
	}
	return bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"createdAt": now},
	}
}

func (r *WatchProgressRepository) Get(ctx context.Context, userEmail, fileName string) (domain.WatchProgress, error) {
	var doc watchProgressDoc
	err := r.collection.FindOne(ctx, bson.M{"userEmail": userEmail, "fileName": fileName}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.WatchProgress{}, domain.ErrNotFound
		}
		return domain.WatchProgress{}, err
	}
	return fromWatchProgressDoc(doc), nil
}

func (r *WatchProgressRepository) LastSeriesEpisode(ctx context.Context, userEmail, seriesName string) (domain.WatchProgress, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	var doc watchProgressDoc
	err := r.collection.FindOne(ctx, seriesQuery(userEmail, seriesName), opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.WatchProgress{}, domain.ErrNotFound
		}
		return domain.WatchProgress{}, err
	}
	return fromWatchProgressDoc(doc), nil
}

func (r *WatchProgressRepository) ListForSeries(ctx context.Context, userEmail, seriesName string) ([]domain.WatchProgress, error) {
	cursor, err := r.collection.Find(ctx, seriesQuery(userEmail, seriesName))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []watchProgressDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	records := make([]domain.WatchProgress, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromWatchProgressDoc(doc))
	}
	return records, nil
}

// seriesQuery matches series records whose fullPath starts with
// "<seriesName>/", ignoring case. The name is matched literally.
func seriesQuery(userEmail, seriesName string) bson.M {
	return bson.M{
		"userEmail": userEmail,
		"type":      string(domain.ContentSeries),
		"fullPath": bson.M{
			"$regex":   "^" + regexp.QuoteMeta(seriesName) + "/",
			"$options": "i",
		},
	}
}

func fromWatchProgressDoc(doc watchProgressDoc) domain.WatchProgress {
	p := domain.WatchProgress{
		UserEmail: doc.UserEmail,
		FileName:  doc.FileName,
		FullPath:  doc.FullPath,
		Time:      doc.Time,
		Duration:  doc.Duration,
		Type:      domain.ContentType(doc.Type),
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
	if !doc.ID.IsZero() {
		p.ID = doc.ID.Hex()
	}
	return p
}
