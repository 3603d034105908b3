package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	StreamLogCollection     = "streamlogs"
	WatchProgressCollection = "watchprogresses"
)

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Mongo stores BSON dates with millisecond precision.
func toMongoTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
