package archive

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Defaults for the MongoDB backend.
const (
	DefaultDatabase   = "ancsummary"
	DefaultCollection = "runs"
)

// MongoArchive stores runs as documents in a MongoDB collection, keyed by
// run ID, with a descending index on created_at for List.
type MongoArchive struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoArchive connects to uri and verifies the connection before
// returning. Empty database or collection names fall back to the defaults.
func NewMongoArchive(ctx context.Context, uri, database, collection string) (*MongoArchive, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	a := NewMongoArchiveFromClient(client, database, collection)
	if err := a.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return a, nil
}

// NewMongoArchiveFromClient wraps an existing client. The caller keeps
// ownership of the connection unless it calls Close.
func NewMongoArchiveFromClient(client *mongo.Client, database, collection string) *MongoArchive {
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoArchive{client: client, coll: client.Database(database).Collection(collection)}
}

func (a *MongoArchive) ensureIndexes(ctx context.Context) error {
	_, err := a.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo index: %w", err)
	}
	return nil
}

// Save upserts run by ID.
func (a *MongoArchive) Save(ctx context.Context, run Run) error {
	_, err := a.coll.ReplaceOne(ctx, idFilter(run.ID), run, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (a *MongoArchive) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := a.coll.FindOne(ctx, idFilter(id)).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}

func (a *MongoArchive) List(ctx context.Context, limit int) ([]Run, error) {
	cur, err := a.coll.Find(ctx, bson.D{}, listOptions(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var runs []Run
	if err := cur.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Close disconnects the underlying client.
func (a *MongoArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

func idFilter(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func listOptions(limit int) *options.FindOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
}
