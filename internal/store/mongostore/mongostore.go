// Package mongostore implements store.Database on the official MongoDB driver.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JustinTDCT/SerialDesk/internal/store"
)

type Database struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Database {
	return &Database{db: db}
}

func (d *Database) Name() string {
	return d.db.Name()
}

func (d *Database) Collection(name string) store.Collection {
	return &Collection{coll: d.db.Collection(name)}
}

func (d *Database) Ping(ctx context.Context) error {
	return d.db.Client().Ping(ctx, readpref.Primary())
}

type Collection struct {
	coll *mongo.Collection
}

func (c *Collection) Name() string {
	return c.coll.Name()
}

func (c *Collection) Find(ctx context.Context, filter bson.M, sort bson.D, out any) error {
	opts := options.Find()
	if len(sort) > 0 {
		opts.SetSort(sort)
	}
	cur, err := c.coll.Find(ctx, orEmpty(filter), opts)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}

func (c *Collection) FindOne(ctx context.Context, filter bson.M, out any) error {
	err := c.coll.FindOne(ctx, orEmpty(filter)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNoDocuments
	}
	return err
}

func (c *Collection) InsertOne(ctx context.Context, doc any) (any, error) {
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, wrapWriteErr(err)
	}
	return res.InsertedID, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter, update bson.M) (store.UpdateResult, error) {
	res, err := c.coll.UpdateOne(ctx, orEmpty(filter), update)
	if err != nil {
		return store.UpdateResult{}, wrapWriteErr(err)
	}
	return store.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (c *Collection) UpdateMany(ctx context.Context, filter, update bson.M) (store.UpdateResult, error) {
	res, err := c.coll.UpdateMany(ctx, orEmpty(filter), update)
	if err != nil {
		return store.UpdateResult{}, wrapWriteErr(err)
	}
	return store.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, orEmpty(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *Collection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	return c.coll.CountDocuments(ctx, orEmpty(filter))
}

func (c *Collection) EnsureUniqueIndex(ctx context.Context, name string, keys []string, partial bson.M) error {
	keySpec := make(bson.D, 0, len(keys))
	for _, k := range keys {
		keySpec = append(keySpec, bson.E{Key: k, Value: 1})
	}
	opts := options.Index().SetName(name).SetUnique(true)
	if len(partial) > 0 {
		opts.SetPartialFilterExpression(partial)
	}
	if _, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keySpec, Options: opts}); err != nil {
		return fmt.Errorf("create index %s on %s: %w", name, c.coll.Name(), err)
	}
	return nil
}

func wrapWriteErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", store.ErrDuplicateKey, err)
	}
	return err
}

func orEmpty(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}
