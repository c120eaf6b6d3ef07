// Package store defines the minimal document-database client surface the
// repositories depend on. Two implementations exist: mongostore (MongoDB) and
// memstore (in-process, used for local development and tests).
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrNoDocuments is returned by FindOne when nothing matched the filter.
	ErrNoDocuments = errors.New("store: no documents in result")
	// ErrDuplicateKey is returned (wrapped) when a write violates a unique index.
	ErrDuplicateKey = errors.New("store: duplicate key")
)

// UpdateResult reports how many documents an update matched and changed.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Collection is a single named document collection.
//
// Filters are equality maps; a value may also be an operator document using
// "$ne". Updates are operator documents using "$set" and "$unset". Sort keys
// use 1 for ascending and -1 for descending.
type Collection interface {
	Name() string
	Find(ctx context.Context, filter bson.M, sort bson.D, out any) error
	FindOne(ctx context.Context, filter bson.M, out any) error
	InsertOne(ctx context.Context, doc any) (any, error)
	UpdateOne(ctx context.Context, filter, update bson.M) (UpdateResult, error)
	UpdateMany(ctx context.Context, filter, update bson.M) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
	// EnsureUniqueIndex creates a unique index over keys. Documents that do
	// not satisfy partial (or, for memstore, that miss any key) are exempt.
	EnsureUniqueIndex(ctx context.Context, name string, keys []string, partial bson.M) error
}

// Database selects collections and checks liveness.
type Database interface {
	Name() string
	Collection(name string) Collection
	Ping(ctx context.Context) error
}

// IsDuplicateKey reports whether err came from a unique index violation.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}
