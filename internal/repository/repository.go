package repository

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// objectID parses a hex id. Malformed ids can never match a stored document,
// so they surface as ErrNotFound.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func hexID(id any) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

// stamp is the server-side write time at the millisecond precision BSON
// dates keep.
func stamp() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
