// Package memstore is an in-process implementation of store.Database. It keeps
// documents in their BSON-decoded form so values round-trip exactly as they
// would through MongoDB (ints, dates, ObjectIDs).
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JustinTDCT/SerialDesk/internal/store"
)

type Database struct {
	name  string
	mu    sync.Mutex
	colls map[string]*Collection
}

func New(name string) *Database {
	return &Database{name: name, colls: make(map[string]*Collection)}
}

func (d *Database) Name() string {
	return d.name
}

func (d *Database) Collection(name string) store.Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.colls[name]
	if !ok {
		c = &Collection{name: name}
		d.colls[name] = c
	}
	return c
}

func (d *Database) Ping(ctx context.Context) error {
	return ctx.Err()
}

type uniqueIndex struct {
	name    string
	keys    []string
	partial bson.M
}

type Collection struct {
	name    string
	mu      sync.RWMutex
	docs    []bson.M
	indexes []uniqueIndex
}

func (c *Collection) Name() string {
	return c.name
}

// ──────────────────── Reads ────────────────────

func (c *Collection) Find(ctx context.Context, filter bson.M, sortBy bson.D, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("memstore: Find needs a pointer to a slice, got %T", out)
	}

	c.mu.RLock()
	var matched []bson.M
	for _, doc := range c.docs {
		if matches(doc, filter) {
			matched = append(matched, doc)
		}
	}
	c.mu.RUnlock()

	if len(sortBy) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, key := range sortBy {
				cmp := compare(matched[i][key.Key], matched[j][key.Key])
				if cmp == 0 {
					continue
				}
				if direction(key.Value) < 0 {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	slice := rv.Elem()
	elemType := slice.Type().Elem()
	result := reflect.MakeSlice(slice.Type(), 0, len(matched))
	for _, doc := range matched {
		elem := reflect.New(elemType)
		if err := decode(doc, elem.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, elem.Elem())
	}
	slice.Set(result)
	return nil
}

func (c *Collection) FindOne(ctx context.Context, filter bson.M, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, doc := range c.docs {
		if matches(doc, filter) {
			return decode(doc, out)
		}
	}
	return store.ErrNoDocuments
}

func (c *Collection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, doc := range c.docs {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

// ──────────────────── Writes ────────────────────

func (c *Collection) InsertOne(ctx context.Context, v any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := toM(v)
	if err != nil {
		return nil, err
	}
	id, ok := doc["_id"]
	if !ok || id == nil {
		id = primitive.NewObjectID()
		doc["_id"] = id
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.docs {
		if equal(existing["_id"], id) {
			return nil, fmt.Errorf("%w: _id %v in %s", store.ErrDuplicateKey, id, c.name)
		}
	}
	if err := c.checkUnique(doc, -1); err != nil {
		return nil, err
	}
	c.docs = append(c.docs, doc)
	return id, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter, update bson.M) (store.UpdateResult, error) {
	return c.update(ctx, filter, update, false)
}

func (c *Collection) UpdateMany(ctx context.Context, filter, update bson.M) (store.UpdateResult, error) {
	return c.update(ctx, filter, update, true)
}

func (c *Collection) update(ctx context.Context, filter, update bson.M, many bool) (store.UpdateResult, error) {
	var res store.UpdateResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		if !matches(doc, filter) {
			continue
		}
		res.Matched++
		next, changed, err := applyUpdate(doc, update)
		if err != nil {
			return res, err
		}
		if changed {
			if err := c.checkUnique(next, i); err != nil {
				return res, err
			}
			c.docs[i] = next
			res.Modified++
		}
		if !many {
			break
		}
	}
	return res, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		if matches(doc, filter) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (c *Collection) EnsureUniqueIndex(ctx context.Context, name string, keys []string, partial bson.M) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, idx := range c.indexes {
		if idx.name == name {
			return nil
		}
	}
	idx := uniqueIndex{name: name, keys: keys, partial: partial}
	for i, doc := range c.docs {
		if j := idx.conflict(c.docs, doc, i); j >= 0 {
			return fmt.Errorf("create index %s on %s: %w", name, c.name, store.ErrDuplicateKey)
		}
	}
	c.indexes = append(c.indexes, idx)
	return nil
}

func (c *Collection) checkUnique(doc bson.M, skip int) error {
	for _, idx := range c.indexes {
		if idx.conflict(c.docs, doc, skip) >= 0 {
			return fmt.Errorf("%w: index %s in %s", store.ErrDuplicateKey, idx.name, c.name)
		}
	}
	return nil
}

// conflict returns the position of a document other than skip that shares
// doc's key values, or -1.
func (idx uniqueIndex) conflict(docs []bson.M, doc bson.M, skip int) int {
	if len(idx.partial) > 0 && !matches(doc, idx.partial) {
		return -1
	}
	for j, other := range docs {
		if j == skip {
			continue
		}
		if len(idx.partial) > 0 && !matches(other, idx.partial) {
			continue
		}
		same := true
		for _, k := range idx.keys {
			if !equal(doc[k], other[k]) {
				same = false
				break
			}
		}
		if same {
			return j
		}
	}
	return -1
}

func applyUpdate(doc, update bson.M) (bson.M, bool, error) {
	next := make(bson.M, len(doc))
	for k, v := range doc {
		next[k] = v
	}
	changed := false
	for op, arg := range update {
		fields, ok := arg.(bson.M)
		if !ok {
			return nil, false, fmt.Errorf("memstore: %s expects a document, got %T", op, arg)
		}
		switch op {
		case "$set":
			for k, v := range fields {
				cv, err := canonical(v)
				if err != nil {
					return nil, false, err
				}
				if old, present := next[k]; !present || !equal(old, cv) {
					changed = true
				}
				next[k] = cv
			}
		case "$unset":
			for k := range fields {
				if _, present := next[k]; present {
					delete(next, k)
					changed = true
				}
			}
		default:
			return nil, false, fmt.Errorf("memstore: unsupported update operator %s", op)
		}
	}
	return next, changed, nil
}

// ──────────────────── Matching ────────────────────

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		got, present := doc[k]
		if op, ok := want.(bson.M); ok && isOperator(op) {
			if !matchOperator(got, present, op) {
				return false
			}
			continue
		}
		w, err := canonical(want)
		if err != nil {
			return false
		}
		if w == nil {
			if present && got != nil {
				return false
			}
			continue
		}
		if !present || !equal(got, w) {
			return false
		}
	}
	return true
}

func matchOperator(got any, present bool, op bson.M) bool {
	for name, arg := range op {
		switch name {
		case "$ne":
			a, err := canonical(arg)
			if err != nil {
				return false
			}
			if a == nil {
				if !present || got == nil {
					return false
				}
				continue
			}
			if present && equal(got, a) {
				return false
			}
		case "$exists":
			want, _ := arg.(bool)
			if present != want {
				return false
			}
		case "$type":
			if !present || !hasType(got, fmt.Sprint(arg)) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func isOperator(m bson.M) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func hasType(v any, name string) bool {
	switch name {
	case "number":
		_, ok := number(v)
		return ok
	case "string":
		_, ok := v.(string)
		return ok
	case "date":
		_, ok := v.(primitive.DateTime)
		return ok
	case "objectId":
		_, ok := v.(primitive.ObjectID)
		return ok
	case "bool":
		_, ok := v.(bool)
		return ok
	}
	return false
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compare orders values the way a sort would: missing and null first, then
// numbers, strings, ObjectIDs, booleans and dates.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		x, _ := number(a)
		y, _ := number(b)
		return cmp3(x < y, x > y)
	case 2:
		return strings.Compare(a.(string), b.(string))
	case 3:
		return strings.Compare(a.(primitive.ObjectID).Hex(), b.(primitive.ObjectID).Hex())
	case 4:
		return cmp3(!a.(bool) && b.(bool), a.(bool) && !b.(bool))
	case 5:
		x, y := a.(primitive.DateTime), b.(primitive.DateTime)
		return cmp3(x < y, x > y)
	}
	return 0
}

func rank(v any) int {
	if _, ok := number(v); ok {
		return 1
	}
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 2
	case primitive.ObjectID:
		return 3
	case bool:
		return 4
	case primitive.DateTime:
		return 5
	}
	return 6
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func direction(v any) int {
	if n, ok := number(v); ok && n < 0 {
		return -1
	}
	return 1
}

// ──────────────────── BSON helpers ────────────────────

func toM(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memstore: marshal document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("memstore: unmarshal document: %w", err)
	}
	return m, nil
}

// canonical converts a Go value into the representation a stored document
// would hold for it (time.Time becomes DateTime, pointers are dereferenced).
func canonical(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	m, err := toM(bson.D{{Key: "v", Value: v}})
	if err != nil {
		return nil, err
	}
	return m["v"], nil
}

func decode(doc bson.M, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("memstore: marshal document: %w", err)
	}
	return bson.Unmarshal(raw, out)
}
