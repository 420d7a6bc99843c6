// internal/app/docstore/mongostore/mongostore.go
//
// Package mongostore implements docstore.Store on MongoDB.
//
// Each document lives in the collection named by the last collection segment
// of its path ("cards" for languages/en/resources/r1/cards/c1). The full path
// is the _id and the collection path is kept in _parent, which is what
// queries filter on. _hop records the cascade depth of the last effective
// write so the change stream can hand it back to the dispatcher.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Reserved field names.
const (
	FieldID     = "_id"
	FieldParent = "_parent"
	FieldHop    = "_hop"
)

type Store struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Database returns the underlying database.
func (s *Store) Database() *mongo.Database { return s.db }

func (s *Store) coll(path string) *mongo.Collection {
	return s.db.Collection(tree.CollectionName(path))
}

// Strip removes the reserved fields from a raw document and normalizes it.
// It reports the stored hop.
func Strip(raw bson.M) (docstore.Data, int) {
	if raw == nil {
		return nil, 0
	}
	hop := 0
	switch v := raw[FieldHop].(type) {
	case int32:
		hop = int(v)
	case int64:
		hop = int(v)
	}
	out := make(docstore.Data, len(raw))
	for k, v := range raw {
		if k == FieldID || k == FieldParent || k == FieldHop {
			continue
		}
		out[k] = v
	}
	return docstore.NormalizeData(out), hop
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Doc, error) {
	var raw bson.M
	err := s.coll(path).FindOne(ctx, bson.M{FieldID: path}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.Doc{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Doc{}, err
	}
	data, _ := Strip(raw)
	return docstore.Doc{Path: path, Data: data}, nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	filter, err := buildFilter(q)
	if err != nil {
		return nil, err
	}
	sort := bson.D{}
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		sort = append(sort, bson.E{Key: q.OrderBy, Value: dir})
	}
	sort = append(sort, bson.E{Key: FieldID, Value: 1})

	opts := options.Find().SetSort(sort)
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := s.db.Collection(tree.ID(q.Collection)).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []docstore.Doc
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		id, _ := raw[FieldID].(string)
		data, _ := Strip(raw)
		out = append(out, docstore.Doc{Path: id, Data: data})
	}
	return out, cur.Err()
}

func (s *Store) Count(ctx context.Context, q docstore.Query) (int64, error) {
	filter, err := buildFilter(q)
	if err != nil {
		return 0, err
	}
	return s.db.Collection(tree.ID(q.Collection)).CountDocuments(ctx, filter)
}

// Set replaces the document unless the stored body is already equal.
func (s *Store) Set(ctx context.Context, path string, data docstore.Data) error {
	next := docstore.NormalizeData(data)
	cur, err := s.Get(ctx, path)
	switch {
	case err == nil && reflect.DeepEqual(cur.Data, next):
		return nil
	case err != nil && !docstore.IsNotFound(err):
		return err
	}

	doc := bson.M{}
	for k, v := range next {
		doc[k] = v
	}
	doc[FieldID] = path
	doc[FieldParent] = tree.Parent(path)
	doc[FieldHop] = changes.HopFrom(ctx)

	_, err = s.coll(path).ReplaceOne(ctx, bson.M{FieldID: path}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) Update(ctx context.Context, path string, fields docstore.Data) error {
	return s.patch(ctx, path, fields, false)
}

func (s *Store) Merge(ctx context.Context, path string, fields docstore.Data) error {
	return s.patch(ctx, path, fields, true)
}

// patch applies fields with $set/$unset. Field values that already match
// are not written, so a no-op patch issues no write at all.
func (s *Store) patch(ctx context.Context, path string, fields docstore.Data, upsert bool) error {
	cur, err := s.Get(ctx, path)
	exists := err == nil
	if err != nil && !docstore.IsNotFound(err) {
		return err
	}
	if !exists && !upsert {
		return docstore.ErrNotFound
	}

	set := bson.M{}
	unset := bson.M{}
	for k, v := range fields {
		if err := checkField(k); err != nil {
			return err
		}
		have, ok := docstore.Lookup(cur.Data, k)
		if docstore.IsDeleteField(v) {
			if ok {
				unset[k] = ""
			}
			continue
		}
		nv := docstore.Normalize(v)
		if ok && docstore.Equal(have, nv) {
			continue
		}
		set[k] = nv
	}
	if exists && len(set) == 0 && len(unset) == 0 {
		return nil
	}

	set[FieldHop] = changes.HopFrom(ctx)
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if upsert {
		update["$setOnInsert"] = bson.M{FieldParent: tree.Parent(path)}
	}

	res, err := s.coll(path).UpdateOne(ctx, bson.M{FieldID: path}, update, options.Update().SetUpsert(upsert))
	if err != nil {
		return err
	}
	if !upsert && res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// Delete stamps the hop onto the document before removing it, so the
// change stream pre-image carries the depth of the delete.
func (s *Store) Delete(ctx context.Context, path string) error {
	c := s.coll(path)
	res, err := c.UpdateOne(ctx, bson.M{FieldID: path}, bson.M{"$set": bson.M{FieldHop: changes.HopFrom(ctx)}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return nil
	}
	_, err = c.DeleteOne(ctx, bson.M{FieldID: path})
	return err
}

func checkField(name string) error {
	if name == "" || strings.HasPrefix(name, "_") {
		return fmt.Errorf("mongostore: reserved or empty field name %q", name)
	}
	return nil
}

var ops = map[docstore.Op]string{
	docstore.Ne:  "$ne",
	docstore.Lt:  "$lt",
	docstore.Lte: "$lte",
	docstore.Gt:  "$gt",
	docstore.Gte: "$gte",
	docstore.In:  "$in",
}

func buildFilter(q docstore.Query) (bson.D, error) {
	if q.Collection == "" {
		return nil, errors.New("mongostore: query without collection")
	}
	filter := bson.D{}
	if !q.AllParents {
		filter = append(filter, bson.E{Key: FieldParent, Value: q.Collection})
	}
	for _, f := range q.Where {
		if err := checkField(f.Field); err != nil {
			return nil, err
		}
		v := docstore.Normalize(f.Value)
		if f.Op == docstore.Eq {
			filter = append(filter, bson.E{Key: f.Field, Value: v})
			continue
		}
		op, ok := ops[f.Op]
		if !ok {
			return nil, fmt.Errorf("mongostore: unsupported operator %q", f.Op)
		}
		filter = append(filter, bson.E{Key: f.Field, Value: bson.M{op: v}})
	}
	return filter, nil
}
