// Package docstore defines the document store contract the sync maintainers
// depend on.
//
// Documents are addressed by slash-separated paths that alternate collection
// and document segments. A query always targets one collection path. Field
// names may be dotted to address nested map entries ("watchingSubjects.s1").
//
// Implementations: mongostore (production) and memstore (tests, CLI).
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a read or partial update targets a document
// that does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// Data is a document body.
type Data = map[string]any

// Doc is a document and its path.
type Doc struct {
	Path string
	Data Data
}

type deleteField struct{}

// DeleteField, used as a value in Update or Merge, removes the field.
var DeleteField any = deleteField{}

// IsDeleteField reports whether v is the DeleteField sentinel.
func IsDeleteField(v any) bool {
	_, ok := v.(deleteField)
	return ok
}

// Op is a filter comparison operator.
type Op string

const (
	Eq  Op = "=="
	Ne  Op = "!="
	Lt  Op = "<"
	Lte Op = "<="
	Gt  Op = ">"
	Gte Op = ">="
	In  Op = "in"
)

// Filter is one predicate of a query. All filters of a query must hold.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Query selects documents of one collection.
//
// Results are ordered by OrderBy (when set) and then by path, so the order is
// stable across retries. Limit <= 0 means no limit.
type Query struct {
	Collection string
	// AllParents matches every collection named like the last segment of
	// Collection, whatever its parent ("subjects" of every language).
	AllParents bool
	Where      []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Store is the document store.
//
// Writes that leave a document unchanged must not be observable as changes,
// which is what lets recompute-and-overwrite cascades terminate.
type Store interface {
	// Get returns the document at path or ErrNotFound.
	Get(ctx context.Context, path string) (Doc, error)
	// Query returns the documents matching q.
	Query(ctx context.Context, q Query) ([]Doc, error)
	// Count returns the number of documents matching q (OrderBy and Limit ignored).
	Count(ctx context.Context, q Query) (int64, error)
	// Set replaces the document at path, creating it if needed.
	Set(ctx context.Context, path string, data Data) error
	// Update sets the given fields (dotted names allowed) of an existing
	// document. It returns ErrNotFound when the document does not exist.
	Update(ctx context.Context, path string, fields Data) error
	// Merge is Update that creates the document when it does not exist.
	Merge(ctx context.Context, path string, fields Data) error
	// Delete removes the document at path. Deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error
}

// Exists reports whether a document exists at path.
func Exists(ctx context.Context, s Store, path string) (bool, error) {
	_, err := s.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
