// Package memstore is an in-memory docstore.Store that records every
// effective write as a changes.Change on an internal FIFO queue.
//
// It is the substitute for the production store in tests and in the replay
// CLI. Writes that leave a document unchanged are not queued, which is how a
// recompute-and-overwrite cascade reaches its fixed point.
//
// Filter semantics follow MongoDB: != and range filters on a missing field
// behave as they do there (!= matches, ranges do not).
package memstore

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
)

// FaultFunc is consulted before every operation. A non-nil error is returned
// to the caller and the operation is not performed.
type FaultFunc func(op, path string) error

// Store is the in-memory document store.
type Store struct {
	mu    sync.Mutex
	docs  map[string]docstore.Data
	queue []changes.Change
	fault FaultFunc
}

var _ docstore.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{docs: make(map[string]docstore.Data)}
}

// SetFault installs (or, with nil, removes) a fault injector.
func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

func (s *Store) check(op, path string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op, path)
}

// Seed writes a document without queueing a change.
func (s *Store) Seed(path string, data docstore.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = docstore.NormalizeData(data)
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, path string) (docstore.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get", path); err != nil {
		return docstore.Doc{}, err
	}
	d, ok := s.docs[path]
	if !ok {
		return docstore.Doc{}, docstore.ErrNotFound
	}
	return docstore.Doc{Path: path, Data: docstore.NormalizeData(d)}, nil
}

// Query implements docstore.Store.
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("query", q.Collection); err != nil {
		return nil, err
	}
	out := s.matchLocked(q)

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			a, aok := docstore.Lookup(out[i].Data, q.OrderBy)
			b, bok := docstore.Lookup(out[j].Data, q.OrderBy)
			if c := orderOf(a, aok, b, bok); c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return out[i].Path < out[j].Path
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Count implements docstore.Store.
func (s *Store) Count(ctx context.Context, q docstore.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("count", q.Collection); err != nil {
		return 0, err
	}
	return int64(len(s.matchLocked(q))), nil
}

func (s *Store) matchLocked(q docstore.Query) []docstore.Doc {
	var out []docstore.Doc
	for path, d := range s.docs {
		if q.AllParents {
			if tree.CollectionName(path) != tree.ID(q.Collection) {
				continue
			}
		} else if tree.Parent(path) != q.Collection {
			continue
		}
		if !matches(d, q.Where) {
			continue
		}
		out = append(out, docstore.Doc{Path: path, Data: docstore.NormalizeData(d)})
	}
	return out
}

// Set implements docstore.Store.
func (s *Store) Set(ctx context.Context, path string, data docstore.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("set", path); err != nil {
		return err
	}
	next := docstore.NormalizeData(data)
	if next == nil {
		next = docstore.Data{}
	}
	s.writeLocked(ctx, path, next)
	return nil
}

// Update implements docstore.Store.
func (s *Store) Update(ctx context.Context, path string, fields docstore.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("update", path); err != nil {
		return err
	}
	cur, ok := s.docs[path]
	if !ok {
		return docstore.ErrNotFound
	}
	s.writeLocked(ctx, path, applyFields(docstore.NormalizeData(cur), fields))
	return nil
}

// Merge implements docstore.Store.
func (s *Store) Merge(ctx context.Context, path string, fields docstore.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("merge", path); err != nil {
		return err
	}
	cur := docstore.NormalizeData(s.docs[path])
	if cur == nil {
		cur = docstore.Data{}
	}
	s.writeLocked(ctx, path, applyFields(cur, fields))
	return nil
}

// Delete implements docstore.Store.
func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete", path); err != nil {
		return err
	}
	s.writeLocked(ctx, path, nil)
	return nil
}

// writeLocked stores next (nil deletes) and queues a change when the
// document actually changed.
func (s *Store) writeLocked(ctx context.Context, path string, next docstore.Data) {
	prev, existed := s.docs[path]
	if !existed && next == nil {
		return
	}
	if existed && next != nil && reflect.DeepEqual(prev, next) {
		return
	}
	if next == nil {
		delete(s.docs, path)
	} else {
		s.docs[path] = next
	}
	var before docstore.Data
	if existed {
		before = prev
	}
	s.queue = append(s.queue, changes.New(path, before, next, changes.HopFrom(ctx)))
}

// Next pops the oldest queued change.
func (s *Store) Next() (changes.Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return changes.Change{}, false
	}
	c := s.queue[0]
	s.queue = s.queue[1:]
	return c, true
}

// Pending returns the number of queued changes.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Discard drops every queued change.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
}

// Snapshot returns every document whose path starts with prefix, ordered by path.
func (s *Store) Snapshot(prefix string) []docstore.Doc {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []docstore.Doc
	for path, d := range s.docs {
		if strings.HasPrefix(path, prefix) {
			out = append(out, docstore.Doc{Path: path, Data: docstore.NormalizeData(d)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func applyFields(doc docstore.Data, fields docstore.Data) docstore.Data {
	for k, v := range fields {
		parts := strings.Split(k, ".")
		if docstore.IsDeleteField(v) {
			removePath(doc, parts)
			continue
		}
		setPath(doc, parts, docstore.Normalize(v))
	}
	return doc
}

func setPath(m map[string]any, parts []string, v any) {
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

func removePath(m map[string]any, parts []string) {
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			return
		}
		m = next
	}
	delete(m, parts[len(parts)-1])
}

func matches(d docstore.Data, filters []docstore.Filter) bool {
	for _, f := range filters {
		if !matchOne(d, f) {
			return false
		}
	}
	return true
}

func matchOne(d docstore.Data, f docstore.Filter) bool {
	v, ok := docstore.Lookup(d, f.Field)
	want := docstore.Normalize(f.Value)
	switch f.Op {
	case docstore.Eq:
		return ok && docstore.Equal(v, want)
	case docstore.Ne:
		return !ok || !docstore.Equal(v, want)
	case docstore.In:
		list, isList := want.([]any)
		if !ok || !isList {
			return false
		}
		for _, e := range list {
			if docstore.Equal(v, e) {
				return true
			}
		}
		return false
	}
	if !ok {
		return false
	}
	c, comparable := docstore.Compare(v, want)
	if !comparable {
		return false
	}
	switch f.Op {
	case docstore.Lt:
		return c < 0
	case docstore.Lte:
		return c <= 0
	case docstore.Gt:
		return c > 0
	case docstore.Gte:
		return c >= 0
	}
	return false
}

// orderOf orders two sort keys; missing keys sort first.
func orderOf(a any, aok bool, b any, bok bool) int {
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	c, _ := docstore.Compare(a, b)
	return c
}
