// Package changes defines the change event delivered for a single document
// write: the path plus before/after snapshots.
//
// Delivery is at-least-once and unordered across documents. Consumers must be
// idempotent.
package changes

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/blake2b"
)

// Kind is the write semantics of a change.
type Kind int

const (
	KindInvalid Kind = iota
	KindCreate
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	}
	return "invalid"
}

// Change is one document write. Before is nil for a create and After is nil
// for a delete.
type Change struct {
	ID     string
	Path   string
	Before docstore.Data
	After  docstore.Data
	// Hop is the cascade depth: 0 for writes originating outside the
	// maintainers, n+1 for writes issued while handling a hop n change.
	Hop  int
	Time time.Time
}

// New builds a change with a fresh id. Snapshots are normalized.
func New(path string, before, after docstore.Data, hop int) Change {
	return Change{
		ID:     NewID(),
		Path:   path,
		Before: docstore.NormalizeData(before),
		After:  docstore.NormalizeData(after),
		Hop:    hop,
		Time:   time.Now().UTC(),
	}
}

// NewID returns a new lexically sortable change id.
func NewID() string {
	return ulid.Make().String()
}

// Kind derives create/update/delete from the snapshots.
func (c Change) Kind() Kind {
	switch {
	case c.Before == nil && c.After != nil:
		return KindCreate
	case c.Before != nil && c.After != nil:
		return KindUpdate
	case c.Before != nil && c.After == nil:
		return KindDelete
	}
	return KindInvalid
}

// Changed reports whether the (dotted) field differs between the snapshots.
func (c Change) Changed(field string) bool {
	bv, bok := docstore.Lookup(c.Before, field)
	av, aok := docstore.Lookup(c.After, field)
	if bok != aok {
		return true
	}
	return !docstore.Equal(bv, av)
}

// OnlyChanged reports whether c is an update whose changed top-level fields
// are all within fields. An update with no changed fields counts.
func (c Change) OnlyChanged(fields ...string) bool {
	if c.Kind() != KindUpdate {
		return false
	}
	allowed := make(map[string]bool, len(fields))
	for _, f := range fields {
		allowed[f] = true
	}
	for _, f := range ChangedFields(c.Before, c.After) {
		if !allowed[f] {
			return false
		}
	}
	return true
}

// ChangedFields returns the sorted top-level field names whose values differ
// between before and after.
func ChangedFields(before, after docstore.Data) []string {
	var out []string
	for k, bv := range before {
		av, ok := after[k]
		if !ok || !docstore.Equal(bv, av) {
			out = append(out, k)
		}
	}
	for k := range after {
		if _, ok := before[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Fingerprint is a content hash of the path and both snapshots. Redelivered
// copies of one write share a fingerprint.
func Fingerprint(c Change) string {
	// encoding/json sorts map keys, which makes the encoding canonical.
	b, err := json.Marshal(struct {
		Path   string        `json:"p"`
		Before docstore.Data `json:"b"`
		After  docstore.Data `json:"a"`
	}{c.Path, c.Before, c.After})
	if err != nil {
		b = []byte(c.Path)
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:16])
}

type hopKey struct{}

// WithHop returns a context whose writes are stamped with the given hop.
func WithHop(ctx context.Context, hop int) context.Context {
	return context.WithValue(ctx, hopKey{}, hop)
}

// HopFrom returns the hop carried by ctx, 0 when none.
func HopFrom(ctx context.Context) int {
	if h, ok := ctx.Value(hopKey{}).(int); ok {
		return h
	}
	return 0
}
