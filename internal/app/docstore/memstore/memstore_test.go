package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
)

func TestSetEmitsOnlyEffectiveChanges(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Set(ctx, "c/a", docstore.Data{"n": 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "c/a", docstore.Data{"n": int32(1)}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := s.Pending(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
	c, _ := s.Next()
	if c.Kind() != changes.KindCreate {
		t.Errorf("kind = %v, want create", c.Kind())
	}

	if err := s.Delete(ctx, "c/missing"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("deleting a missing doc queued a change")
	}
}

func TestUpdateDottedAndDeleteField(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed("users/u1", docstore.Data{"role": "admin"})

	if err := s.Update(ctx, "users/u1", docstore.Data{"watchingSubjects.s1": true}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	d, _ := s.Get(ctx, "users/u1")
	if v, ok := docstore.Lookup(d.Data, "watchingSubjects.s1"); !ok || v != true {
		t.Fatalf("watchingSubjects.s1 = %v, %v", v, ok)
	}

	if err := s.Update(ctx, "users/u1", docstore.Data{"watchingSubjects.s1": docstore.DeleteField}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	d, _ = s.Get(ctx, "users/u1")
	if _, ok := docstore.Lookup(d.Data, "watchingSubjects.s1"); ok {
		t.Fatalf("field not removed: %v", d.Data)
	}

	if err := s.Update(ctx, "users/nobody", docstore.Data{"x": 1}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Update missing err = %v, want ErrNotFound", err)
	}
	if err := s.Merge(ctx, "users/nobody", docstore.Data{"x": 1}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if ok, _ := docstore.Exists(ctx, s, "users/nobody"); !ok {
		t.Fatalf("Merge did not create the document")
	}
}

func TestHopIsStampedFromContext(t *testing.T) {
	s := New()
	ctx := changes.WithHop(context.Background(), 2)
	_ = s.Set(ctx, "c/a", docstore.Data{"x": true})
	c, ok := s.Next()
	if !ok || c.Hop != 2 {
		t.Fatalf("hop = %d (%v), want 2", c.Hop, ok)
	}
}

func TestQueryFiltersOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Seed("fb/c", docstore.Data{"reviewer": true, "at": base.Add(2 * time.Hour)})
	s.Seed("fb/a", docstore.Data{"reviewer": true, "at": base})
	s.Seed("fb/b", docstore.Data{"reviewer": false, "at": base.Add(time.Hour)})
	s.Seed("fb/d", docstore.Data{"reviewer": true, "at": base.Add(2 * time.Hour)})
	s.Seed("fb/a/sub/x", docstore.Data{"reviewer": true})

	tests := []struct {
		name string
		q    docstore.Query
		want []string
	}{
		{
			name: "eq ordered desc with path tie-break",
			q: docstore.Query{Collection: "fb", Where: []docstore.Filter{docstore.Where("reviewer", docstore.Eq, true)},
				OrderBy: "at", Descending: true},
			want: []string{"fb/c", "fb/d", "fb/a"},
		},
		{
			name: "limit",
			q:    docstore.Query{Collection: "fb", OrderBy: "at", Limit: 2},
			want: []string{"fb/a", "fb/b"},
		},
		{
			name: "range",
			q:    docstore.Query{Collection: "fb", Where: []docstore.Filter{docstore.Where("at", docstore.Gt, base)}},
			want: []string{"fb/b", "fb/c", "fb/d"},
		},
		{
			name: "in",
			q:    docstore.Query{Collection: "fb", Where: []docstore.Filter{docstore.Where("reviewer", docstore.In, []any{false})}},
			want: []string{"fb/b"},
		},
		{
			name: "ne matches missing",
			q:    docstore.Query{Collection: "fb/a/sub", Where: []docstore.Filter{docstore.Where("other", docstore.Ne, 1)}},
			want: []string{"fb/a/sub/x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.Query(ctx, tt.q)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(docs) != len(tt.want) {
				t.Fatalf("got %d docs, want %d", len(docs), len(tt.want))
			}
			for i, d := range docs {
				if d.Path != tt.want[i] {
					t.Errorf("docs[%d] = %s, want %s", i, d.Path, tt.want[i])
				}
			}
		})
	}

	n, err := s.Count(ctx, docstore.Query{Collection: "fb", Where: []docstore.Filter{docstore.Where("reviewer", docstore.Eq, true)}})
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v; want 3", n, err)
	}
}

func TestQueryAllParents(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed("languages/en/subjects/math", docstore.Data{"moderators": map[string]any{"u1": true}})
	s.Seed("languages/fr/subjects/art", docstore.Data{"moderators": map[string]any{"u1": true}})
	s.Seed("languages/fr/subjects/music", docstore.Data{"moderators": map[string]any{"u2": true}})
	s.Seed("languages/fr/topics/math", docstore.Data{"moderators": map[string]any{"u1": true}})

	q := docstore.Query{
		Collection: "subjects",
		AllParents: true,
		Where:      []docstore.Filter{docstore.Where("moderators.u1", docstore.Eq, true)},
	}
	docs, err := s.Query(ctx, q)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []string{"languages/en/subjects/math", "languages/fr/subjects/art"}
	if len(docs) != len(want) {
		t.Fatalf("got %v, want %v", docs, want)
	}
	for i, d := range docs {
		if d.Path != want[i] {
			t.Errorf("docs[%d] = %s, want %s", i, d.Path, want[i])
		}
	}

	q.AllParents = false
	if n, _ := s.Count(ctx, q); n != 0 {
		t.Errorf("Count without AllParents = %d, want 0", n)
	}
}

func TestReturnedDocsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed("c/a", docstore.Data{"m": map[string]any{"k": true}})
	d, _ := s.Get(ctx, "c/a")
	d.Data["m"].(map[string]any)["k"] = false

	again, _ := s.Get(ctx, "c/a")
	if v, _ := docstore.Lookup(again.Data, "m.k"); v != true {
		t.Fatalf("stored doc mutated through Get result")
	}
}

func TestFaultInjection(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("unavailable")
	s.SetFault(func(op, path string) error {
		if op == "set" {
			return boom
		}
		return nil
	})
	if err := s.Set(ctx, "c/a", docstore.Data{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want injected fault", err)
	}
	s.SetFault(nil)
	if err := s.Set(ctx, "c/a", docstore.Data{}); err != nil {
		t.Fatalf("Set after clearing fault: %v", err)
	}
}
