package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/app/docstore/mongostore"
	"github.com/dalemusser/lessonsync/internal/app/system/indexes"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"github.com/dalemusser/lessonsync/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func event(op string, before, after bson.M) streamEvent {
	ev := streamEvent{OperationType: op, FullDocument: after, FullDocumentBeforeChange: before}
	ev.DocumentKey.ID = "languages/en/topics/t1"
	return ev
}

func TestChangeOf(t *testing.T) {
	doc := func(name string, hop int32) bson.M {
		return bson.M{"_id": "languages/en/topics/t1", "_parent": "languages/en/topics", "_hop": hop, "name": name}
	}
	tests := []struct {
		name     string
		ev       streamEvent
		wantOK   bool
		wantKind changes.Kind
		wantHop  int
	}{
		{"insert", event("insert", nil, doc("a", 0)), true, changes.KindCreate, 0},
		{"update", event("update", doc("a", 0), doc("b", 2)), true, changes.KindUpdate, 2},
		{"replace", event("replace", doc("a", 1), doc("b", 1)), true, changes.KindUpdate, 1},
		{"hop restamp", event("update", doc("a", 0), doc("a", 3)), false, 0, 0},
		{"delete", event("delete", doc("a", 3), nil), true, changes.KindDelete, 3},
		{"delete without pre-image", event("delete", nil, nil), false, 0, 0},
		{"update after delete", event("update", doc("a", 0), nil), false, 0, 0},
		{"drop", event("drop", nil, nil), false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := changeOf(tt.ev)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if c.Kind() != tt.wantKind || c.Hop != tt.wantHop {
				t.Errorf("kind %v hop %d, want %v hop %d", c.Kind(), c.Hop, tt.wantKind, tt.wantHop)
			}
			if _, leaked := c.After["_hop"]; leaked {
				t.Errorf("reserved field in snapshot: %v", c.After)
			}
		})
	}
}

type recordingDispatcher struct {
	mu  sync.Mutex
	got []changes.Change
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, c changes.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, c)
	return nil
}

func (r *recordingDispatcher) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.got {
		out = append(out, c.Path)
	}
	return out
}

func TestChangeStream_Backoff(t *testing.T) {
	w := NewChangeStream(nil, &recordingDispatcher{}, zap.NewNop(), ChangeStreamOptions{
		Backoff:    100 * time.Millisecond,
		MaxBackoff: time.Second,
	})
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{40, time.Second},
	}
	for _, tt := range tests {
		if got := w.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

type failingDispatcher struct {
	mu    sync.Mutex
	calls []time.Time
}

func (f *failingDispatcher) Dispatch(ctx context.Context, c changes.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, time.Now())
	return errors.New("store unavailable")
}

func TestChangeStream_DeliverRetriesWithGrowingPause(t *testing.T) {
	d := &failingDispatcher{}
	w := NewChangeStream(nil, d, zap.NewNop(), ChangeStreamOptions{
		Retries:    3,
		Backoff:    10 * time.Millisecond,
		MaxBackoff: 40 * time.Millisecond,
	})
	w.deliver(t.Context(), changes.New(tree.Topic("en", "t1"), nil, docstore.Data{"name": "x"}, 0))

	if len(d.calls) != 4 {
		t.Fatalf("dispatched %d times, want 4", len(d.calls))
	}
	// Pauses of 10ms, 20ms and 40ms precede the redeliveries.
	if total := d.calls[3].Sub(d.calls[0]); total < 70*time.Millisecond {
		t.Errorf("redeliveries spanned %v, want at least 70ms", total)
	}
}

func TestChangeStream_StopIsIdempotent(t *testing.T) {
	w := NewChangeStream(nil, &recordingDispatcher{}, zap.NewNop(), ChangeStreamOptions{})
	w.Stop()
	w.Stop()
	if w.Running() {
		t.Errorf("Running after Stop")
	}
}

// Requires a replica set; change streams are unavailable on a standalone
// server.
func TestChangeStream_DeliversWrites(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsurePreImages(ctx, db); err != nil {
		t.Skipf("pre-images unavailable: %v", err)
	}
	cs, err := db.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		t.Skipf("change streams unavailable: %v", err)
	}
	cs.Close(ctx)

	rec := &recordingDispatcher{}
	w := NewChangeStream(db, rec, zap.NewNop(), ChangeStreamOptions{Backoff: 50 * time.Millisecond})
	w.Start()
	defer w.Stop()
	time.Sleep(500 * time.Millisecond)

	s := mongostore.New(db)
	path := tree.Topic("en", "t1")
	if err := s.Set(changes.WithHop(ctx, 1), path, docstore.Data{"name": "Forces"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, path); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && len(rec.paths()) < 2 {
		time.Sleep(50 * time.Millisecond)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.got) != 2 {
		t.Fatalf("delivered %d changes, want 2", len(rec.got))
	}
	if rec.got[0].Kind() != changes.KindCreate || rec.got[0].Hop != 1 {
		t.Errorf("first change %v hop %d", rec.got[0].Kind(), rec.got[0].Hop)
	}
	if rec.got[1].Kind() != changes.KindDelete {
		t.Errorf("second change %v", rec.got[1].Kind())
	}
}
