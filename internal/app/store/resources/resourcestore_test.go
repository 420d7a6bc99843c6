package resourcestore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/app/docstore/memstore"
	resourcestore "github.com/dalemusser/lessonsync/internal/app/store/resources"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
)

func seed(db *memstore.Store, id string, data docstore.Data) {
	db.Seed(tree.Resource("en", id), data)
}

func TestStore_GroupQueries(t *testing.T) {
	db := memstore.New()
	store := resourcestore.New(db)
	ctx := context.Background()

	lesson := func(status string, featured bool) docstore.Data {
		return docstore.Data{"resourceType": "lesson", "status": status, "isFeatured": featured, "topic": "t1", "subtopic": "s1"}
	}
	seed(db, "r2", lesson(models.StatusPublished, false))
	seed(db, "r1", lesson(models.StatusPublished, true))
	seed(db, "r3", lesson(models.StatusDraft, true))
	seed(db, "r4", docstore.Data{"resourceType": "classroom_resource", "status": "published", "topic": "t1", "subtopic": "s1"})
	seed(db, "r5", lesson(models.StatusAwaitingReview, false))

	g := models.Group{Lang: "en", Topic: "t1", Subtopic: "s1", ResourceType: "lesson"}

	published, err := store.ListGroup(ctx, g, models.StatusPublished)
	if err != nil {
		t.Fatalf("ListGroup failed: %v", err)
	}
	if len(published) != 2 || published[0].ID != "r1" || published[1].ID != "r2" {
		t.Fatalf("published = %+v, want r1, r2", published)
	}
	if published[0].Lang != "en" || !published[0].IsFeatured {
		t.Errorf("decoded resource = %+v", published[0])
	}

	featured, err := store.ListFeatured(ctx, g)
	if err != nil {
		t.Fatalf("ListFeatured failed: %v", err)
	}
	if len(featured) != 2 {
		t.Errorf("featured: got %d, want 2 (any status)", len(featured))
	}

	n, err := store.CountPublished(ctx, g)
	if err != nil || n != 2 {
		t.Errorf("CountPublished: got %d, %v; want 2", n, err)
	}

	n, err = store.CountAwaitingReview(ctx, "en", "t1")
	if err != nil || n != 1 {
		t.Errorf("CountAwaitingReview: got %d, %v; want 1", n, err)
	}

	lessons, err := store.ListLessonsBySubtopic(ctx, "en", "s1")
	if err != nil || len(lessons) != 4 {
		t.Errorf("ListLessonsBySubtopic: got %d, %v; want 4", len(lessons), err)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	store := resourcestore.New(memstore.New())
	_, err := store.GetByID(context.Background(), "en", "missing")
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := store.SetFields(context.Background(), "en", "missing", docstore.Data{"isFeatured": false}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("SetFields err = %v, want ErrNotFound", err)
	}
}

func TestDecode_Absent(t *testing.T) {
	_, ok, err := resourcestore.Decode("en", "r1", nil)
	if ok || err != nil {
		t.Fatalf("Decode(nil) = %v, %v", ok, err)
	}
}
