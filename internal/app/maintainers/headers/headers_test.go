package headers_test

import (
	"context"
	"testing"

	"github.com/dalemusser/lessonsync/internal/app/changes"
	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/app/docstore/memstore"
	"github.com/dalemusser/lessonsync/internal/app/maintainers/headers"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"github.com/dalemusser/lessonsync/internal/testutil"
)

const lang = testutil.Lang

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    headers.Policy
		wantErr bool
	}{
		{"", headers.Retain, false},
		{"retain", headers.Retain, false},
		{"delete", headers.Delete, false},
		{"drop", "", true},
	}
	for _, tt := range tests {
		got, err := headers.ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestSync_MirrorsResource(t *testing.T) {
	h := testutil.NewHarness(t)
	path := tree.Resource(lang, "A")
	h.Set(path, testutil.Lesson("t1", "s1", models.StatusDraft))

	h.Update(path, docstore.Data{"name": "Renamed", "authorInstitution": "Hill School"})

	hd := h.Doc(tree.Header(lang, "A"))
	if hd["name"] != "Renamed" || hd["authorInstitution"] != "Hill School" || hd["resource"] != "A" {
		t.Errorf("header = %v", hd)
	}
	if _, ok := hd["status"]; ok {
		t.Errorf("header carries non-header field status")
	}

	h.Delete(path)
	if h.Doc(tree.Header(lang, "A")) != nil {
		t.Errorf("header survived its resource")
	}
}

func TestSync_StaleEventDoesNotRollBack(t *testing.T) {
	db := memstore.New()
	ctx := context.Background()
	path := tree.Resource(lang, "A")
	old := testutil.Lesson("t1", "s1", models.StatusDraft)
	cur := testutil.Lesson("t1", "s1", models.StatusDraft)
	cur["name"] = "Current"
	db.Seed(path, cur)

	s := headers.NewSync(db)
	ev := dispatch.Event{
		Change:  changes.New(path, nil, old, 0),
		Pattern: tree.ResourcePattern,
		Params:  map[string]string{"lang": lang, "resourceId": "A"},
	}
	if err := s.Handle(ctx, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got, err := db.Get(ctx, tree.Header(lang, "A"))
	if err != nil {
		t.Fatalf("Get header: %v", err)
	}
	if got.Data["name"] != "Current" {
		t.Errorf("header name = %v, want Current", got.Data["name"])
	}
}

func TestProjector_ClassroomResourcesNotProjected(t *testing.T) {
	h := testutil.NewHarness(t)
	d := testutil.Lesson("t1", "s1", models.StatusPublished)
	d["resourceType"] = models.ResourceTypeClassroomResource
	h.Set(tree.Resource(lang, "C"), d)

	if !h.Resource(lang, "C").IsFeatured {
		t.Fatalf("classroom resource not featured in its group")
	}
	if h.Doc(tree.FeaturedHeader(lang, "s1")) != nil {
		t.Errorf("classroom resource projected as featured lesson")
	}
}

func TestProjector_MoveToAnotherSubtopic(t *testing.T) {
	h := testutil.NewHarness(t, testutil.WithPolicy(headers.Delete))
	h.Set(tree.Topic(lang, "t1"), testutil.Topic("Forces"))
	h.Set(tree.Topic(lang, "t2"), testutil.Topic("Waves"))
	h.Set(tree.Resource(lang, "A"), testutil.Lesson("t1", "s1", models.StatusPublished))

	h.Update(tree.Resource(lang, "A"), docstore.Data{"topic": "t2", "subtopic": "s3"})

	if h.Doc(tree.FeaturedHeader(lang, "s1")) != nil {
		t.Errorf("old subtopic projection kept under the delete policy")
	}
	if got := h.Doc(tree.FeaturedHeader(lang, "s3"))["resource"]; got != "A" {
		t.Errorf("new subtopic projection = %v, want A", got)
	}
	if !docstore.Equal(h.Doc(tree.Topic(lang, "t1"))["featuredSubtopicCount"], 0) {
		t.Errorf("t1 featuredSubtopicCount = %v, want 0", h.Doc(tree.Topic(lang, "t1"))["featuredSubtopicCount"])
	}
	if !docstore.Equal(h.Doc(tree.Topic(lang, "t2"))["featuredSubtopicCount"], 1) {
		t.Errorf("t2 featuredSubtopicCount = %v, want 1", h.Doc(tree.Topic(lang, "t2"))["featuredSubtopicCount"])
	}
	h.RequireInvariants()
}
