package deletion_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/dalemusser/lessonsync/internal/app/dispatch"
	"github.com/dalemusser/lessonsync/internal/app/system/attachments"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"github.com/dalemusser/lessonsync/internal/testutil"
)

const lang = testutil.Lang

func TestCoordinator_CardDelete(t *testing.T) {
	h := testutil.NewHarness(t)
	h.Set(tree.Resource(lang, "A"), testutil.Lesson("t1", "s1", models.StatusDraft))
	obj := tree.CardNamespace("author1", "A", "c1") + "a.png"
	thumb := tree.CardNamespace("author1", "A", "c1") + "thumb.png"
	other := tree.CardNamespace("author1", "A", "c2") + "b.png"
	for _, o := range []string{obj, thumb, other} {
		h.Attachments.Put(o, attachments.Metadata{SizeBytes: 1})
	}
	h.Set(tree.Card(lang, "A", "c1"), testutil.Card(obj))
	h.Set(tree.Card(lang, "A", "c2"), testutil.Card(other))
	h.Set(tree.Feedback(lang, "A", "c1", "f1"), testutil.AuthorComment("x"))
	h.Set(tree.Feedback(lang, "A", "c1", "f2"), testutil.ReviewerComment("y", 0))

	h.Delete(tree.Card(lang, "A", "c1"))

	if left := h.Store.Snapshot(tree.Card(lang, "A", "c1") + "/"); len(left) != 0 {
		t.Errorf("feedback left behind: %v", left)
	}
	got := h.Attachments.Paths("")
	if len(got) != 1 || got[0] != other {
		t.Errorf("objects = %v, want only %s", got, other)
	}
	if h.Doc(tree.Card(lang, "A", "c2")) == nil {
		t.Errorf("sibling card removed")
	}
	h.RequireInvariants()
}

func TestCoordinator_StorageFailureRetried(t *testing.T) {
	h := testutil.NewHarness(t, testutil.WithRetries(2))
	h.Set(tree.Resource(lang, "A"), testutil.Lesson("t1", "s1", models.StatusDraft))
	h.Attachments.Put(tree.ResourceNamespace("author1", "A")+"x.png", attachments.Metadata{})
	h.Set(tree.Card(lang, "A", "c1"), testutil.Card(""))

	h.Attachments.FailWith(errors.New("storage unavailable"))
	if err := h.Store.Delete(t.Context(), tree.Resource(lang, "A")); err != nil {
		t.Fatal(err)
	}
	_, err := h.Runner.Settle(t.Context())
	if err == nil {
		t.Fatalf("Settle succeeded with storage failing")
	}
	var hop *dispatch.HopLimitError
	if errors.As(err, &hop) {
		t.Fatalf("storage failure reported as hop limit: %v", err)
	}

	// Deleting again once storage is back finishes the job.
	h.Attachments.FailWith(nil)
	h.Set(tree.Resource(lang, "A"), testutil.Lesson("t1", "s1", models.StatusDraft))
	h.Delete(tree.Resource(lang, "A"))
	if left := h.Store.Snapshot(tree.Resource(lang, "A") + "/"); len(left) != 0 {
		t.Errorf("children left behind: %v", left)
	}
	if left := h.Attachments.Paths(""); len(left) != 0 {
		t.Errorf("attachments left behind: %v", left)
	}
	h.RequireInvariants()
}

func TestCoordinator_StorageFailureStillCascades(t *testing.T) {
	h := testutil.NewHarness(t)
	h.Set(tree.Resource(lang, "A"), testutil.Lesson("t1", "s1", models.StatusPublished))
	h.Set(tree.Resource(lang, "B"), testutil.Lesson("t1", "s1", models.StatusPublished))
	h.Set(tree.Card(lang, "A", "c1"), testutil.Card(""))
	h.Set(tree.Feedback(lang, "A", "c1", "f1"), testutil.AuthorComment("x"))
	kept := tree.ResourceNamespace("author1", "A") + "x.png"
	h.Attachments.Put(kept, attachments.Metadata{SizeBytes: 1})

	h.Attachments.FailWith(errors.New("storage down"))
	if err := h.Store.Delete(t.Context(), tree.Resource(lang, "A")); err != nil {
		t.Fatal(err)
	}
	_, err := h.Runner.Settle(t.Context())
	if err == nil || !strings.Contains(err.Error(), "storage down") {
		t.Fatalf("Settle err = %v, want the storage failure", err)
	}

	if left := h.Store.Snapshot(tree.Resource(lang, "A") + "/"); len(left) != 0 {
		t.Errorf("cards left behind: %v", left)
	}
	// Only the purge that failed is outstanding.
	for _, v := range h.Violations() {
		if v.Path != kept {
			t.Errorf("unexpected violation %s", v)
		}
	}
}
