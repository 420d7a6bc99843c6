package preview_test

import (
	"testing"
	"time"

	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"github.com/dalemusser/lessonsync/internal/testutil"
)

const lang = testutil.Lang

func TestSynchronizer_LatestReviewerComment(t *testing.T) {
	h := testutil.NewHarness(t)
	h.Set(tree.Resource(lang, "A"), testutil.Lesson("t1", "s1", models.StatusChangesRequested))
	h.Set(tree.Card(lang, "A", "c1"), testutil.Card(""))

	h.Set(tree.Feedback(lang, "A", "c1", "f1"), testutil.ReviewerComment("first", 0))
	h.Set(tree.Feedback(lang, "A", "c1", "f2"), testutil.ReviewerComment("<b>second</b><script>x()</script>", time.Minute))
	h.Set(tree.Feedback(lang, "A", "c1", "f3"), testutil.AuthorComment("from the author"))

	card := h.Doc(tree.Card(lang, "A", "c1"))
	if card["feedbackPreviewComment"] != "second" {
		t.Errorf("preview = %q, want sanitized second comment", card["feedbackPreviewComment"])
	}
	if card["feedbackPreviewCommentPath"] != tree.Feedback(lang, "A", "c1", "f2") {
		t.Errorf("preview path = %v", card["feedbackPreviewCommentPath"])
	}

	h.Delete(tree.Feedback(lang, "A", "c1", "f2"))
	if got := h.Doc(tree.Card(lang, "A", "c1"))["feedbackPreviewComment"]; got != "first" {
		t.Errorf("after delete preview = %v, want first", got)
	}
}

func TestSynchronizer_LockOnlyUpdateSkipped(t *testing.T) {
	h := testutil.NewHarness(t)
	h.Set(tree.Resource(lang, "A"), testutil.Lesson("t1", "s1", models.StatusChangesRequested))
	h.Set(tree.Card(lang, "A", "c1"), testutil.Card(""))
	h.Set(tree.Feedback(lang, "A", "c1", "f1"), testutil.ReviewerComment("keep me", 0))

	h.Update(tree.Feedback(lang, "A", "c1", "f1"), docstore.Data{"locked": true})

	if got := h.Doc(tree.Card(lang, "A", "c1"))["feedbackPreviewComment"]; got != "keep me" {
		t.Errorf("preview = %v, want it kept across a lock", got)
	}

	h.Update(tree.Feedback(lang, "A", "c1", "f1"), docstore.Data{"commentText": "edited"})
	if _, ok := h.Doc(tree.Card(lang, "A", "c1"))["feedbackPreviewComment"]; ok {
		t.Errorf("preview kept after the only reviewer comment is locked and edited")
	}
}
