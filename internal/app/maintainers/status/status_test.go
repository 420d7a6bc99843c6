package status_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
	"github.com/dalemusser/lessonsync/internal/testutil"
)

const lang = testutil.Lang

func setup(t *testing.T) *testutil.Harness {
	h := testutil.NewHarness(t)
	h.Set(tree.Topic(lang, "t1"), testutil.Topic("Forces"))
	h.Set(tree.User("author1"), testutil.User(models.RoleAuthor, "tok-author"))
	h.Set(tree.User("mod1"), testutil.User(models.RoleModerator, "tok-mod"))
	h.Set(tree.User("mod2"), testutil.User(models.RoleModerator, ""))
	h.Set(tree.Subject(lang, "subj1"), docstore.Data{"moderators": map[string]any{"mod1": true, "mod2": true}})
	h.Set(tree.Resource(lang, "A"), testutil.Lesson("t1", "s1", models.StatusDraft))
	h.Notifier.Reset()
	return h
}

func TestHandler_SubmitForReview(t *testing.T) {
	h := setup(t)

	h.Update(tree.Resource(lang, "A"), docstore.Data{"status": models.StatusAwaitingReview})

	if h.Doc(tree.Topic(lang, "t1"))["hasPendingSubmissions"] != true {
		t.Errorf("topic not pending")
	}
	if !h.Resource(lang, "A").IsAwaitingReviewOrHasChangesRequested {
		t.Errorf("isAwaitingReviewOrHasChangesRequested not set")
	}
	sent := h.Notifier.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(sent))
	}
	n := sent[0]
	if len(n.Tokens) != 1 || n.Tokens[0] != "tok-mod" {
		t.Errorf("tokens = %v, want [tok-mod]", n.Tokens)
	}
	if n.Notification.Title != "New submission" {
		t.Errorf("title = %q", n.Notification.Title)
	}
	want := map[string]string{"type": "awaiting_review", "lang": lang, "resource": "A", "topic": "t1", "subtopic": "s1", "status": models.StatusAwaitingReview}
	for k, v := range want {
		if n.Notification.Data[k] != v {
			t.Errorf("data[%s] = %q, want %q", k, n.Notification.Data[k], v)
		}
	}
	h.RequireInvariants()
}

func TestHandler_AuthorNotified(t *testing.T) {
	tests := []struct {
		to    string
		title string
	}{
		{models.StatusPublished, "Submission published"},
		{models.StatusChangesRequested, "Changes requested"},
	}
	for _, tt := range tests {
		t.Run(tt.to, func(t *testing.T) {
			h := setup(t)
			h.Update(tree.Resource(lang, "A"), docstore.Data{"status": models.StatusAwaitingReview})
			h.Notifier.Reset()

			h.Update(tree.Resource(lang, "A"), docstore.Data{"status": tt.to})

			sent := h.Notifier.Sent()
			if len(sent) != 1 || sent[0].Tokens[0] != "tok-author" || sent[0].Notification.Title != tt.title {
				t.Fatalf("sent = %+v, want %q to tok-author", sent, tt.title)
			}
			if h.Doc(tree.Topic(lang, "t1"))["hasPendingSubmissions"] != false {
				t.Errorf("topic still pending")
			}
			h.RequireInvariants()
		})
	}
}

func TestHandler_NotificationFailureDropped(t *testing.T) {
	h := setup(t)
	h.Notifier.FailWith(errors.New("push service down"))

	st := h.Update(tree.Resource(lang, "A"), docstore.Data{"status": models.StatusAwaitingReview})

	if st.Failed != 0 {
		t.Errorf("failed events = %d, want 0", st.Failed)
	}
	if h.Doc(tree.Topic(lang, "t1"))["hasPendingSubmissions"] != true {
		t.Errorf("derived state not written after dropped notification")
	}
}

func TestHandler_LocksFeedback(t *testing.T) {
	h := setup(t)
	h.Set(tree.Card(lang, "A", "c1"), testutil.Card(""))
	h.Set(tree.Card(lang, "A", "c2"), testutil.Card(""))
	h.Set(tree.Feedback(lang, "A", "c1", "f1"), testutil.AuthorComment("one"))
	h.Set(tree.Feedback(lang, "A", "c2", "f2"), testutil.ReviewerComment("two", 0))

	h.Update(tree.Resource(lang, "A"), docstore.Data{"status": models.StatusAwaitingReview})

	for _, p := range []string{tree.Feedback(lang, "A", "c1", "f1"), tree.Feedback(lang, "A", "c2", "f2")} {
		if h.Doc(p)["locked"] != true {
			t.Errorf("%s not locked", p)
		}
	}
	if _, ok := h.Doc(tree.Card(lang, "A", "c2"))["feedbackPreviewComment"]; ok {
		t.Errorf("preview not cleared on submit")
	}
}

func TestHandler_SameStatusIgnored(t *testing.T) {
	h := setup(t)
	h.Update(tree.Resource(lang, "A"), docstore.Data{"name": "Renamed"})
	if got := h.Notifier.Sent(); len(got) != 0 {
		t.Errorf("notifications on a non-status edit: %+v", got)
	}
}
