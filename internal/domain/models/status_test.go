package models

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{"", StatusDraft, true},
		{StatusDraft, StatusAwaitingReview, true},
		{StatusAwaitingReview, StatusPublished, true},
		{StatusAwaitingReview, StatusChangesRequested, true},
		{StatusPublished, StatusAwaitingReview, true},
		{StatusChangesRequested, StatusAwaitingReview, true},
		{StatusDraft, StatusPublished, false},
		{StatusChangesRequested, StatusPublished, false},
		{StatusPublished, StatusPublished, false},
		{StatusPublished, StatusDraft, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsAwaitingOrChangesRequested(t *testing.T) {
	for status, want := range map[string]bool{
		StatusDraft:            false,
		StatusAwaitingReview:   true,
		StatusChangesRequested: true,
		StatusPublished:        false,
	} {
		if got := IsAwaitingOrChangesRequested(status); got != want {
			t.Errorf("IsAwaitingOrChangesRequested(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestHeaderOf(t *testing.T) {
	r := Resource{
		ID:           "r1",
		ResourceType: ResourceTypeLesson,
		Name:         "Fractions",
		AuthorID:     "u1",
		AuthorName:   "Ada",
		Topic:        "t1",
		Subtopic:     "s1",
		SubjectName:  "Math",
		IsFeatured:   true,
		Status:       StatusPublished,
	}
	h := HeaderOf(r)
	if h.Resource != "r1" || h.Name != "Fractions" || !h.IsFeatured || h.Subtopic != "s1" {
		t.Errorf("unexpected header: %+v", h)
	}
	f := h.Fields()
	if _, ok := f["dateEdited"]; ok {
		t.Error("expected zero dateEdited to be omitted")
	}
	if f["subjectName"] != "Math" {
		t.Errorf("subjectName: got %v", f["subjectName"])
	}
	if _, ok := f["authorEmail"]; ok {
		t.Error("expected empty authorEmail to be omitted")
	}
}
