package changes

import (
	"context"
	"reflect"
	"testing"

	"github.com/dalemusser/lessonsync/internal/app/docstore"
)

func TestKind(t *testing.T) {
	doc := docstore.Data{"a": 1}
	tests := []struct {
		name   string
		change Change
		want   Kind
	}{
		{"create", New("x/1", nil, doc, 0), KindCreate},
		{"update", New("x/1", doc, doc, 0), KindUpdate},
		{"delete", New("x/1", doc, nil, 0), KindDelete},
		{"invalid", New("x/1", nil, nil, 0), KindInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.change.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChangedFields(t *testing.T) {
	before := docstore.NormalizeData(docstore.Data{"status": "draft", "name": "A", "gone": true})
	after := docstore.NormalizeData(docstore.Data{"status": "published", "name": "A", "new": 1})

	got := ChangedFields(before, after)
	want := []string{"gone", "new", "status"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ChangedFields = %v, want %v", got, want)
	}
}

func TestChangedAndOnlyChanged(t *testing.T) {
	c := New("x/1",
		docstore.Data{"locked": false, "commentText": "hi", "m": map[string]bool{"a": true}},
		docstore.Data{"locked": true, "commentText": "hi", "m": map[string]bool{"a": true}},
		0)

	if !c.Changed("locked") {
		t.Error("expected locked to be changed")
	}
	if c.Changed("commentText") {
		t.Error("expected commentText to be unchanged")
	}
	if c.Changed("m.a") {
		t.Error("expected nested m.a to be unchanged")
	}
	if !c.OnlyChanged("locked") {
		t.Error("expected OnlyChanged(locked) to hold")
	}
	if c.OnlyChanged("commentText") {
		t.Error("expected OnlyChanged(commentText) to fail")
	}

	create := New("x/1", nil, docstore.Data{"locked": true}, 0)
	if create.OnlyChanged("locked") {
		t.Error("expected create never to be OnlyChanged")
	}
}

func TestFingerprint(t *testing.T) {
	a := New("x/1", nil, docstore.Data{"a": 1, "b": "two"}, 0)
	b := New("x/1", nil, docstore.Data{"b": "two", "a": 1}, 3)
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("expected equal content to share a fingerprint")
	}
	if a.ID == b.ID {
		t.Error("expected distinct ids")
	}
	c := New("x/2", nil, docstore.Data{"a": 1, "b": "two"}, 0)
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("expected different paths to differ")
	}
}

func TestHopContext(t *testing.T) {
	ctx := context.Background()
	if HopFrom(ctx) != 0 {
		t.Error("expected zero hop on bare context")
	}
	if got := HopFrom(WithHop(ctx, 2)); got != 2 {
		t.Errorf("HopFrom = %d, want 2", got)
	}
}
