package tree

import "testing"

func TestPaths(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"resource", Resource("en", "r1"), "languages/en/resources/r1"},
		{"card", Card("en", "r1", "c1"), "languages/en/resources/r1/cards/c1"},
		{"feedback", Feedback("en", "r1", "c1", "f1"), "languages/en/resources/r1/cards/c1/feedback/f1"},
		{"header", Header("en", "r1"), "languages/en/resource_headers/r1"},
		{"featured", FeaturedHeader("en", "s1"), "languages/en/featured_headers/s1"},
		{"user", User("u1"), "users/u1"},
		{"resource namespace", ResourceNamespace("u1", "r1"), "u1/r1/"},
		{"card namespace", CardNamespace("u1", "r1", "c1"), "u1/r1/c1/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestIDParentCollection(t *testing.T) {
	p := Card("en", "r1", "c1")
	if got := ID(p); got != "c1" {
		t.Errorf("ID: got %q, want %q", got, "c1")
	}
	if got := Parent(p); got != "languages/en/resources/r1/cards" {
		t.Errorf("Parent: got %q", got)
	}
	if got := CollectionName(p); got != "cards" {
		t.Errorf("CollectionName: got %q, want %q", got, "cards")
	}
	if got := CollectionName(User("u1")); got != "users" {
		t.Errorf("CollectionName(user): got %q, want %q", got, "users")
	}
	if got := Parent("users"); got != "" {
		t.Errorf("Parent(root): got %q, want empty", got)
	}
}

func TestIsDocument(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"users/u1", true},
		{"languages/en/resources/r1", true},
		{"languages/en/resources/r1/cards/c1", true},
		{"languages/en/resources", false},
		{"users", false},
		{"", false},
		{"users//", false},
		{"languages/en/resources/", false},
		{"users/u.1", false},
		{"users/$u1", false},
	}
	for _, tt := range tests {
		if got := IsDocument(tt.path); got != tt.want {
			t.Errorf("IsDocument(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"u1", true},
		{"lesson-42_b", true},
		{"a$b", true},
		{"", false},
		{"a.b", false},
		{"a/b", false},
		{"$set", false},
	}
	for _, tt := range tests {
		if got := ValidID(tt.id); got != tt.want {
			t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
