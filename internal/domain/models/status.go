// internal/domain/models/status.go
package models

// Review workflow states stored in Resource.Status.
const (
	StatusDraft            = "draft"
	StatusAwaitingReview   = "awaiting review"
	StatusChangesRequested = "changes requested"
	StatusPublished        = "published"
)

// transitions is the review state machine. The empty state is the origin of a
// newly created resource.
var transitions = map[string][]string{
	"":                     {StatusDraft, StatusAwaitingReview},
	StatusDraft:            {StatusAwaitingReview},
	StatusAwaitingReview:   {StatusPublished, StatusChangesRequested},
	StatusPublished:        {StatusAwaitingReview},
	StatusChangesRequested: {StatusAwaitingReview},
}

// CanTransition reports whether from -> to is an edge of the review state
// machine. Equal states are not a transition.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidStatus reports whether s is one of the known review states.
func IsValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusAwaitingReview, StatusChangesRequested, StatusPublished:
		return true
	}
	return false
}

// IsAwaitingOrChangesRequested is the value of the derived
// isAwaitingReviewOrHasChangesRequested flag for status s.
func IsAwaitingOrChangesRequested(s string) bool {
	return s == StatusAwaitingReview || s == StatusChangesRequested
}
