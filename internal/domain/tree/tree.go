// Package tree defines the document path layout of the content tree.
//
// Paths alternate collection and document segments:
//
//	languages/{lang}/resources/{resourceId}/cards/{cardId}/feedback/{commentId}
//
// The Pattern constants are the dispatch patterns matching each document kind.
package tree

import (
	"errors"
	"strings"
)

// ErrInvalidID is returned for an id that cannot be used as a path segment
// or as a key inside a dotted field name.
var ErrInvalidID = errors.New("tree: invalid id")

// Dispatch patterns. Wildcards match exactly one segment.
const (
	ResourcePattern       = "languages/{lang}/resources/{resourceId}"
	CardPattern           = "languages/{lang}/resources/{resourceId}/cards/{cardId}"
	FeedbackPattern       = "languages/{lang}/resources/{resourceId}/cards/{cardId}/feedback/{commentId}"
	TopicPattern          = "languages/{lang}/topics/{topicId}"
	SubtopicPattern       = "languages/{lang}/subtopics/{subtopicId}"
	SubjectPattern        = "languages/{lang}/subjects/{subjectId}"
	SyllabusLessonPattern = "languages/{lang}/syllabus_lessons/{lessonId}"
	HeaderPattern         = "languages/{lang}/resource_headers/{resourceId}"
	FeaturedPattern       = "languages/{lang}/featured_headers/{subtopicId}"
	UserPattern           = "users/{userId}"
)

func join(parts ...string) string {
	return strings.Join(parts, "/")
}

// Resources is the collection path of resources in lang.
func Resources(lang string) string { return join("languages", lang, "resources") }

// Resource is the path of one resource.
func Resource(lang, id string) string { return join(Resources(lang), id) }

// Cards is the collection path of a resource's cards.
func Cards(lang, resourceID string) string { return join(Resource(lang, resourceID), "cards") }

// Card is the path of one card.
func Card(lang, resourceID, cardID string) string { return join(Cards(lang, resourceID), cardID) }

// FeedbackOf is the collection path of a card's feedback comments.
func FeedbackOf(lang, resourceID, cardID string) string {
	return join(Card(lang, resourceID, cardID), "feedback")
}

// Feedback is the path of one feedback comment.
func Feedback(lang, resourceID, cardID, commentID string) string {
	return join(FeedbackOf(lang, resourceID, cardID), commentID)
}

// Topics is the collection path of topics in lang.
func Topics(lang string) string { return join("languages", lang, "topics") }

// Topic is the path of one topic.
func Topic(lang, id string) string { return join(Topics(lang), id) }

// Subtopics is the collection path of subtopics in lang.
func Subtopics(lang string) string { return join("languages", lang, "subtopics") }

// Subtopic is the path of one subtopic.
func Subtopic(lang, id string) string { return join(Subtopics(lang), id) }

// Subjects is the collection path of subjects in lang.
func Subjects(lang string) string { return join("languages", lang, "subjects") }

// Subject is the path of one subject.
func Subject(lang, id string) string { return join(Subjects(lang), id) }

// SyllabusLessons is the collection path of syllabus lessons in lang.
func SyllabusLessons(lang string) string { return join("languages", lang, "syllabus_lessons") }

// SyllabusLesson is the path of one syllabus lesson.
func SyllabusLesson(lang, id string) string { return join(SyllabusLessons(lang), id) }

// Headers is the collection path of resource headers in lang.
func Headers(lang string) string { return join("languages", lang, "resource_headers") }

// Header is the path of the header projected from one resource.
func Header(lang, resourceID string) string { return join(Headers(lang), resourceID) }

// FeaturedHeaders is the collection path of featured projections in lang.
func FeaturedHeaders(lang string) string { return join("languages", lang, "featured_headers") }

// FeaturedHeader is the path of the featured projection of one subtopic.
func FeaturedHeader(lang, subtopicID string) string { return join(FeaturedHeaders(lang), subtopicID) }

// Users is the collection path of user profiles.
func Users() string { return "users" }

// User is the path of one user profile.
func User(id string) string { return join(Users(), id) }

// ID returns the last segment of a document path.
func ID(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ValidID reports whether id can name a path segment. Ids end up as keys of
// dotted field names ("watchingSubjects.{id}"), so "." and a leading "$" are
// rejected along with "/".
func ValidID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/.") && !strings.HasPrefix(id, "$")
}

// IsDocument reports whether path names a document: an even number of
// segments, each a valid id.
func IsDocument(path string) bool {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 0 {
		return false
	}
	for _, s := range segs {
		if !ValidID(s) {
			return false
		}
	}
	return true
}

// Parent returns the collection path containing the document at path.
func Parent(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}

// CollectionName returns the name of the collection holding the document at
// path ("cards" for a card path).
func CollectionName(path string) string {
	return ID(Parent(path))
}

// ResourceNamespace is the attachment storage prefix owned by a resource.
func ResourceNamespace(authorID, resourceID string) string {
	return authorID + "/" + resourceID + "/"
}

// CardNamespace is the attachment storage prefix owned by a card.
func CardNamespace(authorID, resourceID, cardID string) string {
	return authorID + "/" + resourceID + "/" + cardID + "/"
}
