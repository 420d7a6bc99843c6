// internal/domain/models/hierarchy.go
package models

// Topic groups subtopics. Topics reference syllabus lessons through an
// authored map; the flags and counts are derived.
type Topic struct {
	ID   string `bson:"-" json:"id"`
	Name string `bson:"name,omitempty" json:"name,omitempty"`

	SyllabusLessons map[string]bool `bson:"syllabus_lessons,omitempty" json:"syllabus_lessons,omitempty"`

	// Derived.
	HasPendingSubmissions bool  `bson:"hasPendingSubmissions" json:"hasPendingSubmissions"`
	FeaturedSubtopicCount int64 `bson:"featuredSubtopicCount" json:"featuredSubtopicCount"`
}

// Subtopic belongs to a topic and carries the authored syllabus association
// that is copied onto its lessons.
type Subtopic struct {
	ID    string `bson:"-" json:"id"`
	Name  string `bson:"name,omitempty" json:"name,omitempty"`
	Topic string `bson:"topic,omitempty" json:"topic,omitempty"`

	SyllabusLessons map[string]bool `bson:"syllabus_lessons,omitempty" json:"syllabus_lessons,omitempty"`
}

// Subject is the top of the hierarchy. Moderators are keyed by user id.
type Subject struct {
	ID         string          `bson:"-" json:"id"`
	Name       string          `bson:"name,omitempty" json:"name,omitempty"`
	Moderators map[string]bool `bson:"moderators,omitempty" json:"moderators,omitempty"`
}

// SyllabusLesson is a cross-cutting catalog node referenced by topics.
type SyllabusLesson struct {
	ID   string `bson:"-" json:"id"`
	Name string `bson:"name,omitempty" json:"name,omitempty"`

	// Derived.
	TopicCount int64 `bson:"topicCount" json:"topicCount"`
}
