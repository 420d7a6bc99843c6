// internal/domain/models/resource.go
package models

import (
	"time"
)

// Resource is an authored content item (a lesson or classroom item) living
// under a (language, topic, subtopic) scope.
//
// Authors own the content fields. The derived fields are written only by the
// sync maintainers and are recomputed from queries, never incremented.
type Resource struct {
	ID   string `bson:"-" json:"id"`
	Lang string `bson:"-" json:"lang"`

	ResourceType string `bson:"resourceType" json:"resourceType"` // lesson | classroom_resource | ...
	Status       string `bson:"status" json:"status"`             // draft | awaiting review | changes requested | published
	IsFeatured   bool   `bson:"isFeatured" json:"isFeatured"`

	Topic    string `bson:"topic,omitempty" json:"topic,omitempty"`
	Subtopic string `bson:"subtopic,omitempty" json:"subtopic,omitempty"`

	Name        string    `bson:"name,omitempty" json:"name,omitempty"`
	Subject     string    `bson:"subject,omitempty" json:"subject,omitempty"` // opaque subject id
	SubjectName string    `bson:"subjectName,omitempty" json:"subjectName,omitempty"`
	DateUpdated time.Time `bson:"dateUpdated,omitempty" json:"dateUpdated,omitempty"`

	AuthorID          string `bson:"authorId,omitempty" json:"authorId,omitempty"`
	AuthorName        string `bson:"authorName,omitempty" json:"authorName,omitempty"`
	AuthorEmail       string `bson:"authorEmail,omitempty" json:"authorEmail,omitempty"`
	AuthorInstitution string `bson:"authorInstitution,omitempty" json:"authorInstitution,omitempty"`
	AuthorLocation    string `bson:"authorLocation,omitempty" json:"authorLocation,omitempty"`

	// Derived.
	SubtopicSubmissionCount               int64           `bson:"subtopicSubmissionCount,omitempty" json:"subtopicSubmissionCount,omitempty"`
	IsAwaitingReviewOrHasChangesRequested bool            `bson:"isAwaitingReviewOrHasChangesRequested,omitempty" json:"isAwaitingReviewOrHasChangesRequested,omitempty"`
	SyllabusLessons                       map[string]bool `bson:"syllabus_lessons,omitempty" json:"syllabus_lessons,omitempty"`
}

// Group returns the featured-selection group this resource belongs to.
func (r Resource) Group() Group {
	return Group{Lang: r.Lang, Topic: r.Topic, Subtopic: r.Subtopic, ResourceType: r.ResourceType}
}

// IsLesson reports whether the resource is a lesson.
func (r Resource) IsLesson() bool {
	return r.ResourceType == ResourceTypeLesson
}

// IsPublished reports whether the resource is published.
func (r Resource) IsPublished() bool {
	return r.Status == StatusPublished
}

// Group identifies the set of sibling resources among which exactly one
// published item is featured.
type Group struct {
	Lang         string
	Topic        string
	Subtopic     string
	ResourceType string
}

// Valid reports whether the group carries enough identity to be queried.
func (g Group) Valid() bool {
	return g.Lang != "" && g.Subtopic != ""
}

// Lessons returns the lesson group sharing g's subtopic.
func (g Group) Lessons() Group {
	g.ResourceType = ResourceTypeLesson
	return g
}
