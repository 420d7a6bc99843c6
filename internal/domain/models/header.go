// internal/domain/models/header.go
package models

import "time"

// Header is the read-optimized copy of a Resource used for listings.
// It is keyed by the same id as its source.
type Header struct {
	Resource          string    `bson:"resource" json:"resource"`
	ResourceType      string    `bson:"resourceType,omitempty" json:"resourceType,omitempty"`
	AuthorID          string    `bson:"authorId,omitempty" json:"authorId,omitempty"`
	AuthorName        string    `bson:"authorName,omitempty" json:"authorName,omitempty"`
	AuthorEmail       string    `bson:"authorEmail,omitempty" json:"authorEmail,omitempty"`
	AuthorInstitution string    `bson:"authorInstitution,omitempty" json:"authorInstitution,omitempty"`
	AuthorLocation    string    `bson:"authorLocation,omitempty" json:"authorLocation,omitempty"`
	Name              string    `bson:"name,omitempty" json:"name,omitempty"`
	DateEdited        time.Time `bson:"dateEdited,omitempty" json:"dateEdited,omitempty"`
	IsFeatured        bool      `bson:"isFeatured" json:"isFeatured"`
	Topic             string    `bson:"topic,omitempty" json:"topic,omitempty"`
	Subtopic          string    `bson:"subtopic,omitempty" json:"subtopic,omitempty"`
	SubjectName       string    `bson:"subjectName,omitempty" json:"subjectName,omitempty"`
}

// HeaderOf projects the header subset of r.
func HeaderOf(r Resource) Header {
	return Header{
		Resource:          r.ID,
		ResourceType:      r.ResourceType,
		AuthorID:          r.AuthorID,
		AuthorName:        r.AuthorName,
		AuthorEmail:       r.AuthorEmail,
		AuthorInstitution: r.AuthorInstitution,
		AuthorLocation:    r.AuthorLocation,
		Name:              r.Name,
		DateEdited:        r.DateUpdated,
		IsFeatured:        r.IsFeatured,
		Topic:             r.Topic,
		Subtopic:          r.Subtopic,
		SubjectName:       r.SubjectName,
	}
}

// Fields returns the header as a document body.
func (h Header) Fields() map[string]any {
	m := map[string]any{
		"resource":   h.Resource,
		"isFeatured": h.IsFeatured,
	}
	putString(m, "resourceType", h.ResourceType)
	putString(m, "authorId", h.AuthorID)
	putString(m, "authorName", h.AuthorName)
	putString(m, "authorEmail", h.AuthorEmail)
	putString(m, "authorInstitution", h.AuthorInstitution)
	putString(m, "authorLocation", h.AuthorLocation)
	putString(m, "name", h.Name)
	putString(m, "topic", h.Topic)
	putString(m, "subtopic", h.Subtopic)
	putString(m, "subjectName", h.SubjectName)
	if !h.DateEdited.IsZero() {
		m["dateEdited"] = h.DateEdited
	}
	return m
}

// FeaturedHeader is the single featured projection per subtopic.
type FeaturedHeader struct {
	Header                  `bson:",inline"`
	SubtopicSubmissionCount int64 `bson:"subtopicSubmissionCount" json:"subtopicSubmissionCount"`
}

// Fields returns the featured projection as a document body.
func (f FeaturedHeader) Fields() map[string]any {
	m := f.Header.Fields()
	m["subtopicSubmissionCount"] = f.SubtopicSubmissionCount
	return m
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}
