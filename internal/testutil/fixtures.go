package testutil

import (
	"time"

	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/domain/models"
)

// Lang is the language scope used by fixtures.
const Lang = "en"

// Epoch is a fixed timestamp fixtures offset from.
var Epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Lesson returns the body of a lesson authored by "author1".
func Lesson(topic, subtopic, status string) docstore.Data {
	return docstore.Data{
		"resourceType": models.ResourceTypeLesson,
		"status":       status,
		"isFeatured":   false,
		"topic":        topic,
		"subtopic":     subtopic,
		"name":         "Lesson in " + subtopic,
		"subject":      "subj1",
		"subjectName":  "Science",
		"authorId":     "author1",
		"authorName":   "Test Author",
		"dateUpdated":  Epoch,
	}
}

// Featured returns a copy of data with isFeatured set.
func Featured(data docstore.Data) docstore.Data {
	out := docstore.NormalizeData(data)
	out["isFeatured"] = true
	return out
}

// Topic returns a topic body.
func Topic(name string, lessons ...string) docstore.Data {
	d := docstore.Data{"name": name, "hasPendingSubmissions": false}
	if len(lessons) > 0 {
		d["syllabus_lessons"] = set(lessons)
	}
	return d
}

// Subtopic returns a subtopic body under topic.
func Subtopic(topic string, lessons ...string) docstore.Data {
	d := docstore.Data{"name": "Subtopic of " + topic, "topic": topic}
	if len(lessons) > 0 {
		d["syllabus_lessons"] = set(lessons)
	}
	return d
}

// Card returns a card body, with an attachment when path is non-empty.
func Card(path string) docstore.Data {
	d := docstore.Data{"title": "Card"}
	if path != "" {
		d["attachmentPath"] = path
	}
	return d
}

// ReviewerComment returns an unlocked reviewer comment updated at offset
// after Epoch.
func ReviewerComment(text string, offset time.Duration) docstore.Data {
	return docstore.Data{
		"reviewerComment": true,
		"locked":          false,
		"commentText":     text,
		"authorId":        "mod1",
		"dateUpdated":     Epoch.Add(offset),
	}
}

// AuthorComment returns an author comment.
func AuthorComment(text string) docstore.Data {
	return docstore.Data{
		"reviewerComment": false,
		"locked":          false,
		"commentText":     text,
		"authorId":        "author1",
		"dateUpdated":     Epoch,
	}
}

// User returns a user body with the given role and device token.
func User(role, token string) docstore.Data {
	d := docstore.Data{"displayName": role + " user", "role": role}
	if token != "" {
		d["registrationToken"] = token
	}
	return d
}

func set(ids []string) map[string]any {
	m := make(map[string]any, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
