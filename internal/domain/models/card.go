// internal/domain/models/card.go
package models

import "time"

// Card is a child of a Resource. It may reference one stored attachment.
type Card struct {
	ID         string `bson:"-" json:"id"`
	ResourceID string `bson:"-" json:"resourceId"`
	Lang       string `bson:"-" json:"lang"`

	Title          string `bson:"title,omitempty" json:"title,omitempty"`
	Body           string `bson:"body,omitempty" json:"body,omitempty"`
	AttachmentPath string `bson:"attachmentPath,omitempty" json:"attachmentPath,omitempty"`

	// Derived.
	AttachmentMetadata         *AttachmentMetadata `bson:"attachmentMetadata,omitempty" json:"attachmentMetadata,omitempty"`
	FeedbackPreviewComment     string              `bson:"feedbackPreviewComment,omitempty" json:"feedbackPreviewComment,omitempty"`
	FeedbackPreviewCommentPath string              `bson:"feedbackPreviewCommentPath,omitempty" json:"feedbackPreviewCommentPath,omitempty"`
}

// AttachmentMetadata describes the stored object a card references.
type AttachmentMetadata struct {
	ContentType string    `bson:"contentType" json:"contentType"`
	SizeBytes   int64     `bson:"sizeBytes" json:"sizeBytes"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

// Feedback is a comment left on a card, by the author or by a reviewer.
type Feedback struct {
	ID   string `bson:"-" json:"id"`
	Path string `bson:"-" json:"path"`

	AuthorID        string    `bson:"authorId,omitempty" json:"authorId,omitempty"`
	ReviewerComment bool      `bson:"reviewerComment" json:"reviewerComment"`
	Locked          bool      `bson:"locked" json:"locked"`
	DateUpdated     time.Time `bson:"dateUpdated,omitempty" json:"dateUpdated,omitempty"`
	CommentText     string    `bson:"commentText,omitempty" json:"commentText,omitempty"`
}
