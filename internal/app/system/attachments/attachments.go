// Package attachments reads metadata of and deletes uploaded card files in
// object storage. Objects are keyed "{authorId}/{resourceId}/{cardId}/...".
package attachments

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Metadata when no object exists at the path.
var ErrNotFound = errors.New("attachments: object not found")

// ErrDisabled is returned by Metadata when no storage backend is configured.
var ErrDisabled = errors.New("attachments: storage disabled")

// Disabled is the Store used when attachments are not configured. Lookups
// report ErrDisabled and deletes do nothing.
type Disabled struct{}

func (Disabled) Metadata(context.Context, string) (Metadata, error) { return Metadata{}, ErrDisabled }
func (Disabled) Delete(context.Context, string) error               { return nil }
func (Disabled) DeletePrefix(context.Context, string) (int, error)  { return 0, nil }

// Metadata describes one stored object.
type Metadata struct {
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}

// Store is the attachment storage backend.
type Store interface {
	// Metadata returns the object's metadata or ErrNotFound.
	Metadata(ctx context.Context, path string) (Metadata, error)
	// Delete removes one object. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
	// DeletePrefix removes every object whose key starts with prefix and
	// returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
