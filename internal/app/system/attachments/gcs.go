package attachments

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCS stores attachments in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewGCS opens a bucket using application default credentials.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCS{client: client, bucket: client.Bucket(bucket)}, nil
}

func (g *GCS) Metadata(ctx context.Context, path string) (Metadata, error) {
	attrs, err := g.bucket.Object(path).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return Metadata{}, ErrNotFound
	}
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		ContentType: attrs.ContentType,
		SizeBytes:   attrs.Size,
		CreatedAt:   attrs.Created.UTC(),
	}, nil
}

func (g *GCS) Delete(ctx context.Context, path string) error {
	err := g.bucket.Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *GCS) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	n := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := g.Delete(ctx, attrs.Name); err != nil {
			return n, fmt.Errorf("delete %s: %w", attrs.Name, err)
		}
		n++
	}
}

// Close releases the client.
func (g *GCS) Close() error {
	return g.client.Close()
}
