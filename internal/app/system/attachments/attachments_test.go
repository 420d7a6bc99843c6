package attachments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 serves a fixed object set and pages listings two keys at a time.
type fakeS3 struct {
	objects map[string]time.Time
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	at, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentType:   aws.String("image/png"),
		ContentLength: aws.Int64(42),
		LastModified:  aws.Time(at),
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	for _, id := range in.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	if len(keys) > 2 {
		keys = keys[:2]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3Metadata(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	s := NewS3WithClient(&fakeS3{objects: map[string]time.Time{"a/r/c/x.png": at}}, "bucket")
	ctx := context.Background()

	md, err := s.Metadata(ctx, "a/r/c/x.png")
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if md.ContentType != "image/png" || md.SizeBytes != 42 || !md.CreatedAt.Equal(at) {
		t.Errorf("metadata = %+v", md)
	}
	if _, err := s.Metadata(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing object: err = %v, want ErrNotFound", err)
	}
}

func TestS3DeletePrefixPaginates(t *testing.T) {
	fake := &fakeS3{objects: map[string]time.Time{
		"a/r/1": {}, "a/r/2": {}, "a/r/c/3": {}, "a/r/c/4": {}, "a/r/c/5": {}, "a/other/6": {},
	}}
	s := NewS3WithClient(fake, "bucket")

	n, err := s.DeletePrefix(context.Background(), "a/r/")
	if err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if n != 5 {
		t.Errorf("deleted %d, want 5", n)
	}
	if len(fake.objects) != 1 {
		t.Errorf("remaining = %v", fake.objects)
	}
}

func TestMemoryDeletePrefix(t *testing.T) {
	m := NewMemory()
	m.Put("a/r1/c1/x", Metadata{})
	m.Put("a/r1/y", Metadata{})
	m.Put("a/r10/z", Metadata{})

	n, err := m.DeletePrefix(context.Background(), "a/r1/")
	if err != nil || n != 2 {
		t.Fatalf("DeletePrefix = %d, %v; want 2", n, err)
	}
	if got := m.Paths(""); len(got) != 1 || got[0] != "a/r10/z" {
		t.Fatalf("remaining = %v", got)
	}
}

func TestDisabled(t *testing.T) {
	var s Store = Disabled{}
	if _, err := s.Metadata(t.Context(), "a/r/c/x.png"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Metadata err = %v, want ErrDisabled", err)
	}
	if err := s.Delete(t.Context(), "a/r/c/x.png"); err != nil {
		t.Errorf("Delete: %v", err)
	}
	if n, err := s.DeletePrefix(t.Context(), "a/r/"); n != 0 || err != nil {
		t.Errorf("DeletePrefix = %d, %v", n, err)
	}
}
