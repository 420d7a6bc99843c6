// internal/app/store/headers/headerstore.go
//
// Package headerstore reads and writes the read-optimized resource copies:
// one header per resource and one featured projection per subtopic.
package headerstore

import (
	"context"

	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/domain/models"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
)

type Store struct {
	db docstore.Store
}

func New(db docstore.Store) *Store {
	return &Store{db: db}
}

// DecodeHeader builds a Header from a document body; false when absent.
func DecodeHeader(data docstore.Data) (models.Header, bool, error) {
	if data == nil {
		return models.Header{}, false, nil
	}
	var h models.Header
	if err := docstore.Decode(data, &h); err != nil {
		return models.Header{}, false, err
	}
	return h, true, nil
}

// Get loads the header of resourceID or returns docstore.ErrNotFound.
func (s *Store) Get(ctx context.Context, lang, resourceID string) (models.Header, error) {
	d, err := s.db.Get(ctx, tree.Header(lang, resourceID))
	if err != nil {
		return models.Header{}, err
	}
	h, _, err := DecodeHeader(d.Data)
	return h, err
}

// Put replaces the header of resourceID.
func (s *Store) Put(ctx context.Context, lang, resourceID string, h models.Header) error {
	return s.db.Set(ctx, tree.Header(lang, resourceID), h.Fields())
}

// Delete removes the header of resourceID.
func (s *Store) Delete(ctx context.Context, lang, resourceID string) error {
	return s.db.Delete(ctx, tree.Header(lang, resourceID))
}

// GetFeatured loads the featured projection of a subtopic or returns
// docstore.ErrNotFound.
func (s *Store) GetFeatured(ctx context.Context, lang, subtopic string) (models.FeaturedHeader, error) {
	d, err := s.db.Get(ctx, tree.FeaturedHeader(lang, subtopic))
	if err != nil {
		return models.FeaturedHeader{}, err
	}
	var f models.FeaturedHeader
	if err := docstore.Decode(d.Data, &f); err != nil {
		return models.FeaturedHeader{}, err
	}
	return f, nil
}

// PutFeatured replaces the featured projection of a subtopic.
func (s *Store) PutFeatured(ctx context.Context, lang, subtopic string, f models.FeaturedHeader) error {
	return s.db.Set(ctx, tree.FeaturedHeader(lang, subtopic), f.Fields())
}

// SetFeaturedCount updates subtopicSubmissionCount on an existing projection.
func (s *Store) SetFeaturedCount(ctx context.Context, lang, subtopic string, n int64) error {
	return s.db.Update(ctx, tree.FeaturedHeader(lang, subtopic), docstore.Data{"subtopicSubmissionCount": n})
}

// DeleteFeatured removes the featured projection of a subtopic.
func (s *Store) DeleteFeatured(ctx context.Context, lang, subtopic string) error {
	return s.db.Delete(ctx, tree.FeaturedHeader(lang, subtopic))
}

// CountFeaturedInTopic counts the subtopics of topic that have a projection.
func (s *Store) CountFeaturedInTopic(ctx context.Context, lang, topic string) (int64, error) {
	return s.db.Count(ctx, docstore.Query{
		Collection: tree.FeaturedHeaders(lang),
		Where:      []docstore.Filter{docstore.Where("topic", docstore.Eq, topic)},
	})
}
