// internal/app/store/feedback/feedbackstore.go
package feedbackstore

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

func decode(d docstore.Doc) (models.Feedback, error) {
	var f models.Feedback
	if err := docstore.Decode(d.Data, &f); err != nil {
		return models.Feedback{}, err
	}
	f.ID = tree.ID(d.Path)
	f.Path = d.Path
	return f, nil
}

// ListByCard returns every comment of a card ordered by path.
func (s *Store) ListByCard(ctx context.Context, lang, resourceID, cardID string) ([]models.Feedback, error) {
	return s.find(ctx, docstore.Query{Collection: tree.FeedbackOf(lang, resourceID, cardID)})
}

// LatestUnlockedReviewerComment returns the most recently updated reviewer
// comment that is not locked. Ties on dateUpdated resolve by path.
func (s *Store) LatestUnlockedReviewerComment(ctx context.Context, lang, resourceID, cardID string) (models.Feedback, bool, error) {
	out, err := s.find(ctx, docstore.Query{
		Collection: tree.FeedbackOf(lang, resourceID, cardID),
		Where: []docstore.Filter{
			docstore.Where("reviewerComment", docstore.Eq, true),
			docstore.Where("locked", docstore.Ne, true),
		},
		OrderBy:    "dateUpdated",
		Descending: true,
		Limit:      1,
	})
	if err != nil || len(out) == 0 {
		return models.Feedback{}, false, err
	}
	return out[0], true, nil
}

// Lock sets locked on a comment. A comment deleted meanwhile is skipped.
func (s *Store) Lock(ctx context.Context, path string) error {
	err := s.db.Update(ctx, path, docstore.Data{"locked": true})
	if docstore.IsNotFound(err) {
		return nil
	}
	return err
}

// Delete removes one comment.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.db.Delete(ctx, path)
}

func (s *Store) find(ctx context.Context, q docstore.Query) ([]models.Feedback, error) {
	docs, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.Feedback, 0, len(docs))
	for _, d := range docs {
		f, err := decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
