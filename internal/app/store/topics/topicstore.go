// internal/app/store/topics/topicstore.go
package topicstore

import (
	"context"
	"fmt"

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

// Decode builds a Topic from a document body; false for an absent snapshot.
func Decode(id string, data docstore.Data) (models.Topic, bool, error) {
	if data == nil {
		return models.Topic{}, false, nil
	}
	var t models.Topic
	if err := docstore.Decode(data, &t); err != nil {
		return models.Topic{}, false, err
	}
	t.ID = id
	return t, true, nil
}

// GetByID loads a topic or returns docstore.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, lang, id string) (models.Topic, error) {
	d, err := s.db.Get(ctx, tree.Topic(lang, id))
	if err != nil {
		return models.Topic{}, err
	}
	t, _, err := Decode(id, d.Data)
	return t, err
}

// CountReferencing counts the topics whose syllabus_lessons map has lessonID set.
func (s *Store) CountReferencing(ctx context.Context, lang, lessonID string) (int64, error) {
	if !tree.ValidID(lessonID) {
		return 0, fmt.Errorf("%w: %q", tree.ErrInvalidID, lessonID)
	}
	return s.db.Count(ctx, docstore.Query{
		Collection: tree.Topics(lang),
		Where:      []docstore.Filter{docstore.Where("syllabus_lessons."+lessonID, docstore.Eq, true)},
	})
}

// SetPending writes hasPendingSubmissions (docstore.ErrNotFound when gone).
func (s *Store) SetPending(ctx context.Context, lang, id string, pending bool) error {
	return s.db.Update(ctx, tree.Topic(lang, id), docstore.Data{"hasPendingSubmissions": pending})
}

// SetFeaturedSubtopicCount writes featuredSubtopicCount (docstore.ErrNotFound when gone).
func (s *Store) SetFeaturedSubtopicCount(ctx context.Context, lang, id string, n int64) error {
	return s.db.Update(ctx, tree.Topic(lang, id), docstore.Data{"featuredSubtopicCount": n})
}
