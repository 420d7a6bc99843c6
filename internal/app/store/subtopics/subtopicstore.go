// internal/app/store/subtopics/subtopicstore.go
package subtopicstore

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

// Decode builds a Subtopic from a document body; false for an absent snapshot.
func Decode(id string, data docstore.Data) (models.Subtopic, bool, error) {
	if data == nil {
		return models.Subtopic{}, false, nil
	}
	var st models.Subtopic
	if err := docstore.Decode(data, &st); err != nil {
		return models.Subtopic{}, false, err
	}
	st.ID = id
	return st, true, nil
}

// GetByID loads a subtopic or returns docstore.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, lang, id string) (models.Subtopic, error) {
	d, err := s.db.Get(ctx, tree.Subtopic(lang, id))
	if err != nil {
		return models.Subtopic{}, err
	}
	st, _, err := Decode(id, d.Data)
	return st, err
}
