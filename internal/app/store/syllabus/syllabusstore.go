// internal/app/store/syllabus/syllabusstore.go
package syllabusstore

import (
	"context"

	"github.com/dalemusser/lessonsync/internal/app/docstore"
	"github.com/dalemusser/lessonsync/internal/domain/tree"
)

type Store struct {
	db docstore.Store
}

func New(db docstore.Store) *Store {
	return &Store{db: db}
}

// SetTopicCount writes topicCount on a syllabus lesson (docstore.ErrNotFound when gone).
func (s *Store) SetTopicCount(ctx context.Context, lang, id string, n int64) error {
	return s.db.Update(ctx, tree.SyllabusLesson(lang, id), docstore.Data{"topicCount": n})
}
