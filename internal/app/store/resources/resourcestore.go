// internal/app/store/resources/resourcestore.go
package resourcestore

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

// Decode builds a Resource from a document body. It returns false for an
// absent snapshot.
func Decode(lang, id string, data docstore.Data) (models.Resource, bool, error) {
	if data == nil {
		return models.Resource{}, false, nil
	}
	var r models.Resource
	if err := docstore.Decode(data, &r); err != nil {
		return models.Resource{}, false, err
	}
	r.ID = id
	r.Lang = lang
	return r, true, nil
}

// GetByID loads a resource. It returns docstore.ErrNotFound when absent.
func (s *Store) GetByID(ctx context.Context, lang, id string) (models.Resource, error) {
	d, err := s.db.Get(ctx, tree.Resource(lang, id))
	if err != nil {
		return models.Resource{}, err
	}
	r, _, err := Decode(lang, id, d.Data)
	return r, err
}

// ListGroup returns the resources of group g ordered by id. A non-empty
// status narrows the result.
func (s *Store) ListGroup(ctx context.Context, g models.Group, status string) ([]models.Resource, error) {
	where := groupFilters(g)
	if status != "" {
		where = append(where, docstore.Where("status", docstore.Eq, status))
	}
	return s.find(ctx, g.Lang, where)
}

// ListFeatured returns the resources of g with isFeatured set, in any status.
func (s *Store) ListFeatured(ctx context.Context, g models.Group) ([]models.Resource, error) {
	where := append(groupFilters(g), docstore.Where("isFeatured", docstore.Eq, true))
	return s.find(ctx, g.Lang, where)
}

// CountPublished counts the published resources of g.
func (s *Store) CountPublished(ctx context.Context, g models.Group) (int64, error) {
	where := append(groupFilters(g), docstore.Where("status", docstore.Eq, models.StatusPublished))
	return s.db.Count(ctx, docstore.Query{Collection: tree.Resources(g.Lang), Where: where})
}

// CountAwaitingReview counts the resources under topic awaiting review.
func (s *Store) CountAwaitingReview(ctx context.Context, lang, topic string) (int64, error) {
	return s.db.Count(ctx, docstore.Query{
		Collection: tree.Resources(lang),
		Where: []docstore.Filter{
			docstore.Where("topic", docstore.Eq, topic),
			docstore.Where("status", docstore.Eq, models.StatusAwaitingReview),
		},
	})
}

// ListLessonsBySubtopic returns every lesson filed under subtopic.
func (s *Store) ListLessonsBySubtopic(ctx context.Context, lang, subtopic string) ([]models.Resource, error) {
	return s.find(ctx, lang, []docstore.Filter{
		docstore.Where("subtopic", docstore.Eq, subtopic),
		docstore.Where("resourceType", docstore.Eq, models.ResourceTypeLesson),
	})
}

// SetFields partially updates a resource. It returns docstore.ErrNotFound
// when the resource is gone.
func (s *Store) SetFields(ctx context.Context, lang, id string, fields docstore.Data) error {
	return s.db.Update(ctx, tree.Resource(lang, id), fields)
}

func (s *Store) find(ctx context.Context, lang string, where []docstore.Filter) ([]models.Resource, error) {
	docs, err := s.db.Query(ctx, docstore.Query{Collection: tree.Resources(lang), Where: where})
	if err != nil {
		return nil, err
	}
	out := make([]models.Resource, 0, len(docs))
	for _, d := range docs {
		r, _, err := Decode(lang, tree.ID(d.Path), d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// groupFilters matches the group's subtopic, plus topic and type when set.
func groupFilters(g models.Group) []docstore.Filter {
	where := []docstore.Filter{docstore.Where("subtopic", docstore.Eq, g.Subtopic)}
	if g.Topic != "" {
		where = append(where, docstore.Where("topic", docstore.Eq, g.Topic))
	}
	if g.ResourceType != "" {
		where = append(where, docstore.Where("resourceType", docstore.Eq, g.ResourceType))
	}
	return where
}
