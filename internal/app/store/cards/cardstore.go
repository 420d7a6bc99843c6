// internal/app/store/cards/cardstore.go
package cardstore

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

// Decode builds a Card from a document body; false for an absent snapshot.
func Decode(lang, resourceID, id string, data docstore.Data) (models.Card, bool, error) {
	if data == nil {
		return models.Card{}, false, nil
	}
	var c models.Card
	if err := docstore.Decode(data, &c); err != nil {
		return models.Card{}, false, err
	}
	c.ID, c.ResourceID, c.Lang = id, resourceID, lang
	return c, true, nil
}

// GetByID loads one card or returns docstore.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, lang, resourceID, id string) (models.Card, error) {
	d, err := s.db.Get(ctx, tree.Card(lang, resourceID, id))
	if err != nil {
		return models.Card{}, err
	}
	c, _, err := Decode(lang, resourceID, id, d.Data)
	return c, err
}

// ListByResource returns the cards of a resource ordered by id.
func (s *Store) ListByResource(ctx context.Context, lang, resourceID string) ([]models.Card, error) {
	docs, err := s.db.Query(ctx, docstore.Query{Collection: tree.Cards(lang, resourceID)})
	if err != nil {
		return nil, err
	}
	out := make([]models.Card, 0, len(docs))
	for _, d := range docs {
		c, _, err := Decode(lang, resourceID, tree.ID(d.Path), d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SetFields partially updates a card (docstore.ErrNotFound when gone).
func (s *Store) SetFields(ctx context.Context, lang, resourceID, id string, fields docstore.Data) error {
	return s.db.Update(ctx, tree.Card(lang, resourceID, id), fields)
}

// ClearPreview removes the feedback preview fields.
func (s *Store) ClearPreview(ctx context.Context, lang, resourceID, id string) error {
	return s.SetFields(ctx, lang, resourceID, id, docstore.Data{
		"feedbackPreviewComment":     docstore.DeleteField,
		"feedbackPreviewCommentPath": docstore.DeleteField,
	})
}

// Delete removes a card document only; its feedback is deleted separately.
func (s *Store) Delete(ctx context.Context, lang, resourceID, id string) error {
	return s.db.Delete(ctx, tree.Card(lang, resourceID, id))
}
