package userstore

import (
	"context"
	"fmt"
	"strings"

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

// Decode builds a User from a document body; false for an absent snapshot.
func Decode(id string, data docstore.Data) (models.User, bool, error) {
	if data == nil {
		return models.User{}, false, nil
	}
	var u models.User
	if err := docstore.Decode(data, &u); err != nil {
		return models.User{}, false, err
	}
	u.ID = id
	return u, true, nil
}

// GetByID loads a user or returns docstore.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (models.User, error) {
	d, err := s.db.Get(ctx, tree.User(id))
	if err != nil {
		return models.User{}, err
	}
	u, _, err := Decode(id, d.Data)
	return u, err
}

// ListReviewersWatching returns the admins and moderators subscribed to subjectID.
func (s *Store) ListReviewersWatching(ctx context.Context, subjectID string) ([]models.User, error) {
	if !tree.ValidID(subjectID) {
		return nil, fmt.Errorf("%w: %q", tree.ErrInvalidID, subjectID)
	}
	docs, err := s.db.Query(ctx, docstore.Query{
		Collection: tree.Users(),
		Where: []docstore.Filter{
			docstore.Where("isAdminOrMod", docstore.Eq, true),
			docstore.Where("watchingSubjects."+subjectID, docstore.Eq, true),
		},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(docs))
	for _, d := range docs {
		u, _, err := Decode(tree.ID(d.Path), d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Tokens returns the non-empty registration tokens of users.
func Tokens(users []models.User) []string {
	var out []string
	for _, u := range users {
		if t := strings.TrimSpace(u.RegistrationToken); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SetWatching subscribes or unsubscribes a user from a subject
// (docstore.ErrNotFound when the user is gone).
func (s *Store) SetWatching(ctx context.Context, id, subjectID string, watching bool) error {
	if !tree.ValidID(subjectID) {
		return fmt.Errorf("%w: %q", tree.ErrInvalidID, subjectID)
	}
	var v any = true
	if !watching {
		v = docstore.DeleteField
	}
	return s.db.Update(ctx, tree.User(id), docstore.Data{"watchingSubjects." + subjectID: v})
}

// SetFields writes derived fields of a user (dotted names allowed;
// docstore.ErrNotFound when gone).
func (s *Store) SetFields(ctx context.Context, id string, fields docstore.Data) error {
	return s.db.Update(ctx, tree.User(id), fields)
}

// Profile is the identity-owned part of a user record. Nil fields are left
// untouched.
type Profile struct {
	DisplayName *string
	Email       *string
	PhoneNumber *string
}

// UpsertProfile creates or updates the profile of id with the present fields.
func (s *Store) UpsertProfile(ctx context.Context, id string, p Profile) error {
	fields := docstore.Data{}
	if p.DisplayName != nil {
		fields["displayName"] = *p.DisplayName
	}
	if p.Email != nil {
		fields["email"] = *p.Email
	}
	if p.PhoneNumber != nil {
		fields["phoneNumber"] = *p.PhoneNumber
	}
	return s.db.Merge(ctx, tree.User(id), fields)
}

// Delete removes the user record.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.Delete(ctx, tree.User(id))
}
