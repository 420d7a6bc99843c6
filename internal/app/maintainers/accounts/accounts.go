// Package accounts mirrors identity-provider account lifecycle events onto
// user profile records.
package accounts

import (
	"context"
	"errors"

	"github.com/dalemusser/lessonsync/internal/app/docstore"
	userstore "github.com/dalemusser/lessonsync/internal/app/store/users"
	"go.uber.org/zap"
)

// ErrMissingID rejects an account event without an account id.
var ErrMissingID = errors.New("accounts: account id is required")

// Account is the identity provider's view of a new account. Nil fields were
// not provided and are not written.
type Account struct {
	ID          string  `json:"id" validate:"required"`
	DisplayName *string `json:"displayName,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

type Mirror struct {
	users *userstore.Store
	log   *zap.Logger
}

func New(db docstore.Store, logger *zap.Logger) *Mirror {
	return &Mirror{users: userstore.New(db), log: logger}
}

// OnAccountCreated creates the user record, or merges the provided fields
// into an existing one.
func (m *Mirror) OnAccountCreated(ctx context.Context, a Account) error {
	if a.ID == "" {
		return ErrMissingID
	}
	err := m.users.UpsertProfile(ctx, a.ID, userstore.Profile{
		DisplayName: a.DisplayName,
		Email:       a.Email,
		PhoneNumber: a.PhoneNumber,
	})
	if err != nil {
		return err
	}
	m.log.Info("user profile created", zap.String("user", a.ID))
	return nil
}

// OnAccountDeleted removes the user record. Unknown ids are not an error.
func (m *Mirror) OnAccountDeleted(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	if err := m.users.Delete(ctx, id); err != nil {
		return err
	}
	m.log.Info("user profile deleted", zap.String("user", id))
	return nil
}
