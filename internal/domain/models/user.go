// internal/domain/models/user.go
package models

// Roles that may review submissions.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleAuthor    = "author"
)

// User is the mirrored profile of an identity account.
//
// WatchingSubjects is keyed by opaque subject id, never by display name.
type User struct {
	ID string `bson:"-" json:"id"`

	DisplayName       string `bson:"displayName,omitempty" json:"displayName,omitempty"`
	Email             string `bson:"email,omitempty" json:"email,omitempty"`
	PhoneNumber       string `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	Role              string `bson:"role,omitempty" json:"role,omitempty"`
	RegistrationToken string `bson:"registrationToken,omitempty" json:"registrationToken,omitempty"`

	// Derived.
	IsAdminOrMod     bool            `bson:"isAdminOrMod" json:"isAdminOrMod"`
	WatchingSubjects map[string]bool `bson:"watchingSubjects,omitempty" json:"watchingSubjects,omitempty"`
}

// IsReviewerRole reports whether role grants review rights.
func IsReviewerRole(role string) bool {
	return role == RoleAdmin || role == RoleModerator
}
