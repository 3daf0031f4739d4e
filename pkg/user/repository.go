package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ExternalIDField identifies which provider-specific column keys a user row.
// Exactly one external ID column is populated per user, determined by the
// provider that authenticated them.
type ExternalIDField string

const (
	FieldGoogleID    ExternalIDField = "google_id"
	FieldAuthentikID ExternalIDField = "authentik_id"
)

// User represents an end user identified by an external OIDC provider
type User struct {
	ID          uuid.UUID `json:"id"`
	GoogleID    string    `json:"google_id,omitempty"`
	AuthentikID string    `json:"authentik_id,omitempty"`
	Email       string    `json:"email"`
	Picture     string    `json:"picture,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExternalID returns the value of the given external ID field
func (u User) ExternalID(field ExternalIDField) string {
	switch field {
	case FieldGoogleID:
		return u.GoogleID
	case FieldAuthentikID:
		return u.AuthentikID
	}
	return ""
}

// ErrNotFound indicates no user row matched the lookup
var ErrNotFound = errors.New("user not found")

// UpsertParams carries the identity of a successful external login.
// Field and ExternalID are the sole matching key; a user row is never
// matched on email alone.
type UpsertParams struct {
	Field      ExternalIDField
	ExternalID string
	Email      string
	Picture    string
}

// Repository defines the interface for user storage operations
type Repository interface {
	// UpsertByExternalID finds the user keyed on the given external ID
	// field, creating the row when absent. Email and picture are refreshed
	// on every call since profile drift between logins is expected.
	UpsertByExternalID(ctx context.Context, params UpsertParams) (User, error)

	// GetByExternalID returns the user keyed on the given external ID field.
	// Returns ErrNotFound when no row matches.
	GetByExternalID(ctx context.Context, field ExternalIDField, externalID string) (User, error)

	// GetByID returns the user with the given primary key.
	// Returns ErrNotFound when no row matches.
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
}
