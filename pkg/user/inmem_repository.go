package user

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemUserRepository implements Repository using an in-memory map
type InMemUserRepository struct {
	users map[uuid.UUID]User
	mu    sync.Mutex
}

// NewInMemUserRepository creates a new in-memory user repository
func NewInMemUserRepository() *InMemUserRepository {
	return &InMemUserRepository{
		users: make(map[uuid.UUID]User),
	}
}

// UpsertByExternalID finds or creates a user keyed on the external ID field
func (r *InMemUserRepository) UpsertByExternalID(ctx context.Context, params UpsertParams) (User, error) {
	if params.ExternalID == "" {
		return User{}, fmt.Errorf("external ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for id, u := range r.users {
		if u.ExternalID(params.Field) == params.ExternalID {
			u.Email = params.Email
			u.Picture = params.Picture
			u.UpdatedAt = now
			r.users[id] = u
			return u, nil
		}
	}

	u := User{
		ID:        uuid.New(),
		Email:     params.Email,
		Picture:   params.Picture,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch params.Field {
	case FieldGoogleID:
		u.GoogleID = params.ExternalID
	case FieldAuthentikID:
		u.AuthentikID = params.ExternalID
	default:
		return User{}, fmt.Errorf("unsupported external ID field: %s", params.Field)
	}

	r.users[u.ID] = u
	return u, nil
}

// GetByExternalID returns the user keyed on the given external ID field
func (r *InMemUserRepository) GetByExternalID(ctx context.Context, field ExternalIDField, externalID string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if externalID != "" && u.ExternalID(field) == externalID {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// GetByID returns the user with the given primary key
func (r *InMemUserRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[id]
	if !exists {
		return User{}, ErrNotFound
	}
	return u, nil
}
