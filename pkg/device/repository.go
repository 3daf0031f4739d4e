package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Device represents a physical device known to the cloud. The ID is assigned
// by the device itself and never changes; ownership is nullable until the
// device is adopted.
type Device struct {
	ID                 string     `json:"id"`
	OwnerUserID        *uuid.UUID `json:"owner_user_id,omitempty"`
	TempToken          string     `json:"temp_token,omitempty"`
	TempTokenExpiresAt time.Time  `json:"temp_token_expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsOwnedBy reports whether the device is currently owned by the given user
func (d Device) IsOwnedBy(userID uuid.UUID) bool {
	return d.OwnerUserID != nil && *d.OwnerUserID == userID
}

var (
	// ErrNotFound indicates no device row matched the lookup
	ErrNotFound = errors.New("device not found")

	// ErrAdoptedByOther indicates the device is already owned by a different
	// user. Ownership is never silently reassigned; the device must go
	// through a physical factory reset before it can change hands.
	ErrAdoptedByOther = errors.New("device already adopted by another user")
)

// AdoptParams carries a single adoption write: the device is bound to the
// owner and handed a fresh temporary credential.
type AdoptParams struct {
	DeviceID           string
	OwnerUserID        uuid.UUID
	TempToken          string
	TempTokenExpiresAt time.Time
}

// Repository defines the interface for device storage operations
type Repository interface {
	// GetByID returns the device with the given ID.
	// Returns ErrNotFound when no row matches.
	GetByID(ctx context.Context, id string) (Device, error)

	// Adopt atomically assigns the device to the owner and stores the
	// temporary credential. The row is created when absent. The write only
	// succeeds when the device is unowned or already owned by the same
	// user; otherwise ErrAdoptedByOther is returned and the row is left
	// untouched. Two concurrent adoptions of the same unowned device must
	// resolve to exactly one success.
	Adopt(ctx context.Context, params AdoptParams) (Device, error)
}
