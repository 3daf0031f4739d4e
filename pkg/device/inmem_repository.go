package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemDeviceRepository implements Repository using an in-memory map.
// The mutex is held across the ownership check and the write, so the
// check-then-act in Adopt is atomic.
type InMemDeviceRepository struct {
	devices map[string]Device
	mu      sync.Mutex
}

// NewInMemDeviceRepository creates a new in-memory device repository
func NewInMemDeviceRepository() *InMemDeviceRepository {
	return &InMemDeviceRepository{
		devices: make(map[string]Device),
	}
}

// GetByID returns the device with the given ID
func (r *InMemDeviceRepository) GetByID(ctx context.Context, id string) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, exists := r.devices[id]
	if !exists {
		return Device{}, ErrNotFound
	}
	return d, nil
}

// Adopt atomically assigns the device to the owner
func (r *InMemDeviceRepository) Adopt(ctx context.Context, params AdoptParams) (Device, error) {
	if params.DeviceID == "" {
		return Device{}, fmt.Errorf("device ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	d, exists := r.devices[params.DeviceID]
	if exists {
		if d.OwnerUserID != nil && *d.OwnerUserID != params.OwnerUserID {
			return Device{}, ErrAdoptedByOther
		}
	} else {
		d = Device{
			ID:        params.DeviceID,
			CreatedAt: now,
		}
	}

	owner := params.OwnerUserID
	d.OwnerUserID = &owner
	d.TempToken = params.TempToken
	d.TempTokenExpiresAt = params.TempTokenExpiresAt
	d.UpdatedAt = now

	r.devices[params.DeviceID] = d
	return d, nil
}
