package device

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultTempTokenTTL is the validity window of the temporary credential a
// device uses to authenticate its first connection after adoption.
const DefaultTempTokenTTL = 5 * time.Minute

// AdoptionService assigns device ownership and mints temporary credentials
type AdoptionService struct {
	repository   Repository
	tempTokenTTL time.Duration
	now          func() time.Time
}

// AdoptionOption is a function that configures an AdoptionService
type AdoptionOption func(*AdoptionService)

// WithTempTokenTTL sets the validity window of minted temporary credentials
func WithTempTokenTTL(ttl time.Duration) AdoptionOption {
	return func(s *AdoptionService) {
		s.tempTokenTTL = ttl
	}
}

// WithClock overrides the time source (for tests)
func WithClock(now func() time.Time) AdoptionOption {
	return func(s *AdoptionService) {
		s.now = now
	}
}

// NewAdoptionService creates a new adoption service with the given repository
func NewAdoptionService(repository Repository, opts ...AdoptionOption) *AdoptionService {
	s := &AdoptionService{
		repository:   repository,
		tempTokenTTL: DefaultTempTokenTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Adopt assigns the device to the owner and hands it a fresh short-lived
// credential. Re-adoption by the current owner succeeds and rotates the
// credential; adoption of a device owned by someone else returns
// ErrAdoptedByOther without touching the row.
func (s *AdoptionService) Adopt(ctx context.Context, deviceID string, ownerUserID uuid.UUID) (Device, error) {
	tempToken, err := generateTempToken()
	if err != nil {
		return Device{}, fmt.Errorf("failed to generate temp token: %w", err)
	}

	adopted, err := s.repository.Adopt(ctx, AdoptParams{
		DeviceID:           deviceID,
		OwnerUserID:        ownerUserID,
		TempToken:          tempToken,
		TempTokenExpiresAt: s.now().UTC().Add(s.tempTokenTTL),
	})
	if err != nil {
		return Device{}, err
	}

	slog.Info("Adopted device", "deviceID", deviceID, "ownerUserID", ownerUserID)
	return adopted, nil
}

// GetDevice returns the device with the given ID
func (s *AdoptionService) GetDevice(ctx context.Context, deviceID string) (Device, error) {
	return s.repository.GetByID(ctx, deviceID)
}

// generateTempToken generates an opaque random credential (20 bytes, hex)
func generateTempToken() (string, error) {
	bytes := make([]byte, 20)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
