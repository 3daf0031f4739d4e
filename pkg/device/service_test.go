package device

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAdoptionService(t *testing.T) (*AdoptionService, *InMemDeviceRepository) {
	repo := NewInMemDeviceRepository()
	service := NewAdoptionService(repo)
	return service, repo
}

func TestAdoptionService_AdoptUnowned(t *testing.T) {
	service, _ := setupAdoptionService(t)
	ctx := context.Background()
	owner := uuid.New()

	adopted, err := service.Adopt(ctx, "D123", owner)
	require.NoError(t, err)

	require.NotNil(t, adopted.OwnerUserID)
	assert.Equal(t, owner, *adopted.OwnerUserID)
	assert.Regexp(t, regexp.MustCompile("^[0-9a-f]{40}$"), adopted.TempToken)
	assert.WithinDuration(t, time.Now().Add(DefaultTempTokenTTL), adopted.TempTokenExpiresAt, 5*time.Second)
}

func TestAdoptionService_IdempotentReadoption(t *testing.T) {
	service, _ := setupAdoptionService(t)
	ctx := context.Background()
	owner := uuid.New()

	first, err := service.Adopt(ctx, "D123", owner)
	require.NoError(t, err)

	second, err := service.Adopt(ctx, "D123", owner)
	require.NoError(t, err)

	assert.Equal(t, owner, *second.OwnerUserID)
	assert.NotEqual(t, first.TempToken, second.TempToken, "temp token must rotate on re-adoption")
	assert.False(t, second.TempTokenExpiresAt.Before(first.TempTokenExpiresAt))
}

func TestAdoptionService_AdoptedByOther(t *testing.T) {
	service, repo := setupAdoptionService(t)
	ctx := context.Background()

	firstOwner := uuid.New()
	first, err := service.Adopt(ctx, "D123", firstOwner)
	require.NoError(t, err)

	_, err = service.Adopt(ctx, "D123", uuid.New())
	assert.ErrorIs(t, err, ErrAdoptedByOther)

	// Owner and credential unchanged
	d, err := repo.GetByID(ctx, "D123")
	require.NoError(t, err)
	assert.Equal(t, firstOwner, *d.OwnerUserID)
	assert.Equal(t, first.TempToken, d.TempToken)
}

func TestAdoptionService_TempTokenTTLOption(t *testing.T) {
	repo := NewInMemDeviceRepository()
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	service := NewAdoptionService(repo,
		WithTempTokenTTL(time.Minute),
		WithClock(func() time.Time { return fixed }),
	)

	adopted, err := service.Adopt(context.Background(), "D123", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Minute), adopted.TempTokenExpiresAt)
}

func TestInMemDeviceRepository_ConcurrentAdoption(t *testing.T) {
	repo := NewInMemDeviceRepository()
	service := NewAdoptionService(repo)
	ctx := context.Background()

	userA := uuid.New()
	userB := uuid.New()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, owner := range []uuid.UUID{userA, userB} {
		wg.Add(1)
		go func(i int, owner uuid.UUID) {
			defer wg.Done()
			_, results[i] = service.Adopt(ctx, "D123", owner)
		}(i, owner)
	}
	wg.Wait()

	// Exactly one success, the loser observes the ownership conflict
	successes := 0
	conflicts := 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case err == ErrAdoptedByOther:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	d, err := repo.GetByID(ctx, "D123")
	require.NoError(t, err)
	require.NotNil(t, d.OwnerUserID)
	assert.Contains(t, []uuid.UUID{userA, userB}, *d.OwnerUserID)
}

func TestInMemDeviceRepository_GetByID_NotFound(t *testing.T) {
	repo := NewInMemDeviceRepository()

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
