package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresDeviceRepository implements Repository using PostgreSQL
type PostgresDeviceRepository struct {
	db DBTX
}

// NewPostgresDeviceRepository creates a new PostgreSQL device repository
func NewPostgresDeviceRepository(db DBTX) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

const deviceColumns = "id, owner_user_id, COALESCE(temp_token, ''), COALESCE(temp_token_expires_at, 'epoch'::timestamptz), created_at, updated_at"

// GetByID returns the device with the given ID
func (r *PostgresDeviceRepository) GetByID(ctx context.Context, id string) (Device, error) {
	query := "SELECT " + deviceColumns + " FROM device WHERE id = $1"

	var d Device
	err := r.db.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.OwnerUserID, &d.TempToken, &d.TempTokenExpiresAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Device{}, ErrNotFound
	}
	if err != nil {
		return Device{}, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

// Adopt atomically assigns the device to the owner. The conditional upsert
// only updates when the row is unowned or owned by the same user, so two
// concurrent adoptions of an unowned device resolve to exactly one success;
// the loser sees zero rows and gets ErrAdoptedByOther.
func (r *PostgresDeviceRepository) Adopt(ctx context.Context, params AdoptParams) (Device, error) {
	if params.DeviceID == "" {
		return Device{}, fmt.Errorf("device ID cannot be empty")
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO device (id, owner_user_id, temp_token, temp_token_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE SET
			owner_user_id = EXCLUDED.owner_user_id,
			temp_token = EXCLUDED.temp_token,
			temp_token_expires_at = EXCLUDED.temp_token_expires_at,
			updated_at = EXCLUDED.updated_at
		WHERE device.owner_user_id IS NULL OR device.owner_user_id = EXCLUDED.owner_user_id
		RETURNING ` + deviceColumns

	var d Device
	err := r.db.QueryRow(ctx, query,
		params.DeviceID, params.OwnerUserID, params.TempToken, params.TempTokenExpiresAt, now,
	).Scan(&d.ID, &d.OwnerUserID, &d.TempToken, &d.TempTokenExpiresAt, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict row excluded by the WHERE clause: owned by someone else
		return Device{}, ErrAdoptedByOther
	}
	if err != nil {
		return Device{}, fmt.Errorf("failed to adopt device: %w", err)
	}
	return d, nil
}
