package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresUserRepository implements Repository using PostgreSQL.
// Requires unique indexes on users.google_id and users.authentik_id.
type PostgresUserRepository struct {
	db DBTX
}

// NewPostgresUserRepository creates a new PostgreSQL user repository
func NewPostgresUserRepository(db DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = "id, COALESCE(google_id, ''), COALESCE(authentik_id, ''), email, COALESCE(picture, ''), created_at, updated_at"

// externalIDColumn maps an ExternalIDField to its column name, rejecting
// anything outside the known set so the field can never reach SQL unchecked.
func externalIDColumn(field ExternalIDField) (string, error) {
	switch field {
	case FieldGoogleID:
		return "google_id", nil
	case FieldAuthentikID:
		return "authentik_id", nil
	}
	return "", fmt.Errorf("unsupported external ID field: %s", field)
}

// UpsertByExternalID finds or creates a user keyed on the external ID column
func (r *PostgresUserRepository) UpsertByExternalID(ctx context.Context, params UpsertParams) (User, error) {
	if params.ExternalID == "" {
		return User{}, fmt.Errorf("external ID cannot be empty")
	}

	column, err := externalIDColumn(params.Field)
	if err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO users (id, %s, email, picture, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (%s) DO UPDATE SET
			email = EXCLUDED.email,
			picture = EXCLUDED.picture,
			updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns, column, column)

	var u User
	err = r.db.QueryRow(ctx, query, uuid.New(), params.ExternalID, params.Email, params.Picture, now).Scan(
		&u.ID, &u.GoogleID, &u.AuthentikID, &u.Email, &u.Picture, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}

// GetByExternalID returns the user keyed on the given external ID column
func (r *PostgresUserRepository) GetByExternalID(ctx context.Context, field ExternalIDField, externalID string) (User, error) {
	column, err := externalIDColumn(field)
	if err != nil {
		return User{}, err
	}

	query := fmt.Sprintf("SELECT "+userColumns+" FROM users WHERE %s = $1", column)

	var u User
	err = r.db.QueryRow(ctx, query, externalID).Scan(
		&u.ID, &u.GoogleID, &u.AuthentikID, &u.Email, &u.Picture, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to get user by external ID: %w", err)
	}
	return u, nil
}

// GetByID returns the user with the given primary key
func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = $1"

	var u User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.GoogleID, &u.AuthentikID, &u.Email, &u.Picture, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return u, nil
}
