package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/platform/db"
	"github.com/freshcart/console/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	PermissionRecords(ctx context.Context, userID int64) ([]access.RawPermission, error)
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{db: conn}
}

const getUserByEmail = `SELECT id, name, email, COALESCE(phone, ''), role, password_hash, is_active, created_at, updated_at
FROM users WHERE lower(email) = lower($1)`

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var (
		user      User
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, getUserByEmail, email).Scan(
		&user.ID, &user.Name, &user.Email, &user.Phone, &user.Role,
		&user.PasswordHash, &user.IsActive, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = createdAt.Time
	user.UpdatedAt = updatedAt.Time
	return &user, nil
}

const listPermissionRecords = `SELECT module, can_read, can_add, can_update, can_delete, can_view
FROM user_permissions WHERE user_id = $1 ORDER BY id`

// PermissionRecords loads the server permission records of a user in
// insertion order, so a later duplicate replaces an earlier one downstream.
func (r *PGRepository) PermissionRecords(ctx context.Context, userID int64) ([]access.RawPermission, error) {
	rows, err := r.db.Query(ctx, listPermissionRecords, userID)
	if err != nil {
		return nil, err
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (access.RawPermission, error) {
		var rec access.RawPermission
		err := row.Scan(&rec.Module, &rec.CanRead, &rec.CanAdd, &rec.CanUpdate, &rec.CanDelete, &rec.CanView)
		return rec, err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

const createSession = `INSERT INTO sessions (id, user_id, created_at, expires_at, ip, ua) VALUES ($1, $2, $3, $4, $5, $6)`

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, createSession,
		id,
		userID,
		pgtype.Timestamptz{Time: now, Valid: true},
		pgtype.Timestamptz{Time: expiresAt.UTC(), Valid: true},
		pgtype.Text{String: ip, Valid: ip != ""},
		pgtype.Text{String: ua, Valid: ua != ""},
	)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
