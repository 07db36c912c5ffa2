package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/platform/db"
	"github.com/freshcart/console/internal/shared"
)

// Conn is the pool surface the repository needs: plain queries plus
// transactions for permission rewrites.
type Conn interface {
	db.DBTX
	db.TxBeginner
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	conn Conn
}

// NewRepository constructs a repository.
func NewRepository(conn Conn) *Repository {
	return &Repository{conn: conn}
}

const userColumns = `id, name, email, COALESCE(phone, ''), role, is_active, created_at, updated_at`

const listUsers = `SELECT ` + userColumns + `
FROM users
WHERE ($1 = '' OR role = $1)
  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')
ORDER BY id
LIMIT $3 OFFSET $4`

const countUsers = `SELECT count(*)
FROM users
WHERE ($1 = '' OR role = $1)
  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')`

// ListUsers returns one page of users and the total matching filter.
func (r *Repository) ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error) {
	role := string(filter.Role)
	var total int
	if err := r.conn.QueryRow(ctx, countUsers, role, filter.Search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}
	rows, err := r.conn.Query(ctx, listUsers, role, filter.Search, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	return users, total, nil
}

// GetUser loads a single user.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	user, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	return user, nil
}

const listPermissions = `SELECT module, can_read, can_add, can_update, can_delete, can_view
FROM user_permissions WHERE user_id = $1 ORDER BY id`

// ListPermissions returns the stored permission records of a user in
// insertion order.
func (r *Repository) ListPermissions(ctx context.Context, userID int64) ([]access.RawPermission, error) {
	rows, err := r.conn.Query(ctx, listPermissions, userID)
	if err != nil {
		return nil, fmt.Errorf("users: list permissions: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (access.RawPermission, error) {
		var rec access.RawPermission
		err := row.Scan(&rec.Module, &rec.CanRead, &rec.CanAdd, &rec.CanUpdate, &rec.CanDelete, &rec.CanView)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("users: list permissions: %w", err)
	}
	return records, nil
}

const insertPermission = `INSERT INTO user_permissions (user_id, module, can_read, can_add, can_update, can_delete, can_view)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// ReplacePermissions swaps every stored record of a user for records in one
// transaction.
func (r *Repository) ReplacePermissions(ctx context.Context, userID int64, records []access.RawPermission) error {
	return db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("users: clear permissions: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, rec := range records {
			batch.Queue(insertPermission, userID, rec.Module, rec.CanRead, rec.CanAdd, rec.CanUpdate, rec.CanDelete, rec.CanView)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("users: insert permissions: %w", err)
		}
		return nil
	})
}

func scanUser(row pgx.CollectableRow) (User, error) {
	var (
		user      User
		role      string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &role, &user.IsActive, &createdAt, &updatedAt); err != nil {
		return User{}, err
	}
	user.Role = access.ParseRole(role)
	user.CreatedAt = createdAt.Time
	user.UpdatedAt = updatedAt.Time
	return user, nil
}

var _ RepositoryPort = (*Repository)(nil)
