package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/backoffice/backoffice/internal/platform/db"
)

// ErrStoreUnreachable indicates the relational store could not be reached.
var ErrStoreUnreachable = errors.New("users: store unreachable")

// Repository provides database/sql backed persistence.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

const listUsersQuery = `
	SELECT uuid, nickname, email, COALESCE(firstname, ''), COALESCE(lastname, ''), COALESCE(avatar, ''),
	       is_activated, registration_date, last_login
	FROM users
	ORDER BY nickname`

const listUsersWithRoleQuery = `
	SELECT u.uuid, u.nickname, u.email, COALESCE(u.firstname, ''), COALESCE(u.lastname, ''), COALESCE(u.avatar, ''),
	       u.is_activated, u.registration_date, u.last_login,
	       r.id_role, r.role_name, r.role_slug, COALESCE(r.role_color, ''), r.can_access
	FROM users u
	JOIN roles r ON r.id_role = u.id_role
	ORDER BY u.nickname`

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, listUsersQuery)
	if err != nil {
		return nil, storeError("list users", err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var (
			user      User
			lastLogin sql.NullTime
		)
		if err := rows.Scan(&user.UUID, &user.Nickname, &user.Email, &user.Firstname, &user.Lastname, &user.Avatar,
			&user.Activated, &user.RegistrationDate, &lastLogin); err != nil {
			return nil, storeError("scan user", err)
		}
		user.LastLogin = nullTime(lastLogin)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list users", err)
	}
	return users, nil
}

// ListUsersWithRole returns all users joined with their role.
func (r *Repository) ListUsersWithRole(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, listUsersWithRoleQuery)
	if err != nil {
		return nil, storeError("list users with role", err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var (
			user      User
			role      Role
			lastLogin sql.NullTime
		)
		if err := rows.Scan(&user.UUID, &user.Nickname, &user.Email, &user.Firstname, &user.Lastname, &user.Avatar,
			&user.Activated, &user.RegistrationDate, &lastLogin,
			&role.ID, &role.Name, &role.Slug, &role.Color, &role.CanAccess); err != nil {
			return nil, storeError("scan user", err)
		}
		user.LastLogin = nullTime(lastLogin)
		user.Role = &role
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list users with role", err)
	}
	return users, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func storeError(op string, err error) error {
	err = db.Classify(err)
	if errors.Is(err, db.ErrUnreachable) {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnreachable, op, err)
	}
	return fmt.Errorf("users: %s: %w", op, err)
}
