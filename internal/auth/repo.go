package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/backoffice/backoffice/internal/platform/db"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByNickname(ctx context.Context, nickname string) (Account, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

// SQLRepository implements Repository on database/sql.
type SQLRepository struct {
	db *sql.DB
}

// NewRepository constructs a SQL repository.
func NewRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{db: conn}
}

const findByNicknameQuery = `
	SELECT u.uuid, u.nickname, u.email, u.hash_password,
	       COALESCE(u.firstname, ''), COALESCE(u.lastname, ''), COALESCE(u.avatar, ''),
	       u.is_activated, r.id_role, r.role_name, r.can_access
	FROM users u
	JOIN roles r ON r.id_role = u.id_role
	WHERE u.nickname = $1`

// FindByNickname fetches an account and its role by nickname.
func (r *SQLRepository) FindByNickname(ctx context.Context, nickname string) (Account, error) {
	var a Account
	err := r.db.QueryRowContext(ctx, findByNicknameQuery, nickname).Scan(
		&a.UserID, &a.Nickname, &a.Email, &a.PasswordHash,
		&a.Firstname, &a.Lastname, &a.Avatar,
		&a.Activated, &a.RoleID, &a.RoleName, &a.CanAccess,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, storeError("find by nickname", err)
	}
	return a, nil
}

// TouchLastLogin records the time of the latest successful login.
func (r *SQLRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE uuid = $1`, userID, at.UTC()); err != nil {
		return storeError("touch last login", err)
	}
	return nil
}

func storeError(op string, err error) error {
	err = db.Classify(err)
	if errors.Is(err, db.ErrUnreachable) {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnreachable, op, err)
	}
	return fmt.Errorf("auth: %s: %w", op, err)
}

var _ Repository = (*SQLRepository)(nil)
