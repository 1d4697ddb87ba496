package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/backoffice/backoffice/internal/platform/db"
)

// ErrStoreUnreachable indicates the relational store could not be reached.
var ErrStoreUnreachable = errors.New("roles: store unreachable")

// Repository provides database/sql backed persistence.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

const listRolesQuery = `
	SELECT r.id_role, r.role_name, r.role_slug, COALESCE(r.role_color, ''), r.can_access, p.code
	FROM roles r
	LEFT JOIN role_permissions rp ON rp.id_role = r.id_role
	LEFT JOIN permissions p ON p.id_permission = rp.id_permission
	ORDER BY r.id_role, p.code`

// ListRoles returns all roles with their granted permission codes.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx, listRolesQuery)
	if err != nil {
		return nil, storeError("list roles", err)
	}
	defer rows.Close()

	roles := []Role{}
	index := make(map[int64]int)
	for rows.Next() {
		var (
			role Role
			code sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Slug, &role.Color, &role.CanAccess, &code); err != nil {
			return nil, storeError("scan role", err)
		}
		i, ok := index[role.ID]
		if !ok {
			role.Permissions = []string{}
			roles = append(roles, role)
			i = len(roles) - 1
			index[role.ID] = i
		}
		if code.Valid {
			roles[i].Permissions = append(roles[i].Permissions, code.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list roles", err)
	}
	return roles, nil
}

func storeError(op string, err error) error {
	err = db.Classify(err)
	if errors.Is(err, db.ErrUnreachable) {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnreachable, op, err)
	}
	return fmt.Errorf("roles: %s: %w", op, err)
}
