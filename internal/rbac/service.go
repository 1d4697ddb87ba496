package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/backoffice/backoffice/internal/platform/db"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrStoreUnreachable indicates the relational store could not be reached.
	ErrStoreUnreachable = errors.New("rbac: store unreachable")
	// ErrUnknownPermission indicates a permission code absent from the catalog.
	ErrUnknownPermission = errors.New("rbac: unknown permission")
)

const permissionsForUserQuery = `
	SELECT DISTINCT p.code
	FROM users u
	JOIN role_permissions rp ON rp.id_role = u.id_role
	JOIN permissions p ON p.id_permission = rp.id_permission
	WHERE u.uuid = $1 AND u.is_activated = TRUE`

const permissionsOfUserQuery = `
	SELECT DISTINCT p.id_permission, p.code, p.name, COALESCE(p.description, ''), COALESCE(p.category, '')
	FROM users u
	JOIN role_permissions rp ON rp.id_role = u.id_role
	JOIN permissions p ON p.id_permission = rp.id_permission
	WHERE u.uuid = $1
	ORDER BY p.id_permission`

const listPermissionsQuery = `
	SELECT id_permission, code, name, COALESCE(description, ''), COALESCE(category, '')
	FROM permissions
	ORDER BY id_permission`

const grantsQuery = `
	SELECT rp.id_permission, r.role_slug
	FROM role_permissions rp
	JOIN roles r ON r.id_role = rp.id_role`

const roleSlugsQuery = `SELECT role_slug FROM roles ORDER BY id_role`

// Service resolves and manages role permissions in the relational store.
// Nothing is cached: every call reads the current associations.
type Service struct {
	db *sql.DB
}

// NewService constructs a Service backed by the provided database handle.
func NewService(conn *sql.DB) *Service {
	return &Service{db: conn}
}

// PermissionsForUser returns the codes granted to an activated user through its role.
// A role without permissions yields an empty set, not an error.
func (s *Service) PermissionsForUser(ctx context.Context, userID string) (PermissionSet, error) {
	rows, err := s.db.QueryContext(ctx, permissionsForUserQuery, userID)
	if err != nil {
		return nil, storeError("permissions for user", err)
	}
	defer rows.Close()

	set := PermissionSet{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, storeError("scan permission", err)
		}
		set[code] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("permissions for user", err)
	}
	return set, nil
}

// PermissionsOfUser returns full permission records for a user.
func (s *Service) PermissionsOfUser(ctx context.Context, userID string) ([]Permission, error) {
	return s.queryPermissions(ctx, permissionsOfUserQuery, userID)
}

// ListPermissions returns the whole permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.queryPermissions(ctx, listPermissionsQuery)
}

// PermissionMatrix reports, for every permission, which roles grant it. When
// slugs is empty every role is included.
func (s *Service) PermissionMatrix(ctx context.Context, slugs []string) ([]MatrixRow, error) {
	perms, err := s.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	if len(slugs) == 0 {
		slugs, err = s.roleSlugs(ctx)
		if err != nil {
			return nil, err
		}
	}

	rows, err := s.db.QueryContext(ctx, grantsQuery)
	if err != nil {
		return nil, storeError("grants", err)
	}
	defer rows.Close()
	granted := make(map[int64]map[string]bool)
	for rows.Next() {
		var (
			permID int64
			slug   string
		)
		if err := rows.Scan(&permID, &slug); err != nil {
			return nil, storeError("scan grant", err)
		}
		if granted[permID] == nil {
			granted[permID] = make(map[string]bool)
		}
		granted[permID][slug] = true
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("grants", err)
	}

	matrix := make([]MatrixRow, 0, len(perms))
	for _, p := range perms {
		row := MatrixRow{Permission: p, Roles: make(map[string]bool, len(slugs))}
		for _, slug := range slugs {
			row.Roles[slug] = granted[p.ID][slug]
		}
		matrix = append(matrix, row)
	}
	return matrix, nil
}

// SetRolePermissions replaces the permissions of a role in one transaction.
// Revocations are visible to the very next authorization check.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, codes []string) error {
	unique := normalizeCodes(codes)
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM roles WHERE id_role = $1`, roleID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE id_role = $1`, roleID); err != nil {
			return err
		}
		for _, code := range unique {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO role_permissions (id_role, id_permission)
				SELECT $1, id_permission FROM permissions WHERE code = $2`, roleID, code)
			if err != nil {
				if db.PgCode(err) == db.CodeForeignKeyViolation {
					// role removed concurrently
					return ErrNotFound
				}
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", ErrUnknownPermission, code)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnknownPermission) {
			return err
		}
		return storeError("set role permissions", err)
	}
	return nil
}

func (s *Service) queryPermissions(ctx context.Context, query string, args ...any) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list permissions", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Category); err != nil {
			return nil, storeError("scan permission", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list permissions", err)
	}
	return perms, nil
}

func (s *Service) roleSlugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, roleSlugsQuery)
	if err != nil {
		return nil, storeError("role slugs", err)
	}
	defer rows.Close()
	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, storeError("scan role slug", err)
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("role slugs", err)
	}
	return slugs, nil
}

func normalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func storeError(op string, err error) error {
	err = db.Classify(err)
	if errors.Is(err, db.ErrUnreachable) {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnreachable, op, err)
	}
	return fmt.Errorf("rbac: %s: %w", op, err)
}
