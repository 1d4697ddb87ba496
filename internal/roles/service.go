package roles

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/backoffice/backoffice/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
}

// PermissionWriter replaces the grants of a role.
type PermissionWriter interface {
	SetRolePermissions(ctx context.Context, roleID int64, codes []string) error
}

// Auditor records administrative changes.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles role business logic.
type Service struct {
	repo    RepositoryPort
	perms   PermissionWriter
	auditor Auditor
	logger  *slog.Logger
}

// NewService builds Service instance. auditor may be nil.
func NewService(repo RepositoryPort, perms PermissionWriter, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, perms: perms, auditor: auditor, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// SetPermissions replaces the permissions of roleID on behalf of actorID.
func (s *Service) SetPermissions(ctx context.Context, actorID string, roleID int64, codes []string) error {
	if err := s.perms.SetRolePermissions(ctx, roleID, codes); err != nil {
		return err
	}
	if s.auditor != nil {
		err := s.auditor.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   shared.AuditRolePermsSet,
			Entity:   "role",
			EntityID: strconv.FormatInt(roleID, 10),
			Meta:     map[string]any{"permissions": codes},
		})
		if err != nil {
			s.logger.Warn("audit role permissions", slog.Int64("role_id", roleID), slog.Any("error", err))
		}
	}
	return nil
}
