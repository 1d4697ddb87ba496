package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/shared"
)

// PermissionsHandler exposes the permission catalog and per-user grants.
type PermissionsHandler struct {
	logger    *slog.Logger
	service   *Service
	rbac      Middleware
	validator *validator.Validate
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers permission routes. Callers must authenticate the request first.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.PermViewAllPermissions))
		r.Get("/", h.listPermissions)
		r.Get("/matrix", h.matrix)
	})
}

// Mine answers the caller's own permission codes, resolved fresh.
func (h *PermissionsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, CodeAuthRequired, "authentication required")
		return
	}
	set, err := h.service.PermissionsForUser(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, "my permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": set.Codes()})
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	uuid := strings.TrimSpace(r.URL.Query().Get("uuid"))
	if uuid == "" {
		perms, err := h.service.ListPermissions(r.Context())
		if err != nil {
			h.fail(w, "list permissions", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"permissions": nonNil(perms)})
		return
	}
	if err := h.validator.Var(uuid, "uuid"); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "uuid must be a valid UUID")
		return
	}
	perms, err := h.service.PermissionsOfUser(r.Context(), uuid)
	if err != nil {
		h.fail(w, "user permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"uuid": uuid, "permissions": nonNil(perms)})
}

func (h *PermissionsHandler) matrix(w http.ResponseWriter, r *http.Request) {
	var slugs []string
	for _, raw := range strings.Split(r.URL.Query().Get("roles"), ",") {
		if slug := strings.TrimSpace(raw); slug != "" {
			slugs = append(slugs, slug)
		}
	}
	rows, err := h.service.PermissionMatrix(r.Context(), slugs)
	if err != nil {
		h.fail(w, "permission matrix", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"matrix": rows})
}

func (h *PermissionsHandler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	RespondError(w, err)
}

// RespondError maps rbac errors to structured HTTP responses.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, httpx.CodeNotFound, "role not found")
	case errors.Is(err, ErrUnknownPermission):
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, err.Error())
	case errors.Is(err, ErrStoreUnreachable):
		httpx.Error(w, http.StatusInternalServerError, CodeStoreUnreachable, "relational store unreachable")
	default:
		httpx.RespondError(w, err)
	}
}

func nonNil(perms []Permission) []Permission {
	if perms == nil {
		return []Permission{}
	}
	return perms
}
