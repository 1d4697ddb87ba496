package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers role routes. Callers must authenticate the request first.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.PermViewAllRoles))
		r.Get("/", h.listRoles)
		r.With(h.rbac.Require(shared.PermEditRolePermissions)).Put("/{roleID}/permissions", h.setPermissions)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

type permissionsForm struct {
	Permissions []string `json:"permissions" validate:"max=256,dive,required,max=64"`
}

func (h *Handler) setPermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil || roleID <= 0 {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "role id must be a positive integer")
		return
	}
	var form permissionsForm
	if err := httpx.DecodeJSON(w, r, &form); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "malformed request body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "permissions must be a list of codes")
		return
	}
	id, _ := shared.IdentityFromContext(r.Context())
	if err := h.service.SetPermissions(r.Context(), id.UserID, roleID, form.Permissions); err != nil {
		if !errors.Is(err, rbac.ErrNotFound) && !errors.Is(err, rbac.ErrUnknownPermission) {
			h.logger.Error("set role permissions failed", slog.Int64("role_id", roleID), slog.Any("error", err))
		}
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrStoreUnreachable) {
		httpx.Error(w, http.StatusInternalServerError, rbac.CodeStoreUnreachable, "relational store unreachable")
		return
	}
	rbac.RespondError(w, err)
}
