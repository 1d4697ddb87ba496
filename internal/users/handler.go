package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes. Callers must authenticate the request first.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.PermViewAllUsers))
		r.Get("/", h.listUsers)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	option, err := ParseListOption(r.URL.Query().Get("option"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "option must be all or role")
		return
	}
	users, err := h.service.ListUsers(r.Context(), option)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		if errors.Is(err, ErrStoreUnreachable) {
			httpx.Error(w, http.StatusInternalServerError, rbac.CodeStoreUnreachable, "relational store unreachable")
			return
		}
		httpx.Error(w, http.StatusInternalServerError, httpx.CodeInternalError, "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}
