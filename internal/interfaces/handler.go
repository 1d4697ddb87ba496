package interfaces

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/rbac"
)

// Handler exposes the permission-aware interface definitions.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers the interface route. Callers must authenticate the request first.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Load).Get("/", h.get)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	typ, err := ParseType(r.URL.Query().Get("type"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	granted, _ := rbac.PermissionsFromContext(r.Context())
	doc, err := h.service.ForCaller(r.Context(), typ, granted)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, doc)
	case errors.Is(err, ErrStoreUnreachable):
		h.logger.Error("load interface failed", slog.String("type", string(typ)), slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, rbac.CodeStoreUnreachable, "relational store unreachable")
	default:
		if !errors.Is(err, ErrNotFound) {
			h.logger.Error("load interface failed", slog.String("type", string(typ)), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
