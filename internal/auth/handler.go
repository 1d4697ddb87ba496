package auth

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/session"
	"github.com/backoffice/backoffice/internal/shared"
)

// Stable error codes written by the authentication endpoints.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccessDenied       = "ACCESS_DENIED"
	CodeInactiveAccount    = "INACTIVE_ACCOUNT"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeCacheUnavailable   = "CACHE_UNAVAILABLE"
	CodeStoreUnreachable   = "STORE_UNREACHABLE"
)

// Auth events and their outcomes as reported to EventObserver.
const (
	EventLogin   = "login"
	EventRefresh = "refresh"
	EventLogout  = "logout"
	EventVerify  = "verify"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// DisplacedNotifier is told when a login replaced a live session.
type DisplacedNotifier interface {
	NotifySessionDisplaced(ctx context.Context, userID, email, displacedSessionID string) error
}

// Auditor records security relevant events.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// EventObserver counts auth events.
type EventObserver interface {
	AuthEvent(event, outcome string)
}

// HandlerOptions carries optional collaborators of the Handler.
type HandlerOptions struct {
	// LoginLimiter throttles POST /login, typically an httprate limiter.
	LoginLimiter func(http.Handler) http.Handler
	Notifier     DisplacedNotifier
	Auditor      Auditor
	Events       EventObserver
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	middleware Middleware
	validator  *validator.Validate
	opts       HandlerOptions
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, middleware Middleware, opts HandlerOptions) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		service:    service,
		middleware: middleware,
		validator:  validator.New(),
		opts:       opts,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.opts.LoginLimiter != nil {
			r.Use(h.opts.LoginLimiter)
		}
		r.Post("/login", h.handleLogin)
	})
	r.With(h.middleware.AuthenticateRefresh).Post("/refresh", h.handleRefresh)
	r.Group(func(r chi.Router) {
		r.Use(h.middleware.AuthenticateAccess)
		r.Get("/verify", h.handleVerify)
		r.Get("/logout", h.handleLogout)
	})
}

type loginForm struct {
	Nickname string `json:"nickname" validate:"required,min=3,max=25"`
	Password string `json:"password" validate:"required,min=4,max=35"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	form, ok := h.readLoginForm(w, r)
	if !ok {
		return
	}

	grant, err := h.service.Login(r.Context(), form.Nickname, form.Password)
	if err != nil {
		h.event(EventLogin, outcomeOf(err))
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrInactiveAccount) {
			h.audit(r.Context(), shared.AuditLog{
				Action: shared.AuditLoginFailed, Entity: "user", EntityID: NormalizeNickname(form.Nickname),
				Meta: map[string]any{"reason": err.Error(), "ip": r.RemoteAddr},
			})
		}
		h.respondError(w, "login", err)
		return
	}

	displaced, err := h.service.OpenSession(r.Context(), grant)
	if err != nil {
		h.event(EventLogin, OutcomeError)
		h.respondError(w, "open session", err)
		return
	}
	h.event(EventLogin, OutcomeSuccess)
	h.audit(r.Context(), shared.AuditLog{
		ActorID: grant.UserID, Action: shared.AuditLogin, Entity: "session", EntityID: grant.SessionID,
		Meta: map[string]any{"ip": r.RemoteAddr, "user_agent": r.UserAgent()},
	})
	if displaced != "" {
		h.audit(r.Context(), shared.AuditLog{
			ActorID: grant.UserID, Action: shared.AuditSessionReplace, Entity: "session", EntityID: displaced,
			Meta: map[string]any{"replaced_by": grant.SessionID},
		})
		if h.opts.Notifier != nil {
			if err := h.opts.Notifier.NotifySessionDisplaced(r.Context(), grant.UserID, grant.Email, displaced); err != nil {
				h.logger.Warn("notify displaced session", slog.String("user_id", grant.UserID), slog.Any("error", err))
			}
		}
	}
	httpx.JSON(w, http.StatusOK, grant.Pair)
}

func (h *Handler) readLoginForm(w http.ResponseWriter, r *http.Request) (loginForm, bool) {
	var form loginForm
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := httpx.DecodeJSON(w, r, &form); err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "malformed request body")
			return loginForm{}, false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "malformed request body")
			return loginForm{}, false
		}
		form.Nickname = r.PostFormValue("nickname")
		form.Password = r.PostFormValue("password")
	}
	form.Nickname = NormalizeNickname(form.Nickname)
	if err := h.validator.Struct(form); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields[fieldErr.Field()] = fieldErr.Tag()
			}
		}
		httpx.JSON(w, http.StatusBadRequest, map[string]any{
			"error":   http.StatusText(http.StatusBadRequest),
			"code":    httpx.CodeValidation,
			"message": "nickname and password are required",
			"fields":  fields,
		})
		return loginForm{}, false
	}
	return form, true
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, CodeRefreshTokenMissing, "credential missing")
		return
	}
	pair, err := h.service.Refresh(r.Context(), PayloadFromIdentity(id))
	if err != nil {
		h.event(EventRefresh, outcomeOf(err))
		h.respondError(w, "refresh", err)
		return
	}
	h.event(EventRefresh, OutcomeSuccess)
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())
	connected, err := h.service.VerifyConnected(r.Context(), id.UserID, id.SessionID)
	if err != nil {
		h.event(EventVerify, OutcomeError)
		h.respondError(w, "verify", err)
		return
	}
	if !connected {
		h.event(EventVerify, OutcomeFailure)
		httpx.Error(w, http.StatusUnauthorized, CodeSessionExpired, "session expired")
		return
	}
	h.event(EventVerify, OutcomeSuccess)
	httpx.JSON(w, http.StatusOK, map[string]any{"connected": true, "uuid": id.UserID})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())
	removed, err := h.service.Logout(r.Context(), id.UserID)
	if err != nil {
		h.event(EventLogout, OutcomeError)
		h.respondError(w, "logout", err)
		return
	}
	h.event(EventLogout, OutcomeSuccess)
	if removed {
		h.audit(r.Context(), shared.AuditLog{
			ActorID: id.UserID, Action: shared.AuditLogout, Entity: "session", EntityID: id.SessionID,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"logged_out": removed})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Error(w, http.StatusUnauthorized, CodeInvalidCredentials, "invalid nickname or password")
	case errors.Is(err, ErrAccessDenied):
		httpx.Error(w, http.StatusForbidden, CodeAccessDenied, "role is not allowed to sign in")
	case errors.Is(err, ErrInactiveAccount):
		httpx.Error(w, http.StatusForbidden, CodeInactiveAccount, "account is not activated")
	case errors.Is(err, ErrSessionExpired):
		httpx.Error(w, http.StatusUnauthorized, CodeSessionExpired, "session expired")
	case errors.Is(err, session.ErrCacheUnavailable):
		h.logger.Error(op, slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, CodeCacheUnavailable, "session cache unavailable")
	case errors.Is(err, ErrStoreUnreachable):
		h.logger.Error(op, slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, CodeStoreUnreachable, "relational store unreachable")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, httpx.CodeInternalError, "")
	}
}

func (h *Handler) audit(ctx context.Context, log shared.AuditLog) {
	if h.opts.Auditor == nil {
		return
	}
	if err := h.opts.Auditor.Record(ctx, log); err != nil {
		h.logger.Warn("audit record", slog.String("action", log.Action), slog.Any("error", err))
	}
}

func (h *Handler) event(event, outcome string) {
	if h.opts.Events != nil {
		h.opts.Events.AuthEvent(event, outcome)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrInactiveAccount), errors.Is(err, ErrSessionExpired):
		return OutcomeFailure
	default:
		return OutcomeError
	}
}
