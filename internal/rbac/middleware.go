package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/shared"
)

// Stable error codes written by the authorization middleware.
const (
	CodeAuthRequired         = "AUTH_REQUIRED"
	CodePermissionDenied     = "PERMISSION_DENIED"
	CodePermissionCheckError = "PERMISSION_CHECK_ERROR"
	CodeStoreUnreachable     = "STORE_UNREACHABLE"
)

// Outcomes reported to the Observer.
const (
	ResultGranted = "granted"
	ResultDenied  = "denied"
	ResultError   = "error"
)

// Resolver loads the current permission set of a user.
type Resolver interface {
	PermissionsForUser(ctx context.Context, userID string) (PermissionSet, error)
}

// Observer receives the outcome of every permission check.
type Observer interface {
	PermissionCheck(result string)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Resolver Resolver
	Logger   *slog.Logger
	Observer Observer
}

// Require only lets requests through when the caller's role grants code.
// Several Require interceptors may be chained on one route; each resolves
// the permissions afresh so revocations apply immediately.
func (m Middleware) Require(code string) func(http.Handler) http.Handler {
	code = strings.TrimSpace(code)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			granted, ok := m.resolve(w, r, "rbac require", code)
			if !ok {
				return
			}
			if !granted.Has(code) {
				m.observe(ResultDenied)
				httpx.Error(w, http.StatusForbidden, CodePermissionDenied, "missing permission "+code)
				return
			}
			m.observe(ResultGranted)
			next.ServeHTTP(w, r.WithContext(ContextWithPermissions(r.Context(), granted)))
		})
	}
}

// Load attaches the caller's current permission set without demanding any
// particular code. Handlers that tailor their output read it back with
// PermissionsFromContext.
func (m Middleware) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		granted, ok := m.resolve(w, r, "rbac load", "")
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPermissions(r.Context(), granted)))
	})
}

func (m Middleware) resolve(w http.ResponseWriter, r *http.Request, op, code string) (PermissionSet, bool) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, CodeAuthRequired, "authentication required")
		return nil, false
	}
	granted, err := m.Resolver.PermissionsForUser(r.Context(), id.UserID)
	if err != nil {
		m.observe(ResultError)
		if m.Logger != nil {
			m.Logger.Error(op, slog.String("permission", code), slog.Any("error", err))
		}
		httpx.Error(w, http.StatusInternalServerError, CodePermissionCheckError, "unable to verify permissions")
		return nil, false
	}
	return granted, true
}

func (m Middleware) observe(result string) {
	if m.Observer != nil {
		m.Observer.PermissionCheck(result)
	}
}
