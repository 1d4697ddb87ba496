package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/shared"
	"github.com/backoffice/backoffice/internal/token"
)

// Stable error codes written by the session middleware.
const (
	CodeTokenMissing        = "TOKEN_MISSING"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeRefreshTokenMissing = "REFRESH_TOKEN_MISSING"
	CodeRefreshTokenExpired = "REFRESH_TOKEN_EXPIRED"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
)

const refreshBodyLimit = 64 << 10

// Verifier checks one credential flavor.
type Verifier interface {
	Verify(raw string) (token.Payload, error)
}

// Middleware authenticates requests from their credentials.
type Middleware struct {
	Access  Verifier
	Refresh Verifier
	Logger  *slog.Logger
}

type codes struct {
	missing, expired, invalid string
}

var (
	accessCodes  = codes{missing: CodeTokenMissing, expired: CodeTokenExpired, invalid: CodeInvalidToken}
	refreshCodes = codes{missing: CodeRefreshTokenMissing, expired: CodeRefreshTokenExpired, invalid: CodeInvalidRefreshToken}
)

// AuthenticateAccess verifies the bearer access token and stores the caller identity.
func (m Middleware) AuthenticateAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.authenticate(w, r, next, m.Access, bearerToken(r.Header.Get("Authorization")), accessCodes)
	})
}

// AuthenticateRefresh verifies the refresh token carried in the request body.
func (m Middleware) AuthenticateRefresh(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.authenticate(w, r, next, m.Refresh, refreshTokenFromBody(w, r), refreshCodes)
	})
}

func (m Middleware) authenticate(w http.ResponseWriter, r *http.Request, next http.Handler, v Verifier, raw string, c codes) {
	if raw == "" {
		httpx.Error(w, http.StatusUnauthorized, c.missing, "credential missing")
		return
	}
	payload, err := v.Verify(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			httpx.Error(w, http.StatusUnauthorized, c.expired, "credential expired")
			return
		}
		if m.Logger != nil {
			m.Logger.Debug("rejected credential", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		httpx.Error(w, http.StatusUnauthorized, c.invalid, "credential invalid")
		return
	}
	ctx := shared.ContextWithIdentity(r.Context(), IdentityFromPayload(payload))
	next.ServeHTTP(w, r.WithContext(ctx))
}

// IdentityFromPayload copies verified claims into the request identity.
func IdentityFromPayload(p token.Payload) shared.Identity {
	return shared.Identity{
		SessionID: p.SessionID,
		UserID:    p.UserID,
		Firstname: p.Firstname,
		Lastname:  p.Lastname,
		Avatar:    p.Avatar,
		Email:     p.Email,
		RoleName:  p.RoleName,
	}
}

// PayloadFromIdentity is the inverse of IdentityFromPayload.
func PayloadFromIdentity(id shared.Identity) token.Payload {
	return token.Payload{
		SessionID: id.SessionID,
		UserID:    id.UserID,
		Firstname: id.Firstname,
		Lastname:  id.Lastname,
		Avatar:    id.Avatar,
		Email:     id.Email,
		RoleName:  id.RoleName,
	}
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return normalizeRaw(parts[1])
}

func refreshTokenFromBody(w http.ResponseWriter, r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, refreshBodyLimit)).Decode(&body); err != nil {
			return ""
		}
		return normalizeRaw(body.RefreshToken)
	}
	r.Body = http.MaxBytesReader(w, r.Body, refreshBodyLimit)
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return normalizeRaw(r.PostFormValue("refresh_token"))
}

// normalizeRaw treats serialised empty values sent by browser clients as absent.
func normalizeRaw(raw string) string {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "null", "undefined":
		return ""
	}
	return raw
}
