package interfaces

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

type stubRepo struct {
	docs       map[Type]Document
	err        error
	collection string
}

func (s *stubRepo) Find(_ context.Context, collection string, typ Type) (Document, error) {
	s.collection = collection
	if s.err != nil {
		return nil, s.err
	}
	doc, ok := s.docs[typ]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

type fixedResolver rbac.PermissionSet

func (f fixedResolver) PermissionsForUser(context.Context, string) (rbac.PermissionSet, error) {
	return rbac.PermissionSet(f), nil
}

func newRouter(repo *stubRepo, granted ...string) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := rbac.Middleware{Resolver: fixedResolver(rbac.NewPermissionSet(granted...)), Logger: logger}
	h := NewHandler(logger, NewService(repo), mw)
	r := chi.NewRouter()
	r.Route("/admin/interface", h.MountRoutes)
	return r
}

func get(r http.Handler, target string, authenticated bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authenticated {
		req = req.WithContext(shared.ContextWithIdentity(req.Context(), shared.Identity{UserID: "editor-1", SessionID: "sid"}))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func navigation() Document {
	return Document{"items": []any{
		map[string]any{"label": "Users", "permission": "READ_USERS"},
		map[string]any{"label": "Roles", "permission": "VIEW_ALL_ROLES"},
	}}
}

func TestGetInterfaceFiltersByCallerPermissions(t *testing.T) {
	repo := &stubRepo{docs: map[Type]Document{TypeNavigation: navigation()}}
	rec := get(newRouter(repo, "READ_USERS"), "/admin/interface?type=navigation", true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[{"label":"Users","permission":"READ_USERS"}]}`, rec.Body.String())
	assert.Equal(t, CollectionPrivate, repo.collection)
}

func TestGetInterfaceRejectsUnknownType(t *testing.T) {
	r := newRouter(&stubRepo{})
	for _, target := range []string{"/admin/interface", "/admin/interface?type=dashboard"} {
		rec := get(r, target, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"code":"`+httpx.CodeValidation+`"`)
	}
}

func TestGetInterfaceMissingDefinition(t *testing.T) {
	rec := get(newRouter(&stubRepo{}), "/admin/interface?type=tag", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"`+httpx.CodeNotFound+`"`)
}

func TestGetInterfaceStoreDown(t *testing.T) {
	repo := &stubRepo{err: errors.Join(ErrStoreUnreachable, errors.New("dial"))}
	rec := get(newRouter(repo), "/admin/interface?type=menu", true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), rbac.CodeStoreUnreachable)
}

func TestGetInterfaceRequiresIdentity(t *testing.T) {
	rec := get(newRouter(&stubRepo{docs: map[Type]Document{TypeMenu: {}}}), "/admin/interface?type=menu", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), rbac.CodeAuthRequired)
}
