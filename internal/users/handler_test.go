package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/rbac"
	"github.com/freshcart/console/internal/shared"
)

type tokenTable map[string]*access.Actor

// tokenTable doubles as the session store: each token names a session of
// the same id.
func (t tokenTable) Verify(token string) (shared.SessionClaims, error) {
	actor, ok := t[token]
	if !ok {
		return shared.SessionClaims{}, errors.New("unknown token")
	}
	return shared.SessionClaims{UserID: actor.ID, SessionID: token}, nil
}

func (t tokenTable) Lookup(ctx context.Context, sessionID string) (shared.Identity, bool, error) {
	actor, ok := t[sessionID]
	if !ok {
		return shared.Identity{}, false, nil
	}
	return shared.Identity{Actor: *actor}, true, nil
}

func newTestRouter(t *testing.T, repo *memoryRepo, refresh *refreshSpy) http.Handler {
	t.Helper()
	rbacService, err := rbac.NewService(nil)
	require.NoError(t, err)
	tokens := tokenTable{
		"admin":   {ID: "1", Role: access.RoleAdmin},
		"support": {ID: "2", Role: access.RoleSupport},
	}
	mw := rbac.Middleware{Service: rbacService, Tokens: tokens, Sessions: tokens}
	h := NewHandler(nil, NewService(repo, nil, nil, refresh, nil), mw)
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.Route("/users", h.MountRoutes)
	return r
}

func call(router http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListUsersIncludesTableActions(t *testing.T) {
	router := newTestRouter(t, newMemoryRepo(), nil)

	rec := call(router, http.MethodGet, "/users?per_page=2", "support", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Users, 2)
	assert.Equal(t, 3, body.Pagination.Total)
	assert.Equal(t, access.TableActionsFor(access.DefaultPolicy().Lookup(access.RoleSupport, access.ModuleUsers)), body.Actions)
	assert.Equal(t, body.Actions.ShowActionsColumn(), body.ShowActionsColumn)
}

func TestListUsersFiltersByRole(t *testing.T) {
	router := newTestRouter(t, newMemoryRepo(), nil)

	rec := call(router, http.MethodGet, "/users?role=shop_owner", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Users, 1)
	assert.Equal(t, "Citra", body.Users[0].Name)

	rec = call(router, http.MethodGet, "/users?role=warehouse", "admin", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUsersRequiresAuthentication(t *testing.T) {
	router := newTestRouter(t, newMemoryRepo(), nil)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?return_to=%2Fusers", rec.Header().Get("Location"))
}

func TestShowUserControls(t *testing.T) {
	router := newTestRouter(t, newMemoryRepo(), nil)

	rec := call(router, http.MethodGet, "/users/2", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var admin struct {
		User        User                   `json:"user"`
		Permissions []access.RawPermission `json:"permissions"`
		Controls    access.UserControls    `json:"controls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &admin))
	assert.Equal(t, "Bima", admin.User.Name)
	assert.True(t, admin.Controls.EditPermissions)
	assert.Equal(t, []access.RawPermission{{Module: "canAccessLogs", CanRead: true}}, admin.Permissions)

	rec = call(router, http.MethodGet, "/users/99", "admin", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(router, http.MethodGet, "/users/abc", "admin", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShowUserHidesPermissionsWithoutCapability(t *testing.T) {
	router := newTestRouter(t, newMemoryRepo(), nil)

	rec := call(router, http.MethodGet, "/users/2", "support", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"permissions"`)
	assert.NotContains(t, rec.Body.String(), `"capabilities"`)
}

func TestUpdatePermissionsEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	refresh := &refreshSpy{}
	router := newTestRouter(t, repo, refresh)

	rec := call(router, http.MethodPut, "/users/3/permissions", "admin",
		`{"permissions":[{"module":"canAccessProducts","canRead":true,"canView":true}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []access.RawPermission{{Module: "canAccessProducts", CanRead: true, CanView: true}}, repo.records[3])
	assert.Equal(t, []int64{3}, refresh.users)
	assert.Contains(t, rec.Body.String(), `"canAccessProducts":{"read":true`)

	rec = call(router, http.MethodPut, "/users/3/permissions", "admin", `{"permissions":[{"module":"canAccessCoupons"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(router, http.MethodPut, "/users/3/permissions", "admin", `{"records":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdatePermissionsForbiddenForSupport(t *testing.T) {
	repo := newMemoryRepo()
	router := newTestRouter(t, repo, nil)

	rec := call(router, http.MethodPut, "/users/3/permissions", "support", `{"permissions":[]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"redirect":"/unauthorized"}`, rec.Body.String())
	assert.Nil(t, repo.records[3])
}
