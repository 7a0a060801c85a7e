package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewManager(client, time.Hour)
}

func TestManagerIssueResolve(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	want := Principal{UserID: 7, Role: RoleManager}
	require.NoError(t, m.Issue(ctx, "tok-1", want))

	got, err := m.Resolve(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.NoError(t, m.Revoke(ctx, "tok-1"))
	_, err = m.Resolve(ctx, "tok-1")
	require.ErrorIs(t, err, errNoToken)
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	m := newTestManager(t)
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatePassesPrincipal(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Issue(ctx, "tok-2", Principal{UserID: 3, Role: RoleSiteEngineer}))

	var seen Principal
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(3), seen.UserID)
	require.Equal(t, RoleSiteEngineer, seen.Role)
}

func TestRequireRole(t *testing.T) {
	gate := RequireRole(RoleManager)
	handler := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: 1, Role: RoleSiteEngineer}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: 2, Role: RoleManager}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
