package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventloom/publish-governance/internal/auth"
)

var secret = []byte("test-secret")

func signToken(t *testing.T, subject string, roles []string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   subject,
		"roles": roles,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return raw
}

func TestParseToken(t *testing.T) {
	raw := signToken(t, "user-1", []string{auth.RoleOrganizer})

	p, err := auth.ParseToken(secret, raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.Subject)
	assert.True(t, auth.HasRole(p, auth.RoleOrganizer))
	assert.False(t, auth.HasRole(p, auth.RoleReviewer))
}

func TestParseTokenWrongSecret(t *testing.T) {
	raw := signToken(t, "user-1", nil)
	_, err := auth.ParseToken([]byte("other-secret"), raw)
	assert.Error(t, err)
}

func middlewareProbe() (http.Handler, *auth.Principal) {
	var seen auth.Principal
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := auth.FromContext(r.Context()); p != nil {
			seen = *p
		}
		w.WriteHeader(http.StatusOK)
	})
	return h, &seen
}

func TestMiddlewarePopulatesPrincipal(t *testing.T) {
	probe, seen := middlewareProbe()
	handler := auth.NewMiddleware(secret)(probe)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-2", []string{auth.RoleReviewer}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-2", seen.Subject)
}

func TestMiddlewareRejectsBadToken(t *testing.T) {
	probe, _ := middlewareProbe()
	handler := auth.NewMiddleware(secret)(probe)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareAllowsAnonymous(t *testing.T) {
	probe, seen := middlewareProbe()
	handler := auth.NewMiddleware(secret)(probe)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, seen.Subject)
}

func TestRequireAnyRole(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := auth.NewMiddleware(secret)(auth.RequireAnyRole(auth.RoleReviewer)(inner))

	// No token at all.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Token without the role.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-3", []string{auth.RoleOrganizer}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Token with the role.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-3", []string{auth.RoleReviewer}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
