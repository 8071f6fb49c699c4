package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/fieldhub/internal/auth"
	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

func newService(t *testing.T) *auth.Service {
	t.Helper()
	svc, err := auth.NewService("test-secret", time.Minute, time.Hour)
	require.NoError(t, err)
	return svc
}

func serve(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	svc := newService(t)
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		id, _ := auth.IdentityFrom(c)
		return c.String(http.StatusOK, id.Username+"/"+string(id.Role))
	}, JWTMiddleware(svc), RequireRoles(marketplace.RoleClient))

	session, _, err := svc.IssueSession(auth.Identity{Username: "chidi", Role: marketplace.RoleClient, City: "Lagos"})
	require.NoError(t, err)
	credential, _, err := svc.IssueConnectionCredential(auth.Identity{Username: "chidi", Role: marketplace.RoleClient})
	require.NoError(t, err)
	freelancer, _, err := svc.IssueSession(auth.Identity{Username: "fola", Role: marketplace.RoleFreelancer})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		code  int
		body  string
	}{
		{"no header", "", http.StatusUnauthorized, ""},
		{"garbage", "not-a-jwt", http.StatusUnauthorized, ""},
		{"connection credential is not a session", credential, http.StatusUnauthorized, ""},
		{"wrong role", freelancer, http.StatusForbidden, ""},
		{"ok", session, http.StatusOK, "chidi/client"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, tt.token)
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := BearerToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "bearer abc")
	tok, ok := BearerToken(r)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
}
