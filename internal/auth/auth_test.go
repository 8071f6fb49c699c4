package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

func TestService_CredentialRoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewService("s3cret", 2*time.Minute, 72*time.Hour)
	require.NoError(t, err)
	svc.WithClock(func() time.Time { return now })

	id := Identity{Username: "fola", Role: marketplace.RoleFreelancer, City: "Lagos"}
	tok, exp, err := svc.IssueConnectionCredential(id)
	require.NoError(t, err)
	assert.Equal(t, now.Add(2*time.Minute), exp)

	claims, err := svc.VerifyConnection(tok)
	require.NoError(t, err)
	assert.Equal(t, id, claims.Identity())

	_, err = svc.VerifySession(tok)
	assert.ErrorIs(t, err, ErrWrongTokenKind)

	now = now.Add(3 * time.Minute)
	_, err = svc.VerifyConnection(tok)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")
}

func TestService_RejectsForeignSignature(t *testing.T) {
	a, err := NewService("one", time.Minute, time.Hour)
	require.NoError(t, err)
	b, err := NewService("two", time.Minute, time.Hour)
	require.NoError(t, err)

	tok, _, err := a.IssueSession(Identity{Username: "chidi", Role: marketplace.RoleClient})
	require.NoError(t, err)
	_, err = b.VerifySession(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewService("", time.Minute, time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, _, err = a.IssueSession(Identity{Username: "x", Role: "admin"})
	assert.Error(t, err)
}

func TestAuthenticate_StaticUsers(t *testing.T) {
	users, err := ParseStaticUsers("chidi:pw1:client:Lagos, fola:pw2:freelancer")
	require.NoError(t, err)
	ctx := context.Background()

	u, err := Authenticate(ctx, users, "chidi", "pw1")
	require.NoError(t, err)
	assert.Equal(t, marketplace.RoleClient, u.Role)
	assert.Equal(t, "Lagos", u.City)

	_, err = Authenticate(ctx, users, "chidi", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = Authenticate(ctx, users, "nobody", "pw1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = ParseStaticUsers("broken")
	assert.Error(t, err)
	_, err = ParseStaticUsers("x:y:admin")
	assert.Error(t, err)
}

func TestHandler_LoginAndCredential(t *testing.T) {
	svc, err := NewService("s3cret", time.Minute, time.Hour)
	require.NoError(t, err)
	users, err := ParseStaticUsers("chidi:pw1:client:Lagos")
	require.NoError(t, err)
	h := NewHandler(svc, users, nil)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"chidi","password":"pw1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Login(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"chidi","password":"nope"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	require.NoError(t, h.Login(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/auth/credential", nil), rec)
	SetIdentity(c, Identity{Username: "chidi", Role: marketplace.RoleClient, City: "Lagos"})
	require.NoError(t, h.Credential(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
