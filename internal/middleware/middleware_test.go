package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/session"
)

func whoami(c echo.Context) error {
	id, ok := Identity(c)
	if !ok {
		return c.String(http.StatusTeapot, "no identity")
	}
	return c.String(http.StatusOK, id.UserID+":"+string(id.Role))
}

func request(e *echo.Echo, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	iss := session.NewIssuer("secret", time.Hour, nil)
	token, _, err := iss.Issue(session.Identity{UserID: "u1", Role: session.RoleProvider})
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", whoami, JWTMiddleware(iss, zap.NewNop()))

	rec := request(e, "/me", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1:provider", rec.Body.String())

	for _, auth := range []string{"", "Bearer", "Basic abc", "Bearer nope"} {
		rec = request(e, "/me", auth)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, auth)
	}
}

func TestRequireRolesAndAdminGuard(t *testing.T) {
	iss := session.NewIssuer("secret", time.Hour, nil)
	customer, _, err := iss.Issue(session.Identity{UserID: "c1", Role: session.RoleCustomer})
	require.NoError(t, err)
	admin, _, err := iss.Issue(session.Identity{UserID: "a1", Role: session.RoleAdmin})
	require.NoError(t, err)

	e := echo.New()
	authed := JWTMiddleware(iss, zap.NewNop())
	e.GET("/providers-only", whoami, authed, RequireRoles(session.RoleProvider, session.RoleAdmin))
	e.GET("/admin", whoami, authed, AdminGuard)

	assert.Equal(t, http.StatusForbidden, request(e, "/providers-only", "Bearer "+customer).Code)
	assert.Equal(t, http.StatusOK, request(e, "/providers-only", "Bearer "+admin).Code)
	assert.Equal(t, http.StatusForbidden, request(e, "/admin", "Bearer "+customer).Code)
	assert.Equal(t, http.StatusOK, request(e, "/admin", "Bearer "+admin).Code)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger(zap.NewNop()))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	rec := request(e, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))
}
