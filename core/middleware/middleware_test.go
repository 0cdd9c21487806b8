package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorbase/core/config"
	"tutorbase/core/constants"
	"tutorbase/core/utils"
)

const testSecret = "middleware-test-secret"

func newAuthContext(authorization string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func runAuth(c echo.Context) error {
	mw := NewMiddleware(&config.Config{Auth: config.AuthConfig{JWTSecret: testSecret}})
	handler := mw.AuthMiddleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return handler(c)
}

func TestAuthMiddleware_ValidTokenBindsClaims(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()

	token, err := utils.GenerateToken(userID, orgID, constants.RoleStaff, testSecret, time.Minute)
	require.NoError(t, err)

	c := newAuthContext("Bearer " + token)
	require.NoError(t, runAuth(c))

	claims, ok := c.Get(constants.ContextTokenData).(*utils.TokenClaims)
	require.True(t, ok)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, orgID, claims.OrganizationID)
	assert.Equal(t, constants.RoleStaff, claims.Role)
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	expired, err := utils.GenerateToken(uuid.New(), uuid.New(), constants.RoleOwner, testSecret, -time.Minute)
	require.NoError(t, err)
	wrongSecret, err := utils.GenerateToken(uuid.New(), uuid.New(), constants.RoleOwner, "another-secret", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name          string
		authorization string
	}{
		{name: "missing header", authorization: ""},
		{name: "not a bearer token", authorization: "Basic abc"},
		{name: "garbage token", authorization: "Bearer not-a-jwt"},
		{name: "expired token", authorization: "Bearer " + expired},
		{name: "wrong secret", authorization: "Bearer " + wrongSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newAuthContext(tt.authorization)
			err := runAuth(c)
			require.Error(t, err)

			httpErr, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
			assert.Nil(t, c.Get(constants.ContextTokenData))
		})
	}
}
