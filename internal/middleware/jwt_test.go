package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindflow/companion-backend/internal/utils"
)

// Rejection paths never reach the database, so a nil repo suffices.
func runGuard(t *testing.T, guard echo.MiddlewareFunc, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	require.NoError(t, guard(next)(e.NewContext(req, rec)))
	return rec
}

func TestProtectRejectsMissingToken(t *testing.T) {
	rec := runGuard(t, Protect("secret", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not authorized, no token")
}

func TestProtectRejectsNonBearerScheme(t *testing.T) {
	rec := runGuard(t, Protect("secret", nil), "Basic abc123")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not authorized, no token")
}

func TestProtectRejectsBadToken(t *testing.T) {
	rec := runGuard(t, Protect("secret", nil), "Bearer not.a.token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not authorized, token failed")
}

func TestProtectRejectsTokenSignedWithOtherSecret(t *testing.T) {
	raw, err := utils.SignToken("other-secret", "64f1c0ffee0000000000abcd")
	require.NoError(t, err)

	rec := runGuard(t, Protect("secret", nil), "Bearer "+raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectRejectsNonObjectIDSubject(t *testing.T) {
	raw, err := utils.SignToken("secret", "not-an-object-id")
	require.NoError(t, err)

	rec := runGuard(t, Protect("secret", nil), "Bearer "+raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectCaregiverRejectsMissingToken(t *testing.T) {
	rec := runGuard(t, ProtectCaregiver("secret", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
