package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindflow/companion-backend/internal/config"
	"github.com/mindflow/companion-backend/internal/notify"
)

func postJSON(t *testing.T, h echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func TestEmailSendRejectsMissingFields(t *testing.T) {
	h := NewEmailHandler(notify.NewMailer(&config.Config{}))

	rec := postJSON(t, h.Send, `{"to":"a@b.com","subject":"s"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "To, subject, and text are required fields")
}

func TestEmailSendFailsWhenUnconfigured(t *testing.T) {
	h := NewEmailHandler(notify.NewMailer(&config.Config{}))

	rec := postJSON(t, h.Send, `{"to":"a@b.com","subject":"s","text":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email service not properly configured")
}

func TestHealthEndpoints(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, Health(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, Ping(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Server is reachable")
}
