package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dbops-agent/internal/interfaces/http/middleware"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

func TestAuthAPIHandler_Login(t *testing.T) {
	failures := 0
	h := NewAuthAPIHandler(middleware.AuthConfig{
		Enabled:     true,
		BearerToken: "s3cret",
		OnFailure:   func() { failures++ },
	}, logger.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"token":"s3cret"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.AuthCookieName, cookies[0].Name)
	assert.Equal(t, "s3cret", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("token=wrong"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, 1, failures)
}

func TestAuthAPIHandler_StatusAndLogout(t *testing.T) {
	h := NewAuthAPIHandler(middleware.AuthConfig{Enabled: true, BearerToken: "s3cret"}, logger.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AuthCookieName, Value: "s3cret"})
	rec := httptest.NewRecorder()
	h.Status(rec, req)
	assert.JSONEq(t, `{"auth_enabled":true,"authenticated":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))
	assert.JSONEq(t, `{"auth_enabled":true,"authenticated":false}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestAuthAPIHandler_LoginWhenDisabled(t *testing.T) {
	h := NewAuthAPIHandler(middleware.AuthConfig{}, logger.New("error"))

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"auth_enabled":false}`, rec.Body.String())
}
