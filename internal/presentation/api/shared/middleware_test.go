// SPDX-License-Identifier: AGPL-3.0-or-later
package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trellisfw/masklink/internal/infrastructure/adminauth"
)

func newTestMiddleware(t *testing.T) *Middleware {
	t.Helper()
	admin := adminauth.NewService(adminauth.Config{
		SessionName:  "test_admin",
		CookieSecret: []byte("01234567890123456789012345678901"),
	})
	return NewMiddleware(admin, "https://dashboard.example.com")
}

func TestRequireAdminRejectsMissingSession(t *testing.T) {
	t.Parallel()
	m := newTestMiddleware(t)

	called := false
	handler := m.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/audit", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSOnlyEchoesAllowedOrigin(t *testing.T) {
	t.Parallel()
	m := newTestMiddleware(t)

	handler := m.CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCSRFProtectRejectsUnsafeMethodWithoutToken(t *testing.T) {
	t.Parallel()
	m := newTestMiddleware(t)

	handler := m.CSRFProtect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/something", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFProtectAllowsValidToken(t *testing.T) {
	t.Parallel()
	m := newTestMiddleware(t)

	token, err := m.GenerateCSRFToken()
	assert.NoError(t, err)

	handler := m.CSRFProtect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/something", nil)
	req.Header.Set(CSRFTokenHeader, token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	t.Parallel()
	rl := NewRateLimit(2, time.Second)

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.1:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
