// SPDX-License-Identifier: AGPL-3.0-or-later
package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/trellisfw/masklink/internal/infrastructure/adminauth"
)

// ContextKey is the type of every value this package stores on a request context.
type ContextKey string

const (
	// ContextKeyOperator is the context key for the authenticated admin operator.
	ContextKeyOperator ContextKey = "operator"
	// ContextKeyRequestID is the context key for the request ID.
	ContextKeyRequestID ContextKey = "request_id"
	// CSRFTokenHeader is the header name carrying a CSRF token.
	CSRFTokenHeader = "X-CSRF-Token"
	// CSRFTokenCookie is the cookie name carrying a CSRF token.
	CSRFTokenCookie = "csrf_token"
)

// Middleware bundles the admin-gating and cross-cutting HTTP concerns the API router
// wires in front of its route groups.
type Middleware struct {
	admin             *adminauth.Service
	csrfTokens        *sync.Map
	allowedCORSOrigin string
}

// NewMiddleware constructs a Middleware around the admin auth service.
func NewMiddleware(admin *adminauth.Service, allowedCORSOrigin string) *Middleware {
	return &Middleware{
		admin:             admin,
		csrfTokens:        &sync.Map{},
		allowedCORSOrigin: allowedCORSOrigin,
	}
}

// CORS allows the configured single origin (typically an operator dashboard) to call
// the API with credentials.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if m.allowedCORSOrigin != "" && origin == m.allowedCORSOrigin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization, X-CSRF-Token")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests with no valid admin session before they reach the
// wrapped handler.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, err := m.admin.GetOperator(r)
		if err != nil || op == nil {
			WriteUnauthorized(w, "admin session required")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyOperator, op)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOperatorFromContext retrieves the authenticated admin operator from the request
// context, set by RequireAdmin.
func GetOperatorFromContext(ctx context.Context) (*adminauth.Operator, bool) {
	op, ok := ctx.Value(ContextKeyOperator).(*adminauth.Operator)
	return op, ok
}

// GenerateCSRFToken issues and tracks a fresh CSRF token valid for 24 hours.
func (m *Middleware) GenerateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	token := base64.URLEncoding.EncodeToString(b)
	m.csrfTokens.Store(token, time.Now().Add(24*time.Hour))
	return token, nil
}

func (m *Middleware) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}

	val, ok := m.csrfTokens.Load(token)
	if !ok {
		return false
	}
	expiry := val.(time.Time)
	if time.Now().After(expiry) {
		m.csrfTokens.Delete(token)
		return false
	}
	return true
}

// CSRFProtect rejects unsafe-method requests lacking a valid CSRF token.
func (m *Middleware) CSRFProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get(CSRFTokenHeader)
		if token == "" {
			if cookie, err := r.Cookie(CSRFTokenCookie); err == nil {
				token = cookie.Value
			}
		}

		if !m.validateCSRFToken(token) {
			WriteError(w, http.StatusForbidden, ErrCodeCSRFInvalid, "invalid or missing CSRF token", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders adds the baseline hardening headers appropriate to a JSON API.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
		next.ServeHTTP(w, r)
	})
}

// RateLimit is a simple per-IP sliding-window limiter guarding the public mask/verify
// endpoints from abuse.
type RateLimit struct {
	attempts *sync.Map
	limit    int
	window   time.Duration
}

// NewRateLimit constructs a RateLimit allowing limit requests per window, per IP.
func NewRateLimit(limit int, window time.Duration) *RateLimit {
	return &RateLimit{attempts: &sync.Map{}, limit: limit, window: window}
}

// Middleware enforces the rate limit, responding 429 once an IP exceeds it.
func (rl *RateLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := GetClientIP(r)
		now := time.Now()

		var valid []time.Time
		if val, ok := rl.attempts.Load(ip); ok {
			for _, t := range val.([]time.Time) {
				if now.Sub(t) < rl.window {
					valid = append(valid, t)
				}
			}
		}

		if len(valid) >= rl.limit {
			WriteError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded", map[string]interface{}{
				"retryAfterSeconds": rl.window.Seconds(),
			})
			return
		}

		valid = append(valid, now)
		rl.attempts.Store(ip, valid)
		next.ServeHTTP(w, r)
	})
}
