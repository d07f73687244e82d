// SPDX-License-Identifier: AGPL-3.0-or-later

// Package admin serves the operator-facing login flow and audit history lookup
// behind the OAuth2-gated admin surface.
package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/internal/infrastructure/adminauth"
	"github.com/trellisfw/masklink/internal/infrastructure/audit"
	"github.com/trellisfw/masklink/internal/presentation/api/shared"
)

// auditReader is the subset of audit.Repository this handler queries.
type auditReader interface {
	ListRecentForURL(ctx context.Context, url string, limit int) ([]audit.VerificationRecord, error)
}

// Handler serves /admin/login, /admin/callback, /admin/logout, /admin/me, and
// /admin/audit.
type Handler struct {
	auth  *adminauth.Service
	audit auditReader
}

// NewHandler constructs a Handler. audit may be nil; the audit-history endpoint then
// returns 503.
func NewHandler(auth *adminauth.Service, audit auditReader) *Handler {
	return &Handler{auth: auth, audit: audit}
}

// HandleLogin redirects the operator to the identity provider's authorization
// endpoint, per the configured OAuth2 + PKCE flow.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.auth.CreateAuthURL(w, r)
	if err != nil {
		shared.WriteInternalError(w)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback completes the OAuth2 exchange and establishes the admin session.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		shared.WriteValidationError(w, "missing code or state", nil)
		return
	}

	operator, err := h.auth.HandleCallback(r.Context(), w, r, code, state)
	if err != nil {
		writeAdminError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, operator)
}

// HandleLogout clears the admin session.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the currently authenticated operator.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	operator, ok := shared.GetOperatorFromContext(r.Context())
	if !ok {
		shared.WriteUnauthorized(w, "")
		return
	}
	shared.WriteJSON(w, http.StatusOK, operator)
}

// HandleAuditHistory returns the most recent verifyRemoteResource verdicts recorded
// for a given resource URL, newest first.
func (h *Handler) HandleAuditHistory(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		shared.WriteError(w, http.StatusServiceUnavailable, shared.ErrCodeServiceUnavailable, "audit history is not configured", nil)
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		shared.WriteValidationError(w, "url query parameter is required", nil)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.audit.ListRecentForURL(r.Context(), url, limit)
	if err != nil {
		shared.WriteInternalError(w)
		return
	}

	shared.WriteJSON(w, http.StatusOK, records)
}

// Routes mounts the admin handler's endpoints under a chi router. requireAdmin gates
// every route except login and callback, which establish the session in the first
// place.
func Routes(h *Handler, requireAdmin func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/login", h.HandleLogin)
	r.Get("/callback", h.HandleCallback)

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin)
		r.Post("/logout", h.HandleLogout)
		r.Get("/me", h.HandleMe)
		r.Get("/audit", h.HandleAuditHistory)
	})

	return r
}

func writeAdminError(w http.ResponseWriter, err error) {
	switch err {
	case models.ErrUnauthorized:
		shared.WriteUnauthorized(w, err.Error())
	default:
		shared.WriteInternalError(w)
	}
}
