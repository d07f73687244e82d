// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mask exposes single-object mask, verify, and verifyRemote over HTTP.
package mask

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/trellisfw/masklink/internal/application/services"
	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/internal/infrastructure/metrics"
	"github.com/trellisfw/masklink/internal/infrastructure/transport"
	"github.com/trellisfw/masklink/internal/presentation/api/shared"
	"github.com/trellisfw/masklink/pkg/config"
)

// maskService is the subset of MaskService this handler drives.
type maskService interface {
	Mask(in services.MaskInput) (models.MaskResult, error)
	Verify(in services.VerifyInput) models.MaskVerification
	VerifyRemote(ctx context.Context, in services.VerifyRemoteInput) (models.RemoteMaskVerification, error)
}

// Handler serves the /mask, /verify, and /verify-remote endpoints.
type Handler struct {
	masks     maskService
	transport config.TransportConfig
}

// NewHandler constructs a Handler.
func NewHandler(masks maskService, transportCfg config.TransportConfig) *Handler {
	return &Handler{masks: masks, transport: transportCfg}
}

// maskRequest is the body of POST /api/v1/mask.
type maskRequest struct {
	Original models.JSON `json:"original"`
	URL      string      `json:"url"`
	Nonce    string      `json:"nonce,omitempty"`
	NonceURL string      `json:"nonceurl"`
}

// HandleMask handles POST /api/v1/mask.
func (h *Handler) HandleMask(w http.ResponseWriter, r *http.Request) {
	var req maskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteValidationError(w, "invalid request body", nil)
		return
	}

	start := time.Now()
	result, err := h.masks.Mask(services.MaskInput{
		Original: req.Original,
		URL:      req.URL,
		Nonce:    req.Nonce,
		NonceURL: req.NonceURL,
	})
	metrics.RecordOperation("mask", outcome(err), time.Since(start).Seconds())
	if err != nil {
		writeMaskError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, result)
}

// verifyRequest is the body of POST /api/v1/verify.
type verifyRequest struct {
	Mask     models.JSON `json:"mask"`
	Original models.JSON `json:"original"`
	Nonce    string      `json:"nonce"`
}

// HandleVerify handles POST /api/v1/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteValidationError(w, "invalid request body", nil)
		return
	}

	start := time.Now()
	result := h.masks.Verify(services.VerifyInput{
		Mask:     req.Mask,
		Original: req.Original,
		Nonce:    req.Nonce,
	})
	metrics.RecordOperation("verify", verdictOutcome(result.Valid && result.Match), time.Since(start).Seconds())

	shared.WriteJSON(w, http.StatusOK, result)
}

// verifyRemoteRequest is the body of POST /api/v1/verify-remote.
type verifyRemoteRequest struct {
	Mask   models.JSON `json:"mask"`
	Token  string      `json:"token,omitempty"`
	Domain string      `json:"domain,omitempty"`
}

// HandleVerifyRemote handles POST /api/v1/verify-remote.
func (h *Handler) HandleVerifyRemote(w http.ResponseWriter, r *http.Request) {
	var req verifyRemoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteValidationError(w, "invalid request body", nil)
		return
	}

	start := time.Now()
	result, err := h.masks.VerifyRemote(r.Context(), services.VerifyRemoteInput{
		Mask:           req.Mask,
		Token:          req.Token,
		Domain:         req.Domain,
		TimeoutMs:      h.transport.TimeoutMs,
		MaxRedirects:   h.transport.MaxRedirects,
		AllowedDomains: h.transport.AllowedDomains,
	})
	if err != nil {
		metrics.RecordOperation("verify_remote", "error", time.Since(start).Seconds())
		writeMaskError(w, err)
		return
	}
	metrics.RecordOperation("verify_remote", verdictOutcome(result.Valid && result.Match), time.Since(start).Seconds())

	shared.WriteJSON(w, http.StatusOK, result)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func verdictOutcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func writeMaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrMissingNonceURL), errors.Is(err, models.ErrInvalidArgument):
		shared.WriteValidationError(w, err.Error(), nil)
	case errors.Is(err, models.ErrMissingCredentials):
		shared.WriteError(w, http.StatusBadRequest, shared.ErrCodeBadRequest, err.Error(), nil)
	case transport.NotFound(err):
		shared.WriteNotFound(w, "resource")
	default:
		shared.WriteInternalError(w)
	}
}
