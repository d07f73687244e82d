// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resource exposes resource-level masking, reconstruction, remote
// masking-as-a-new-resource, and full signature-chain verification over HTTP.
package resource

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
	"github.com/trellisfw/masklink/pkg/crypto"
)

type resourceService interface {
	MaskResource(in services.MaskResourceInput) (models.ResourceMaskResult, error)
	ReconstructOriginalFromMaskPaths(ctx context.Context, in services.ReconstructInput) models.ReconstructResult
}

type remoteMaskerService interface {
	MaskRemoteResourceAsNewResource(ctx context.Context, in services.MaskRemoteInput) (string, error)
}

type verifyChainService interface {
	VerifyRemoteResource(ctx context.Context, in services.VerifyChainInput) (models.ChainVerdict, error)
}

// auditRecorder persists a completed verifyRemoteResource verdict and decides whether
// it differs enough from the previous one to alert on. The handler skips it when no
// recorder is configured (nil).
type auditRecorder interface {
	RecordAndAlert(ctx context.Context, url string, verdict models.ChainVerdict)
}

// Handler serves the /resource/* endpoints.
type Handler struct {
	resources resourceService
	remote    remoteMaskerService
	chain     verifyChainService
	audit     auditRecorder
	transport config.TransportConfig

	// signing and signHeader are optional: when signing is non-nil, every resource
	// masked through HandleMaskRemote is also signed server-side before it is
	// persisted.
	signing    *services.SigningService
	signHeader crypto.Header
}

// NewHandler constructs a Handler.
func NewHandler(resources resourceService, remote remoteMaskerService, chain verifyChainService, audit auditRecorder, transportCfg config.TransportConfig) *Handler {
	return &Handler{resources: resources, remote: remote, chain: chain, audit: audit, transport: transportCfg}
}

// WithSigning enables server-side signing of every remotely masked resource.
func (h *Handler) WithSigning(signing *services.SigningService, header crypto.Header) *Handler {
	h.signing = signing
	h.signHeader = header
	return h
}

// maskResourceRequest is the body of POST /api/v1/resource/mask.
type maskResourceRequest struct {
	Resource      models.Resource `json:"resource"`
	URLToResource string          `json:"urlToResource"`
	Paths         []string        `json:"paths"`
	Nonce         string          `json:"nonce,omitempty"`
	NonceURL      string          `json:"nonceurl,omitempty"`
}

// HandleMaskResource handles POST /api/v1/resource/mask.
func (h *Handler) HandleMaskResource(w http.ResponseWriter, r *http.Request) {
	var req maskResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteValidationError(w, "invalid request body", nil)
		return
	}

	start := time.Now()
	result, err := h.resources.MaskResource(services.MaskResourceInput{
		Resource:      req.Resource,
		URLToResource: req.URLToResource,
		Paths:         req.Paths,
		Nonce:         req.Nonce,
		NonceURL:      req.NonceURL,
	})
	metrics.RecordOperation("mask_resource", outcome(err), time.Since(start).Seconds())
	if err != nil {
		writeResourceError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, result)
}

// reconstructRequest is the body of POST /api/v1/resource/reconstruct.
type reconstructRequest struct {
	MaskedResource models.Resource `json:"maskedResource"`
	Paths          []string        `json:"paths"`
	Token          string          `json:"token,omitempty"`
	Domain         string          `json:"domain,omitempty"`
}

// HandleReconstruct handles POST /api/v1/resource/reconstruct.
func (h *Handler) HandleReconstruct(w http.ResponseWriter, r *http.Request) {
	var req reconstructRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteValidationError(w, "invalid request body", nil)
		return
	}

	start := time.Now()
	result := h.resources.ReconstructOriginalFromMaskPaths(r.Context(), services.ReconstructInput{
		MaskedResource: req.MaskedResource,
		Paths:          req.Paths,
		Token:          req.Token,
		Domain:         req.Domain,
		TimeoutMs:      h.transport.TimeoutMs,
		MaxRedirects:   h.transport.MaxRedirects,
		AllowedDomains: h.transport.AllowedDomains,
	})
	metrics.RecordOperation("reconstruct_resource", reconstructOutcome(result), time.Since(start).Seconds())

	shared.WriteJSON(w, http.StatusOK, result)
}

// maskRemoteRequest is the body of POST /api/v1/resource/mask-remote.
type maskRemoteRequest struct {
	URL    string   `json:"url"`
	Paths  []string `json:"paths"`
	Token  string   `json:"token,omitempty"`
	Domain string   `json:"domain,omitempty"`
}

// HandleMaskRemote handles POST /api/v1/resource/mask-remote, persisting the newly
// masked resource and returning its id.
func (h *Handler) HandleMaskRemote(w http.ResponseWriter, r *http.Request) {
	var req maskRemoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteValidationError(w, "invalid request body", nil)
		return
	}

	in := services.MaskRemoteInput{
		URL:            req.URL,
		Paths:          req.Paths,
		Token:          req.Token,
		Domain:         req.Domain,
		TimeoutMs:      h.transport.TimeoutMs,
		MaxRedirects:   h.transport.MaxRedirects,
		AllowedDomains: h.transport.AllowedDomains,
	}
	if h.signing != nil {
		in.SignatureCallback = func(_ context.Context, masked models.Resource) (models.Resource, error) {
			return h.signing.SignResource(services.SignInput{
				Resource: masked,
				Header:   h.signHeader,
				Paths:    req.Paths,
			})
		}
	}

	start := time.Now()
	id, err := h.remote.MaskRemoteResourceAsNewResource(r.Context(), in)
	metrics.RecordOperation("mask_remote_resource", outcome(err), time.Since(start).Seconds())
	if err != nil {
		writeResourceError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// verifyRemoteResourceRequest is the body of POST /api/v1/resource/verify-remote.
type verifyRemoteResourceRequest struct {
	URL    string `json:"url"`
	Token  string `json:"token,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// HandleVerifyRemoteResource handles POST /api/v1/resource/verify-remote, peeling the
// full signature chain and recording the resulting verdict for audit/alerting.
func (h *Handler) HandleVerifyRemoteResource(w http.ResponseWriter, r *http.Request) {
	var req verifyRemoteResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteValidationError(w, "invalid request body", nil)
		return
	}

	start := time.Now()
	verdict, err := h.chain.VerifyRemoteResource(r.Context(), services.VerifyChainInput{
		URL:            req.URL,
		Token:          req.Token,
		Domain:         req.Domain,
		AcceptLanguage: r.Header.Get("Accept-Language"),
		TimeoutMs:      h.transport.TimeoutMs,
		MaxRedirects:   h.transport.MaxRedirects,
		AllowedDomains: h.transport.AllowedDomains,
	})
	if err != nil {
		metrics.RecordOperation("verify_remote_resource", "error", time.Since(start).Seconds())
		writeResourceError(w, err)
		return
	}
	metrics.RecordOperation("verify_remote_resource", "ok", time.Since(start).Seconds())
	metrics.RecordVerdict("trusted", verdict.Trusted)
	metrics.RecordVerdict("valid", verdict.Valid)
	metrics.RecordVerdict("unchanged", verdict.Unchanged)
	metrics.RecordVerdict("match", verdict.Match)

	if h.audit != nil {
		h.audit.RecordAndAlert(r.Context(), req.URL, verdict)
	}

	shared.WriteJSON(w, http.StatusOK, verdict)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func reconstructOutcome(result models.ReconstructResult) string {
	if !result.Valid || !result.Match {
		return "error"
	}
	return "ok"
}

func writeResourceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		shared.WriteValidationError(w, err.Error(), nil)
	case errors.Is(err, models.ErrMissingCredentials):
		shared.WriteError(w, http.StatusBadRequest, shared.ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, models.ErrModificationUnsupported):
		shared.WriteError(w, http.StatusUnprocessableEntity, shared.ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, models.ErrOriginalFetchFailed):
		shared.WriteError(w, http.StatusBadGateway, shared.ErrCodeServiceUnavailable, err.Error(), nil)
	case transport.NotFound(err):
		shared.WriteNotFound(w, "resource")
	default:
		shared.WriteInternalError(w)
	}
}
