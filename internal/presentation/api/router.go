// SPDX-License-Identifier: AGPL-3.0-or-later
package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/yaml.v3"

	"github.com/trellisfw/masklink/internal/infrastructure/adminauth"
	apiAdmin "github.com/trellisfw/masklink/internal/presentation/api/admin"
	"github.com/trellisfw/masklink/internal/presentation/api/health"
	apiMask "github.com/trellisfw/masklink/internal/presentation/api/mask"
	apiResource "github.com/trellisfw/masklink/internal/presentation/api/resource"
	"github.com/trellisfw/masklink/internal/presentation/api/shared"
)

// RouterConfig holds everything needed to assemble the masklink HTTP API.
type RouterConfig struct {
	Mask      *apiMask.Handler
	Resource  *apiResource.Handler
	Admin     *apiAdmin.Handler
	AdminAuth *adminauth.Service

	AllowedCORSOrigin string
	GeneralRateLimit  int // requests per minute, default 100
	MaskRateLimit     int // requests per minute on /mask and /resource endpoints, default 30
}

// NewRouter builds the chi router serving /api/v1.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	apiMiddleware := shared.NewMiddleware(cfg.AdminAuth, cfg.AllowedCORSOrigin)

	generalLimit := cfg.GeneralRateLimit
	if generalLimit == 0 {
		generalLimit = 100
	}
	maskLimit := cfg.MaskRateLimit
	if maskLimit == 0 {
		maskLimit = 30
	}

	generalRateLimit := shared.NewRateLimit(generalLimit, time.Minute)
	maskRateLimit := shared.NewRateLimit(maskLimit, time.Minute)

	r.Use(middleware.RequestID)
	r.Use(shared.AddRequestIDToContext)
	r.Use(middleware.RealIP)
	r.Use(shared.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(shared.SecurityHeaders)
	r.Use(apiMiddleware.CORS)
	r.Use(generalRateLimit.Middleware)

	healthHandler := health.NewHandler()

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.HandleHealth)

		// Single-object mask/verify/verifyRemote, and the resource-level operations
		// (mask, reconstruct, mask-remote, verify-remote): all public, since the
		// protocol's own trust model is the hash commitment and signature chain, not
		// an API key.
		r.Group(func(r chi.Router) {
			r.Use(maskRateLimit.Middleware)

			r.Post("/mask", cfg.Mask.HandleMask)
			r.Post("/verify", cfg.Mask.HandleVerify)
			r.Post("/verify-remote", cfg.Mask.HandleVerifyRemote)

			r.Route("/resource", func(r chi.Router) {
				r.Post("/mask", cfg.Resource.HandleMaskResource)
				r.Post("/reconstruct", cfg.Resource.HandleReconstruct)
				r.Post("/mask-remote", cfg.Resource.HandleMaskRemote)
				r.Post("/verify-remote", cfg.Resource.HandleVerifyRemoteResource)
			})
		})

		// Admin surface: operator login and audit history, gated by the OAuth2 admin
		// session; no CSRF check is applied to these routes, logout included.
		r.Mount("/admin", apiAdmin.Routes(cfg.Admin, apiMiddleware.RequireAdmin))
	})

	r.Get("/openapi.json", serveOpenAPISpec)

	return r
}

// serveOpenAPISpec reads openapi.yaml, if present, and serves it as JSON.
func serveOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	yamlData, err := os.ReadFile("openapi.yaml")
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"info":{"title":"Mask & Link API","version":"1.0.0"},"message":"OpenAPI spec file not found - see openapi.yaml"}`))
		return
	}

	var spec map[string]interface{}
	if err := yaml.Unmarshal(yamlData, &spec); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to parse OpenAPI spec"}`))
		return
	}

	jsonData, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to convert OpenAPI spec to JSON"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonData)
}

