// SPDX-License-Identifier: AGPL-3.0-or-later

// Command masklink-server runs the Mask & Link HTTP API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trellisfw/masklink/internal/application/services"
	"github.com/trellisfw/masklink/internal/infrastructure/adminauth"
	"github.com/trellisfw/masklink/internal/infrastructure/alert"
	"github.com/trellisfw/masklink/internal/infrastructure/audit"
	"github.com/trellisfw/masklink/internal/infrastructure/metrics"
	"github.com/trellisfw/masklink/internal/presentation/api"
	apiAdmin "github.com/trellisfw/masklink/internal/presentation/api/admin"
	apiMask "github.com/trellisfw/masklink/internal/presentation/api/mask"
	apiResource "github.com/trellisfw/masklink/internal/presentation/api/resource"
	"github.com/trellisfw/masklink/pkg/config"
	"github.com/trellisfw/masklink/pkg/crypto"
	"github.com/trellisfw/masklink/pkg/logger"
)

// Build-time variables set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logger.Level))
	logger.Logger.Info("starting masklink server", "version", Version, "commit", Commit)

	signer, err := crypto.NewEd25519Signer(cfg.TrustedSigners...)
	if err != nil {
		log.Fatalf("failed to initialize signing key: %v", err)
	}

	registry := prometheus.NewRegistry()
	if err := metrics.Init(registry); err != nil {
		log.Fatalf("failed to initialize metrics: %v", err)
	}

	mask := services.NewMaskService()
	path := services.NewPathService()
	resource := services.NewResourceService(mask)
	remoteMasker := services.NewRemoteMaskerService(resource)
	signing := services.NewSigningService(signer)
	verifyChain := services.NewVerifyChainService(signer, resource, path)

	maskHandler := apiMask.NewHandler(mask, cfg.Transport)

	var auditRepo *audit.Repository
	var auditRecorder *audit.Recorder
	if cfg.Database.DSN != "" {
		db, err := audit.InitDB(ctx, audit.Config{DSN: cfg.Database.DSN})
		if err != nil {
			log.Fatalf("failed to initialize audit database: %v", err)
		}
		defer db.Close()

		var mailer *alert.Mailer
		if cfg.Mail.Enabled {
			mailer = alert.NewMailer(cfg.Mail, cfg.Mail.Recipients)
		}

		auditRepo = audit.NewRepository(db)
		auditRecorder = audit.NewRecorder(auditRepo, mailer)
	} else {
		logger.Logger.Warn("masklink: MASKLINK_DB_DSN not set, audit history and verdict-regression alerts are disabled")
	}

	var resourceHandler *apiResource.Handler
	if auditRecorder != nil {
		resourceHandler = apiResource.NewHandler(resource, remoteMasker, verifyChain, auditRecorder, cfg.Transport)
	} else {
		resourceHandler = apiResource.NewHandler(resource, remoteMasker, verifyChain, nil, cfg.Transport)
	}
	resourceHandler = resourceHandler.WithSigning(signing, crypto.Header{})

	adminAuth := adminauth.NewService(adminauth.Config{
		SessionName:   cfg.Admin.SessionName,
		BaseURL:       cfg.Server.BaseURL,
		ClientID:      cfg.OAuth.ClientID,
		ClientSecret:  cfg.OAuth.ClientSecret,
		AuthURL:       cfg.OAuth.AuthURL,
		TokenURL:      cfg.OAuth.TokenURL,
		UserInfoURL:   cfg.OAuth.UserInfoURL,
		Scopes:        cfg.OAuth.Scopes,
		AllowedDomain: cfg.Admin.AllowedDomain,
		CookieSecret:  cfg.OAuth.CookieSecret,
		SecureCookies: cfg.Admin.SecureCookies,
	})

	var adminHandler *apiAdmin.Handler
	if auditRepo != nil {
		adminHandler = apiAdmin.NewHandler(adminAuth, auditRepo)
	} else {
		adminHandler = apiAdmin.NewHandler(adminAuth, nil)
	}

	router := api.NewRouter(api.RouterConfig{
		Mask:              maskHandler,
		Resource:          resourceHandler,
		Admin:             adminHandler,
		AdminAuth:         adminAuth,
		AllowedCORSOrigin: cfg.Server.BaseURL,
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Logger.Info("masklink server listening", "addr", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("shutting down masklink server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("server forced to shutdown", "error", err)
	}

	logger.Logger.Info("masklink server exited")
}
