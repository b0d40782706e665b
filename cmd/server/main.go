package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"leadhook/internal/api"
	"leadhook/internal/api/handlers"
	"leadhook/internal/api/middleware"
	"leadhook/internal/engine/endpoints"
	"leadhook/internal/engine/ingest"
	"leadhook/internal/pkg/logger"
	"leadhook/internal/platform/audit"
	"leadhook/internal/platform/auth"
	"leadhook/internal/platform/config"
	"leadhook/internal/platform/database"
	"leadhook/internal/platform/repositories"
	"leadhook/internal/platform/secrets"
	"leadhook/migrations"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:          "leadhook-server",
		Short:        "Receive webhook deliveries and turn them into leads",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "configs/config.yaml", "Path to config file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Logging)

	if cfg.Webhooks.SecretKey == "" {
		return errors.New("webhooks.secret_key must be set")
	}

	globalDB, err := database.NewGlobalDB(cfg.Database.Global)
	if err != nil {
		return fmt.Errorf("connect global db: %w", err)
	}
	defer globalDB.Close()

	if err := database.ApplyMigrations(globalDB, migrations.FS, migrations.GlobalDir); err != nil {
		return err
	}

	tenantDBPool := database.NewTenantDBPool(cfg.Database.Tenant)
	defer tenantDBPool.CloseAll()

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(globalDB)
	userRepo := repositories.NewUserRepository(globalDB)
	endpointRepo := repositories.NewEndpointRepository(globalDB)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	registry := ingest.DefaultRegistry()
	endpointSvc := endpoints.NewService(endpointRepo, secrets.NewBox(cfg.Webhooks.SecretKey), registry)
	auditLog := audit.NewLogger(globalDB)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)

	router := api.NewRouter(&api.Dependencies{
		ReceiveHandler:   handlers.NewReceiveHandler(endpointSvc, orgRepo, userRepo, tenantDBPool, registry, auditLog, cfg.Webhooks),
		EndpointHandler:  handlers.NewEndpointHandler(endpointSvc, auditLog, cfg.Domains.APIBaseURL),
		HealthHandler:    handlers.NewHealthHandler(globalDB),
		MetricsHandler:   handlers.NewMetricsHandler(),
		AuthMiddleware:   middleware.NewAuthMiddleware(tokenSvc),
		TenantMiddleware: middleware.NewTenantMiddleware(orgRepo),
		RateLimiter:      rateLimiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rateLimiter.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
