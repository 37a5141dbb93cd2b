package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/api/handlers"
	"github.com/LogiStackDev/access-onboard-flow/internal/config"
	"github.com/LogiStackDev/access-onboard-flow/internal/database"
	"github.com/LogiStackDev/access-onboard-flow/internal/identity"
	"github.com/LogiStackDev/access-onboard-flow/internal/jobs"
	"github.com/LogiStackDev/access-onboard-flow/internal/repository"
	"github.com/LogiStackDev/access-onboard-flow/internal/server"
	"github.com/LogiStackDev/access-onboard-flow/internal/service"
	"github.com/LogiStackDev/access-onboard-flow/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the TenderSync CPV and profile API on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides "+config.EnvPrefix+"_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.HasIdentity() {
		return fmt.Errorf("%s_IDENTITY_URL and %s_IDENTITY_ANON_KEY are required to serve", config.EnvPrefix, config.EnvPrefix)
	}

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Logger:           logger,
	})
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
	} else {
		defer shutdownTelemetry()
	}

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	pool, err := getDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if _, err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := telemetry.NewCPVMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	cpvRepo := repository.NewCPVRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	searchLogRepo := repository.NewSearchLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var store service.RecordStore = cpvRepo
	if cfg.CPVCacheTTL > 0 {
		store = service.NewCachedRecordStore(cpvRepo, cfg.CPVCacheTTL, metrics)
	}

	cpvSvc := service.NewCPVService(store, profileRepo, searchLogRepo, txRunner, service.LookupConfig{
		MaxCodes:        cfg.CPVMaxCodes,
		MinQueryLength:  cfg.CPVMinQueryLength,
		InlineLimit:     cfg.CPVInlineLimit,
		StandaloneLimit: cfg.CPVSearchLimit,
		SearchTimeout:   cfg.CPVSearchTimeout,
		Logger:          logger.Named("cpv"),
		Metrics:         metrics,
	})
	profileSvc := service.NewProfileService(profileRepo, cfg.CPVMaxCodes)

	identityClient := identity.NewClient(cfg.IdentityURL, cfg.IdentityAnonKey)
	notifier := identity.NewNotifier()
	sessionSvc := service.NewSessionService(identityClient, notifier, cfg.SessionCacheTTL, logger.Named("session"), metrics)
	defer sessionSvc.Close()

	var pruneWorker *jobs.Worker
	if cfg.PrunesSearchLogs() {
		pruner := jobs.NewSearchLogPruner(searchLogRepo, cfg.SearchLogRetention, metrics, logger)
		pruneWorker = jobs.NewWorker("search-log-pruner", pruner, cfg.SearchLogPruneInterval, logger)
		go pruneWorker.Start(ctx)
	}

	router := server.NewRouter(server.RouterConfig{
		SessionValidator: sessionSvc,
		CPVHandler:       handlers.NewCPVHandler(cpvSvc, cfg.CPVMaxCodes),
		ProfileHandler:   handlers.NewProfileHandler(profileSvc),
		SessionHandler:   handlers.NewSessionHandler(sessionSvc),
		Metrics:          registry,
		Logger:           logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
		logger.Info("shutting down")
	case runErr = <-serverErr:
		logger.Error("server failed", zap.Error(runErr))
	}

	if pruneWorker != nil {
		pruneWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return runErr
}
