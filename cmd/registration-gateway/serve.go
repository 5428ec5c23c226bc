package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admissions-gateway/internal/common/aws"
	"admissions-gateway/internal/common/camunda"
	"admissions-gateway/internal/common/config"
	"admissions-gateway/internal/common/database"
	"admissions-gateway/internal/common/erp"
	"admissions-gateway/internal/common/logger"
	"admissions-gateway/internal/common/observability"
	"admissions-gateway/internal/server"
	browsecatalog "admissions-gateway/internal/workers/catalog/browse-catalog"
	submitregistration "admissions-gateway/internal/workers/registration/submit-registration"

	"golang.org/x/sync/errgroup"
)

func serve(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	zapLog, err := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("Starting registration gateway", map[string]interface{}{
		"version":     Version,
		"environment": cfg.App.Environment,
		"configFile":  cfg.Sources.ConfigFile,
		"envFile":     cfg.Sources.EnvFile,
	})

	obs := observability.New(cfg.Observability.ServiceName)
	defer obs.Shutdown()
	if cfg.Observability.Jaeger.Enabled {
		if err := obs.EnableTracing(cfg.Observability.ServiceName, cfg.Observability.Jaeger.Endpoint); err != nil {
			log.Warn("Tracing disabled", map[string]interface{}{"error": err.Error()})
		}
	}

	erpClient := erp.NewClient(cfg.ERP)
	if err := erpClient.Configured(); err != nil {
		// Requests will answer UPSTREAM_CONFIG_MISSING until this is fixed.
		log.Warn("ERP credential is not configured", map[string]interface{}{"error": err.Error()})
	}

	var readiness []server.ReadinessCheck

	var cache browsecatalog.Cache
	if cfg.Database.Redis.Address != "" {
		redis, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
		defer redis.Close()
		if err := redis.Ping(ctx); err != nil {
			log.Warn("Redis is not reachable yet", map[string]interface{}{"error": err.Error()})
		}
		cache = redis
		readiness = append(readiness, server.ReadinessCheck{Name: "redis", Check: redis.Ping})
	}

	catalogService := browsecatalog.NewService(browsecatalog.ServiceDependencies{
		Upstream: erpClient,
		Cache:    cache,
		Logger:   log.With(map[string]interface{}{"component": "catalog"}),
	}, browsecatalog.ConfigFromApp(cfg))

	var alerter submitregistration.Alerter
	if sns := cfg.Integrations.AWS.SNS; sns.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region, sns.PartialEnrollmentTopicARN)
		if err != nil {
			return fmt.Errorf("sns init failed: %w", err)
		}
		alerter = client
	}

	regConfig := submitregistration.ConfigFromApp(cfg)
	regLog := log.With(map[string]interface{}{"component": "registration"})
	regService := submitregistration.NewService(submitregistration.ServiceDependencies{
		Upstream:      erpClient,
		Alerter:       alerter,
		Observability: obs,
		Logger:        regLog,
	}, regConfig)

	regHandler, err := submitregistration.NewHandler(submitregistration.HandlerOptions{
		Config:  regConfig,
		Service: regService,
		Catalog: catalogService,
		Logger:  regLog,
	})
	if err != nil {
		return err
	}

	if cfg.Camunda.Enabled {
		zeebe, err := camunda.NewClientWithConfig(camunda.ConfigFromApp(cfg.Camunda))
		if err != nil {
			return fmt.Errorf("zeebe client failed: %w", err)
		}
		defer zeebe.Close()
		readiness = append(readiness, server.ReadinessCheck{Name: "zeebe", Check: zeebe.HealthCheck})

		jobHandler, err := submitregistration.NewJobHandler(submitregistration.JobHandlerOptions{
			Config:  regConfig,
			Service: regService,
			Catalog: catalogService,
			Logger:  regLog,
		})
		if err != nil {
			return err
		}
		if err := jobHandler.Register(zeebe); err != nil {
			return err
		}
		defer jobHandler.Close()
	}

	router := server.NewRouter(server.Dependencies{
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Registration:   regHandler,
		Catalog:        browsecatalog.NewHandler(catalogService, log),
		Readiness:      readiness,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      config.GetDuration(cfg.Server.RequestTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reloadOnHangup(gctx, catalogService, log)
	})
	g.Go(func() error {
		log.Info("HTTP server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutdown signal received, draining requests", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Gateway stopped with error", map[string]interface{}{"error": err.Error()})
		return err
	}
	log.Info("Gateway stopped", nil)
	return nil
}

// reloadOnHangup drops the catalog snapshot on SIGHUP so the next request
// reloads it from the ERP.
func reloadOnHangup(ctx context.Context, catalog *browsecatalog.Service, log logger.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := catalog.Invalidate(ctx); err != nil {
				log.Warn("Catalog cache invalidation failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			log.Info("Catalog snapshot invalidated", nil)
		}
	}
}
