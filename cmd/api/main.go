package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/baymax-health/cmd/mainconfig"
	"github.com/wolfman30/baymax-health/internal/api/router"
	"github.com/wolfman30/baymax-health/internal/app/bootstrap"
	appconfig "github.com/wolfman30/baymax-health/internal/config"
	"github.com/wolfman30/baymax-health/internal/conversation"
	"github.com/wolfman30/baymax-health/internal/healthlog"
	"github.com/wolfman30/baymax-health/internal/observability/metrics"
	"github.com/wolfman30/baymax-health/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting baymax-health API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.ChatMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewChatMetrics(reg)
}

// buildHandler wires storage, the text generator and optional audit/archive
// sinks into the router. The returned cleanup closes whatever was opened.
func buildHandler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (http.Handler, func(), error) {
	metricsHandler, chatMetrics := setupMetrics()
	loadAWS := bootstrap.AWSConfigLoader(mainconfig.Loader(cfg))

	stores, err := bootstrap.BuildStores(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := []func(){stores.Close}
	runCleanup := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	client, model, err := bootstrap.BuildLLMClient(ctx, cfg, loadAWS)
	if err != nil {
		runCleanup()
		return nil, nil, err
	}
	if closer, ok := client.(interface{ Close() error }); ok {
		cleanup = append(cleanup, func() { _ = closer.Close() })
	}
	generator := bootstrap.BuildGenerator(cfg, client, model, chatMetrics)

	var opts []conversation.ServiceOption
	if audit, db := bootstrap.BuildAuditService(ctx, cfg.DatabaseURL, logger); audit != nil {
		cleanup = append(cleanup, func() { _ = db.Close() })
		opts = append(opts, conversation.WithCompliance(audit))
		logger.Info("compliance audit events enabled")
	}
	if store := bootstrap.BuildArchiveStore(ctx, cfg.ArchiveBucket, loadAWS, logger); store != nil {
		opts = append(opts, conversation.WithArchiver(store))
		logger.Info("turn archive enabled", "bucket", cfg.ArchiveBucket)
	}

	chatService, err := bootstrap.BuildChatService(cfg, stores, generator, logger, chatMetrics, opts...)
	if err != nil {
		runCleanup()
		return nil, nil, err
	}

	handler := router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        conversation.NewHandler(chatService, logger),
		HealthLogHandler:   healthlog.NewHandler(healthlog.NewService(stores.HealthLogs, logger), logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	return handler, runCleanup, nil
}
