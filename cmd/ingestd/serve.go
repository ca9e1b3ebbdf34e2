package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/scadaflow/ingestcore/catalog"
	"github.com/scadaflow/ingestcore/config"
	"github.com/scadaflow/ingestcore/controlplane"
	"github.com/scadaflow/ingestcore/observability"
	"github.com/scadaflow/ingestcore/router"
	"github.com/scadaflow/ingestcore/security"
	"github.com/scadaflow/ingestcore/timestore"
	"github.com/scadaflow/ingestcore/validator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion runtime",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := &stdLogger{}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.Info("config_loaded", "environment", cfg.Environment)

	shutdownTracer, err := observability.InitTracer("ingestd")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	masterPoolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	masterPoolCfg.MaxConns = int32(cfg.DBMaxConnections)
	masterPool, err := pgxpool.NewWithConfig(ctx, masterPoolCfg)
	if err != nil {
		return fmt.Errorf("open catalog database: %w", err)
	}
	defer masterPool.Close()

	cat := catalog.New(masterPool)

	metrics := observability.New()
	writer := timestore.New(cat, metrics, logger)
	defer writer.Close()

	guard, err := security.NewGuard(cfg.Security)
	if err != nil {
		return fmt.Errorf("build credential guard: %w", err)
	}

	v := validator.New(cfg.Validator)

	r := router.New(cat, writer, guard, v, cfg.Router, metrics, logger)

	if err := r.StartAllConnections(ctx); err != nil {
		return fmt.Errorf("start connections: %w", err)
	}
	logger.Info("router_started")

	metricsServer := observability.NewServer(fmt.Sprintf(":%d", cfg.MetricsPort))
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil {
			logger.Error("metrics_server_error", "error", err)
		}
	}()
	logger.Info("metrics_server_started", "port", cfg.MetricsPort)

	shim := controlplane.NewShim(r, writer)
	cpServer := controlplane.NewServer(fmt.Sprintf(":%d", cfg.GRPCPort), shim, logger)
	cpServerDone := make(chan error, 1)
	go func() {
		cpServerDone <- cpServer.Start(ctx)
	}()
	logger.Info("controlplane_server_started", "port", cfg.GRPCPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal_received", "signal", sig.String())
	case err := <-cpServerDone:
		if err != nil {
			logger.Error("controlplane_server_failed", "error", err)
		}
	}

	cancel()
	r.StopAllConnections(context.Background())
	cpServer.ShutdownWithTimeout(10 * time.Second)
	if err := metricsServer.Shutdown(context.Background()); err != nil {
		logger.Error("metrics_server_shutdown_error", "error", err)
	}
	if err := shutdownTracer(context.Background()); err != nil {
		logger.Error("tracer_shutdown_error", "error", err)
	}

	logger.Info("ingestd_stopped")
	return nil
}
