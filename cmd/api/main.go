package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/onebills/onebills/internal/config"
	"github.com/onebills/onebills/internal/db"
	"github.com/onebills/onebills/internal/infra"
	"github.com/onebills/onebills/internal/logging"
	"github.com/onebills/onebills/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	conns, err := infra.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect infrastructure", "error", err)
		os.Exit(1)
	}
	defer conns.Close(logger)

	if conns.DB != nil {
		if err := db.Migrate(cfg.DatabaseURL, db.Up); err != nil {
			logger.Error("migrate", "error", err)
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := server.New(cfg, conns.DB, conns.Cache, logger, registry)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}
	srv.Start(ctx)

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
