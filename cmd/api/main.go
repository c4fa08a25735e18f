package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/ewilliams-labs/songtagger/internal/adapters/rest"
	"github.com/ewilliams-labs/songtagger/internal/app"
	"github.com/ewilliams-labs/songtagger/internal/config"
	"github.com/ewilliams-labs/songtagger/internal/logging"
	"github.com/ewilliams-labs/songtagger/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("SONGTAGGER_CONFIG"), "path to the TOML config file")
	flag.Parse()

	// 1. Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Adapters and core
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	pool := worker.NewPool(a.Generator, cfg.Engine.QueueSize,
		worker.WithLogger(logger.With("component", "worker")),
		worker.WithRunTimeout(time.Duration(cfg.Engine.RunTimeoutSeconds)*time.Second),
		worker.WithRetention(time.Duration(cfg.Engine.RunRetentionSeconds)*time.Second, cfg.Engine.RetainRuns),
	)
	pool.Start(cfg.Engine.RunWorkers)
	defer pool.Stop()

	handler := rest.NewHandler(a.Generator, pool, a.Store, logger.With("component", "rest"))

	// 3. Server
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutSeconds) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()
	logger.Info("songtagger API listening", "addr", cfg.Server.Addr, "storage", cfg.Storage.Driver)

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}
	return nil
}
