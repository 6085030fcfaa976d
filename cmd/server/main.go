package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"staff-appraisal/internal/api"
	"staff-appraisal/internal/app"
	"staff-appraisal/internal/config"
)

func main() {
	configPath := flag.String("config", os.Getenv("APPRAISAL_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.Log.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: api.New(a.Service, api.WithLogger(logger)),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("staff-appraisal listening", "addr", srv.Addr, "storage", cfg.Storage.Driver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("listen", "error", err)
	}
}
