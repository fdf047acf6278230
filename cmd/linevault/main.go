package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/cimillas/linevault/internal/bootstrap"
	"github.com/cimillas/linevault/internal/config"
)

func main() {
	config.LoadEnvFile(slog.Default())

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("linevault stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	if cfg.CatalogPath != "" {
		n, err := svc.Listings.ImportCatalog(ctx, cfg.CatalogPath)
		if err != nil {
			return err
		}
		logger.Info("catalog imported", slog.String("path", cfg.CatalogPath), slog.Int("listings", n))
	}

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      svc.Handler(cfg, logger),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	svc.Reaper.Start(gctx)

	g.Go(func() error {
		logger.Info("linevault listening",
			slog.String("addr", server.Addr),
			slog.String("store", svc.Stores.Backend),
			slog.Duration("hold_ttl", cfg.HoldTTL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		svc.Reaper.Stop()
		return err
	})

	return g.Wait()
}
