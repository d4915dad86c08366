// Command herald-refresher re-materializes every segment on a fixed interval
// so segment membership follows customer data imported elsewhere.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rafaeljc/herald/internal/bootstrap"
	"github.com/rafaeljc/herald/internal/config"
	"github.com/rafaeljc/herald/internal/logger"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/refresher"
	"github.com/rafaeljc/herald/internal/ruleengine"
	"github.com/rafaeljc/herald/internal/segment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&cfg.App).With(slog.String("service", "herald-refresher"))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(logger.WithContext(ctx, log), cfg, log); err != nil {
		log.Error("herald-refresher stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("herald-refresher stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	backends, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backends.Close()

	backends.RunMonitors(ctx)

	if cfg.Observability.Enabled {
		obs := observability.NewServer(log, &cfg.Observability, backends.Checkers()...)
		obs.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
			defer cancel()
			if err := obs.Shutdown(shutdownCtx); err != nil {
				log.Error("failed to stop observability server", slog.String("error", err.Error()))
			}
		}()
	}

	segments := segment.New(backends.Repo, ruleengine.New(log), backends.Customers, log)

	// The standalone worker always runs; the enabled flag only controls the
	// in-process refresher of herald-control.
	return refresher.New(log, cfg.Refresher, segments).Run(ctx)
}
