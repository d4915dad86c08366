// Command herald-control serves the Herald REST API: customer import, segment
// management, campaign delivery, the simulated vendor and delivery statistics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rafaeljc/herald/internal/bootstrap"
	"github.com/rafaeljc/herald/internal/campaign"
	"github.com/rafaeljc/herald/internal/commlog"
	"github.com/rafaeljc/herald/internal/config"
	"github.com/rafaeljc/herald/internal/controlapi"
	"github.com/rafaeljc/herald/internal/gateway"
	"github.com/rafaeljc/herald/internal/logger"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/receipt"
	"github.com/rafaeljc/herald/internal/refresher"
	"github.com/rafaeljc/herald/internal/ruleengine"
	"github.com/rafaeljc/herald/internal/segment"
	"github.com/rafaeljc/herald/internal/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&cfg.App).With(slog.String("service", "herald-control"))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(logger.WithContext(ctx, log), cfg, log); err != nil {
		log.Error("herald-control stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("herald-control stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	backends, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backends.Close()

	backends.RunMonitors(ctx)

	repo := backends.Repo

	queue := gateway.NewDelayQueue(gateway.QueueConfig{
		Workers:         cfg.Vendor.ReceiptWorkers,
		MaxAttempts:     cfg.Vendor.ReceiptAttempts,
		RedeliveryDelay: cfg.Vendor.RedeliveryDelay,
	}, log)
	defer queue.Close()

	receipts := receipt.NewHandler(commlog.New(repo), log)
	sim := gateway.NewSimulated(cfg.Vendor, receipts, queue, log, gateway.WithRecords(repo))

	segments := segment.New(repo, ruleengine.New(log), backends.Customers, log)
	dispatcher := campaign.NewDispatcher(repo, repo, segments, sim, cfg.Campaign.DispatchConcurrency, log)

	api := controlapi.NewAPI(controlapi.Dependencies{
		Segments:        segments,
		Campaigns:       dispatcher,
		Gateway:         sim,
		Receipts:        receipts,
		Logs:            repo,
		Stats:           stats.New(repo, log, stats.WithLocation(cfg.Stats.Location())),
		MaxBodyBytes:    cfg.Server.Control.MaxBodyBytes,
		StatsWindowDays: cfg.Stats.WindowDays,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Control.Address(),
		Handler:           api.Router,
		ReadTimeout:       cfg.Server.Control.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.Control.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.Control.WriteTimeout,
		IdleTimeout:       cfg.Server.Control.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.Control.MaxHeaderBytes,
	}

	var obs *observability.Server
	if cfg.Observability.Enabled {
		obs = observability.NewServer(log, &cfg.Observability, backends.Checkers()...)
		obs.Start()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting control plane", slog.String("addr", srv.Addr), slog.Bool("tls", cfg.Server.Control.TLSEnabled))

		var err error
		if cfg.Server.Control.TLSEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.Control.TLSCert, cfg.Server.Control.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control plane server failed: %w", err)
		}
		return nil
	})

	if cfg.Refresher.Enabled {
		svc := refresher.New(log, cfg.Refresher, segments)
		g.Go(func() error { return svc.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", slog.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if obs != nil {
			if err := obs.Shutdown(shutdownCtx); err != nil {
				log.Error("failed to stop observability server", slog.String("error", err.Error()))
			}
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
