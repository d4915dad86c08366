// Package refresher implements the background worker that keeps segment
// materializations fresh as the customer set changes.
package refresher

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafaeljc/herald/internal/config"
	"github.com/rafaeljc/herald/internal/observability"
)

// minInterval guards against a misconfigured busy loop.
const minInterval = time.Second

// SegmentRefresher re-evaluates every stored segment.
// *segment.Materializer satisfies it.
type SegmentRefresher interface {
	RefreshAll(ctx context.Context) (refreshed, failed int, err error)
}

// Service runs refresh cycles on a fixed interval.
type Service struct {
	logger   *slog.Logger
	interval time.Duration
	segments SegmentRefresher
}

// New creates a refresher Service.
func New(logger *slog.Logger, cfg config.RefresherConfig, segments SegmentRefresher) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if segments == nil {
		panic("refresher: segment refresher cannot be nil")
	}

	interval := cfg.Interval
	if interval < minInterval {
		interval = 5 * time.Minute
	}

	return &Service{
		logger:   logger.With(slog.String("component", "refresher")),
		interval: interval,
		segments: segments,
	}
}

// Run starts the refresh loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting segment refresher", slog.String("interval", s.interval.String()))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	s.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("segment refresher stopping...")
			return nil
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// cycle performs one refresh pass. Failures are logged and retried on the
// next tick.
func (s *Service) cycle(ctx context.Context) {
	start := time.Now()

	refreshed, failed, err := s.segments.RefreshAll(ctx)
	observability.RefresherCycleDuration.Observe(time.Since(start).Seconds())
	observability.RefresherSegmentsTotal.WithLabelValues("success").Add(float64(refreshed))
	observability.RefresherSegmentsTotal.WithLabelValues("fail").Add(float64(failed))

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("refresh cycle failed", slog.String("error", err.Error()))
		return
	}

	if refreshed > 0 || failed > 0 {
		s.logger.Info("refresh cycle completed",
			slog.Int("refreshed", refreshed),
			slog.Int("failed", failed),
			slog.String("duration", time.Since(start).String()),
		)
	}
}
