// Package stats derives dashboard statistics from the communication log.
// Nothing here is stored; every call scans the log repository.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rafaeljc/herald/internal/store"
)

const (
	// DefaultWindowDays is the trailing window used when none is requested.
	DefaultWindowDays = 7

	hoursPerDay = 24
	dayLayout   = "2006-01-02"
)

// HourBucket counts messages sent within one hour of a day.
type HourBucket struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// DailyStats holds the 24 hourly buckets of one calendar day.
type DailyStats struct {
	Date   string       `json:"date"`
	Hourly []HourBucket `json:"hourly"`
}

// Snapshot is the hourly send histogram over a trailing window.
// TotalMessages always equals the sum of every bucket.
type Snapshot struct {
	TotalMessages int64        `json:"total_messages"`
	Daily         []DailyStats `json:"daily"`
}

// EmailStatistics summarizes log entries by status. Rates are percentages
// rounded to two decimals.
type EmailStatistics struct {
	TotalMessages  int64   `json:"total_messages"`
	SentCount      int64   `json:"sent_count"`
	FailedCount    int64   `json:"failed_count"`
	DeliveredCount int64   `json:"delivered_count"`
	PendingCount   int64   `json:"pending_count"`
	SuccessRate    float64 `json:"success_rate"`
	DeliveryRate   float64 `json:"delivery_rate"`
}

// Aggregator computes statistics from a log repository.
type Aggregator struct {
	logs   store.LogRepository
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock replaces time.Now as the window anchor.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLocation sets the timezone used for day and hour bucketing.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// New creates an Aggregator. It panics if logs is nil.
func New(logs store.LogRepository, logger *slog.Logger, opts ...Option) *Aggregator {
	if logs == nil {
		panic("stats: log repository cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Aggregator{
		logs:   logs,
		loc:    time.UTC,
		now:    time.Now,
		logger: logger.With(slog.String("component", "stats")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate buckets sent messages by day and hour over the trailing
// windowDays days, today included. The window is anchored at the current
// instant, not at midnight, so its lower edge moves continuously.
// Every day carries all 24 buckets even when they are zero.
func (a *Aggregator) Aggregate(ctx context.Context, windowDays int) (*Snapshot, error) {
	if windowDays < 1 {
		windowDays = DefaultWindowDays
	}

	now := a.now().In(a.loc)
	from := now.AddDate(0, 0, -(windowDays - 1))

	entries, err := a.logs.ListLogsSentBetween(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sent messages: %w", err)
	}

	snap := &Snapshot{Daily: make([]DailyStats, windowDays)}
	index := make(map[string]int, windowDays)
	for i := windowDays - 1; i >= 0; i-- {
		pos := windowDays - 1 - i
		date := now.AddDate(0, 0, -i).Format(dayLayout)

		hourly := make([]HourBucket, hoursPerDay)
		for h := range hourly {
			hourly[h].Hour = h
		}
		snap.Daily[pos] = DailyStats{Date: date, Hourly: hourly}
		index[date] = pos
	}

	for _, e := range entries {
		if e.SentAt == nil {
			continue
		}
		sent := e.SentAt.In(a.loc)
		if sent.Before(from) || sent.After(now) {
			continue
		}
		pos, ok := index[sent.Format(dayLayout)]
		if !ok {
			// Unreachable unless the repository ignores its bounds.
			a.logger.Warn("sent message outside window", slog.String("log_id", e.ID))
			continue
		}
		snap.Daily[pos].Hourly[sent.Hour()].Count++
		snap.TotalMessages++
	}

	return snap, nil
}

// Summary counts entries per status, optionally bounded on created_at.
func (a *Aggregator) Summary(ctx context.Context, start, end *time.Time) (*EmailStatistics, error) {
	counts, err := a.logs.CountLogsByStatus(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	delivered := counts[store.StatusDelivered]
	s := &EmailStatistics{
		TotalMessages:  counts.Total(),
		SentCount:      counts[store.StatusSent] + delivered,
		FailedCount:    counts[store.StatusFailed],
		DeliveredCount: delivered,
		PendingCount:   counts[store.StatusPending],
	}
	s.SuccessRate = percentage(s.SentCount, s.TotalMessages)
	s.DeliveryRate = percentage(s.DeliveredCount, s.SentCount)
	return s, nil
}

func percentage(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}
