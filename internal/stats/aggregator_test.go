package stats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/herald/internal/fallback"
	"github.com/rafaeljc/herald/internal/store"
)

var anchor = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func newAggregator(t *testing.T, opts ...Option) (*Aggregator, *store.FallbackStore) {
	t.Helper()
	repo := store.NewFallbackStore(fallback.NewMemoryKV())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithClock(func() time.Time { return anchor })}, opts...)
	return New(repo, logger, opts...), repo
}

func seed(t *testing.T, repo *store.FallbackStore, entries ...*store.CommunicationLog) {
	t.Helper()
	for i, e := range entries {
		e.ID = fmt.Sprintf("log-%02d", i)
		e.CampaignID = "c1"
		if e.Status == "" {
			e.Status = store.StatusSent
		}
	}
	require.NoError(t, repo.CreateLogs(context.Background(), entries))
}

func sentAt(at time.Time) *store.CommunicationLog {
	return &store.CommunicationLog{SentAt: &at}
}

func bucketSum(s *Snapshot) int64 {
	var n int64
	for _, d := range s.Daily {
		for _, h := range d.Hourly {
			n += h.Count
		}
	}
	return n
}

func TestAggregate_EmptyWindow(t *testing.T) {
	t.Parallel()
	agg, _ := newAggregator(t)

	snap, err := agg.Aggregate(context.Background(), 7)
	require.NoError(t, err)

	assert.Zero(t, snap.TotalMessages)
	require.Len(t, snap.Daily, 7)
	assert.Equal(t, "2026-03-04", snap.Daily[0].Date)
	assert.Equal(t, "2026-03-10", snap.Daily[6].Date)
	for _, d := range snap.Daily {
		require.Len(t, d.Hourly, 24)
		for h, b := range d.Hourly {
			assert.Equal(t, h, b.Hour)
			assert.Zero(t, b.Count)
		}
	}
}

func TestAggregate_Buckets(t *testing.T) {
	t.Parallel()
	agg, repo := newAggregator(t)

	windowStart := anchor.AddDate(0, 0, -6)
	seed(t, repo,
		sentAt(anchor.Add(-time.Hour)),                       // today 14h
		sentAt(anchor.Add(-50*time.Minute)),                  // today 14h
		sentAt(anchor),                                       // upper bound is inclusive
		sentAt(windowStart),                                  // lower bound is inclusive
		sentAt(windowStart.Add(-time.Second)),                // just outside
		sentAt(anchor.Add(time.Minute)),                      // future
		sentAt(time.Date(2026, 3, 6, 0, 5, 0, 0, time.UTC)),  // midnight hour
		sentAt(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)), // first day, before the anchor hour
		&store.CommunicationLog{Status: store.StatusPending}, // never sent
	)

	snap, err := agg.Aggregate(context.Background(), 7)
	require.NoError(t, err)

	assert.EqualValues(t, 5, snap.TotalMessages)
	assert.Equal(t, snap.TotalMessages, bucketSum(snap))

	assert.EqualValues(t, 2, snap.Daily[6].Hourly[14].Count)
	assert.EqualValues(t, 1, snap.Daily[6].Hourly[15].Count)
	assert.EqualValues(t, 1, snap.Daily[0].Hourly[15].Count)
	assert.Zero(t, snap.Daily[0].Hourly[10].Count, "the window starts at the anchor time, not midnight")
	assert.EqualValues(t, 1, snap.Daily[2].Hourly[0].Count)
}

func TestAggregate_Location(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	agg, repo := newAggregator(t, WithLocation(loc))

	// 02:00 UTC is 23:00 of the previous day in Sao Paulo.
	seed(t, repo, sentAt(time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)))

	snap, err := agg.Aggregate(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, "2026-03-10", snap.Daily[6].Date)
	assert.EqualValues(t, 1, snap.Daily[5].Hourly[23].Count)
	assert.Equal(t, "2026-03-09", snap.Daily[5].Date)
}

func TestAggregate_WindowSize(t *testing.T) {
	t.Parallel()
	agg, repo := newAggregator(t)
	seed(t, repo, sentAt(anchor.AddDate(0, 0, -2)))

	tests := []struct {
		name     string
		days     int
		wantDays int
		wantSent int64
	}{
		{"single day", 1, 1, 0},
		{"three days", 3, 3, 1},
		{"non positive falls back to default", 0, DefaultWindowDays, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := agg.Aggregate(context.Background(), tt.days)
			require.NoError(t, err)
			assert.Len(t, snap.Daily, tt.wantDays)
			assert.Equal(t, tt.wantSent, snap.TotalMessages)
			assert.Equal(t, anchor.Format(dayLayout), snap.Daily[len(snap.Daily)-1].Date)
		})
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	t.Run("rates", func(t *testing.T) {
		agg, repo := newAggregator(t)
		var entries []*store.CommunicationLog
		add := func(n int, status store.MessageStatus) {
			for range n {
				entries = append(entries, &store.CommunicationLog{Status: status})
			}
		}
		add(2, store.StatusPending)
		add(3, store.StatusSent)
		add(4, store.StatusDelivered)
		add(1, store.StatusFailed)
		seed(t, repo, entries...)

		s, err := agg.Summary(context.Background(), nil, nil)
		require.NoError(t, err)

		assert.Equal(t, &EmailStatistics{
			TotalMessages:  10,
			SentCount:      7,
			FailedCount:    1,
			DeliveredCount: 4,
			PendingCount:   2,
			SuccessRate:    70,
			DeliveryRate:   57.14,
		}, s)
	})

	t.Run("empty log has zero rates", func(t *testing.T) {
		agg, _ := newAggregator(t)
		s, err := agg.Summary(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, &EmailStatistics{}, s)
	})

	t.Run("created_at bounds", func(t *testing.T) {
		agg, repo := newAggregator(t)
		old := &store.CommunicationLog{CreatedAt: anchor.AddDate(0, -1, 0)}
		recent := &store.CommunicationLog{CreatedAt: anchor.Add(-time.Hour)}
		seed(t, repo, old, recent)

		from := anchor.AddDate(0, 0, -1)
		s, err := agg.Summary(context.Background(), &from, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 1, s.TotalMessages)
	})
}

type brokenLogs struct {
	store.LogRepository
}

var errScan = errors.New("scan failed")

func (brokenLogs) ListLogsSentBetween(context.Context, time.Time, time.Time) ([]*store.CommunicationLog, error) {
	return nil, errScan
}

func (brokenLogs) CountLogsByStatus(context.Context, *time.Time, *time.Time) (store.StatusCounts, error) {
	return nil, errScan
}

func TestAggregator_PropagatesErrors(t *testing.T) {
	t.Parallel()
	agg := New(brokenLogs{}, nil)

	_, err := agg.Aggregate(context.Background(), 7)
	assert.ErrorIs(t, err, errScan)

	_, err = agg.Summary(context.Background(), nil, nil)
	assert.ErrorIs(t, err, errScan)
}

func TestNew_PanicsOnNilRepository(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { New(nil, nil) })
}
