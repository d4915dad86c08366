package receipt_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/herald/internal/commlog"
	"github.com/rafaeljc/herald/internal/fallback"
	"github.com/rafaeljc/herald/internal/receipt"
	"github.com/rafaeljc/herald/internal/store"
	"github.com/rafaeljc/herald/internal/testsupport"
)

func setup(t *testing.T) (*receipt.Handler, *commlog.Store) {
	t.Helper()
	kv := fallback.NewMemoryKV()
	t.Cleanup(func() { _ = kv.Close() })

	logs := commlog.New(store.NewFallbackStore(kv))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return receipt.NewHandler(logs, logger), logs
}

func seed(t *testing.T, logs *commlog.Store, id string, status store.MessageStatus) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, logs.CreatePending(ctx, []*store.CommunicationLog{{ID: id, CampaignID: "c1"}}))

	switch status {
	case store.StatusSent:
		_, err := logs.MarkSent(ctx, id, "vm-"+id)
		require.NoError(t, err)
	case store.StatusFailed:
		_, err := logs.MarkFailed(ctx, id, "Mailbox full")
		require.NoError(t, err)
	case store.StatusDelivered:
		_, err := logs.MarkSent(ctx, id, "vm-"+id)
		require.NoError(t, err)
		_, err = logs.MarkDelivered(ctx, id, time.Now())
		require.NoError(t, err)
	}
}

func TestHandler_OnReceipt(t *testing.T) {
	t.Parallel()

	deliveredAt := time.Date(2024, 4, 1, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		seed       store.MessageStatus // empty means no entry
		receipt    receipt.Receipt
		want       receipt.Outcome
		wantStatus store.MessageStatus
	}{
		{
			name:       "sent entry is delivered",
			seed:       store.StatusSent,
			receipt:    receipt.Receipt{Status: store.StatusDelivered, DeliveredAt: &deliveredAt},
			want:       receipt.Applied,
			wantStatus: store.StatusDelivered,
		},
		{
			name:       "sent entry bounces",
			seed:       store.StatusSent,
			receipt:    receipt.Receipt{Status: store.StatusFailed, ErrorMessage: "Hard bounce"},
			want:       receipt.Applied,
			wantStatus: store.StatusFailed,
		},
		{
			name:       "already failed entry is a no-op",
			seed:       store.StatusFailed,
			receipt:    receipt.Receipt{Status: store.StatusDelivered},
			want:       receipt.Ignored,
			wantStatus: store.StatusFailed,
		},
		{
			name:       "already delivered entry is a no-op",
			seed:       store.StatusDelivered,
			receipt:    receipt.Receipt{Status: store.StatusFailed},
			want:       receipt.Ignored,
			wantStatus: store.StatusDelivered,
		},
		{
			name:       "pending entry is not ready",
			seed:       store.StatusPending,
			receipt:    receipt.Receipt{Status: store.StatusDelivered},
			want:       receipt.NotReady,
			wantStatus: store.StatusPending,
		},
		{
			name:    "unknown entry is ignored",
			receipt: receipt.Receipt{Status: store.StatusDelivered},
			want:    receipt.Ignored,
		},
		{
			name:       "unsupported receipt status is ignored",
			seed:       store.StatusSent,
			receipt:    receipt.Receipt{Status: store.StatusPending},
			want:       receipt.Ignored,
			wantStatus: store.StatusSent,
		},
		{
			name:       "vendor id mismatch is ignored",
			seed:       store.StatusSent,
			receipt:    receipt.Receipt{Status: store.StatusDelivered, VendorMessageID: "someone-else"},
			want:       receipt.Ignored,
			wantStatus: store.StatusSent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			h, logs := setup(t)

			r := tt.receipt
			r.MessageID = "msg-1"
			if tt.seed != "" {
				seed(t, logs, r.MessageID, tt.seed)
			}

			assert.Equal(t, tt.want, h.OnReceipt(ctx, r))

			if tt.seed == "" {
				return
			}
			entry, err := logs.Get(ctx, r.MessageID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, entry.Status)
		})
	}
}

func TestHandler_StampsDeliveryTime(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h, logs := setup(t)
	seed(t, logs, "m", store.StatusSent)

	at := time.Date(2024, 4, 1, 8, 30, 0, 0, time.UTC)
	require.Equal(t, receipt.Applied, h.OnReceipt(ctx, receipt.Receipt{MessageID: "m", VendorMessageID: "vm-m", Status: store.StatusDelivered, DeliveredAt: &at}))

	entry, err := logs.Get(ctx, "m")
	require.NoError(t, err)
	require.NotNil(t, entry.DeliveredAt)
	assert.True(t, at.Equal(*entry.DeliveredAt))
	assert.False(t, entry.UpdatedAt.IsZero())
}

func TestHandler_SecondReceiptIsIgnored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h, logs := setup(t)
	seed(t, logs, "m", store.StatusSent)

	r := receipt.Receipt{MessageID: "m", Status: store.StatusDelivered}
	assert.Equal(t, receipt.Applied, h.OnReceipt(ctx, r))
	assert.Equal(t, receipt.Ignored, h.OnReceipt(ctx, r))
}

func TestHandler_Metrics(t *testing.T) {
	ctx := context.Background()
	h, _ := setup(t)

	testsupport.AssertMetricDelta(t, "herald_receipt_processed_total", map[string]string{"outcome": "ignored"}, 1, func() {
		h.OnReceipt(ctx, receipt.Receipt{MessageID: "missing", Status: store.StatusDelivered})
	})
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "applied", receipt.Applied.String())
	assert.Equal(t, "ignored", receipt.Ignored.String())
	assert.Equal(t, "not_ready", receipt.NotReady.String())
	assert.Equal(t, "unknown", receipt.Outcome(42).String())
}
