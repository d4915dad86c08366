// Package receipt applies the vendor's delayed delivery confirmations to the
// communication log.
package receipt

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rafaeljc/herald/internal/commlog"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/store"
)

// defaultFailureReason is stored when a failed receipt carries no message.
const defaultFailureReason = "Delivery failed"

// Receipt is the vendor's final word on a message it accepted.
type Receipt struct {
	MessageID       string
	VendorMessageID string
	Status          store.MessageStatus // DELIVERED or FAILED
	DeliveredAt     *time.Time
	ErrorMessage    string
}

// Outcome describes what a receipt did to the log.
type Outcome int

const (
	// Applied means the entry moved from SENT to the receipt's status.
	Applied Outcome = iota
	// Ignored covers unknown, terminal and mismatched entries.
	Ignored
	// NotReady means the entry is still PENDING (or the store is unreachable);
	// the sender may redeliver later.
	NotReady
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Ignored:
		return "ignored"
	case NotReady:
		return "not_ready"
	default:
		return "unknown"
	}
}

// Handler consumes receipts. It never returns an error: receipts may race with
// log eviction or arrive twice, and neither is the sender's problem.
type Handler struct {
	logs   *commlog.Store
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(logs *commlog.Store, logger *slog.Logger) *Handler {
	if logs == nil {
		panic("receipt: communication log store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logs: logs, logger: logger.With(slog.String("component", "receipt"))}
}

// OnReceipt advances the entry named by r.MessageID when it is SENT.
func (h *Handler) OnReceipt(ctx context.Context, r Receipt) Outcome {
	outcome := h.apply(ctx, r)
	observability.ReceiptsProcessed.WithLabelValues(outcome.String()).Inc()
	return outcome
}

func (h *Handler) apply(ctx context.Context, r Receipt) Outcome {
	log := h.logger.With(slog.String("message_id", r.MessageID), slog.String("receipt_status", string(r.Status)))

	if r.Status != store.StatusDelivered && r.Status != store.StatusFailed {
		log.Warn("receipt with unsupported status ignored")
		return Ignored
	}

	entry, err := h.logs.Get(ctx, r.MessageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("receipt for unknown message ignored")
			return Ignored
		}
		log.Warn("failed to load communication log for receipt", slog.String("error", err.Error()))
		if store.IsUnavailable(err) {
			return NotReady
		}
		return Ignored
	}

	switch entry.Status {
	case store.StatusPending:
		return NotReady
	case store.StatusSent:
	default:
		log.Debug("receipt for terminal message ignored", slog.String("status", string(entry.Status)))
		return Ignored
	}

	if r.VendorMessageID != "" && entry.VendorMessageID != "" && r.VendorMessageID != entry.VendorMessageID {
		log.Warn("receipt vendor message id mismatch",
			slog.String("expected", entry.VendorMessageID),
			slog.String("got", r.VendorMessageID),
		)
		return Ignored
	}

	if r.Status == store.StatusDelivered {
		var at time.Time
		if r.DeliveredAt != nil {
			at = *r.DeliveredAt
		}
		_, err = h.logs.MarkDelivered(ctx, r.MessageID, at)
	} else {
		reason := r.ErrorMessage
		if reason == "" {
			reason = defaultFailureReason
		}
		_, err = h.logs.MarkBounced(ctx, r.MessageID, reason)
	}

	if err != nil {
		// Lost the compare-and-set: a concurrent receipt already finished it.
		if errors.Is(err, store.ErrStatusConflict) || errors.Is(err, store.ErrNotFound) {
			return Ignored
		}
		log.Warn("failed to apply receipt", slog.String("error", err.Error()))
		if store.IsUnavailable(err) {
			return NotReady
		}
		return Ignored
	}

	return Applied
}
