package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rafaeljc/herald/internal/config"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/receipt"
	"github.com/rafaeljc/herald/internal/store"
)

// bounceReason is the receipt error for accepted messages that later fail.
const bounceReason = "Message bounced"

// Compile-time check to verify that Simulated implements Gateway.
var _ Gateway = (*Simulated)(nil)

// Simulated is an in-process provider. Each send is rejected with probability
// FailureRate; accepted sends get a receipt after a uniform delay in
// [ReceiptMinDelay, ReceiptMaxDelay], reporting a bounce with probability
// BounceRate.
type Simulated struct {
	cfg      config.VendorConfig
	records  store.MessageRepository
	receipts ReceiptHandler
	queue    *DelayQueue
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option customizes a Simulated gateway.
type Option func(*Simulated)

// WithRand replaces the random source, mostly for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulated) { s.rng = rng }
}

// WithRecords keeps a vendor-side record of every send.
func WithRecords(records store.MessageRepository) Option {
	return func(s *Simulated) { s.records = records }
}

// NewSimulated builds the gateway. receipts and queue may both be nil, in which
// case no receipts are ever produced.
func NewSimulated(cfg config.VendorConfig, receipts ReceiptHandler, queue *DelayQueue, logger *slog.Logger, opts ...Option) *Simulated {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Simulated{
		cfg:      cfg,
		receipts: receipts,
		queue:    queue,
		logger:   logger.With(slog.String("component", "vendor")),
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type roll struct {
	reject bool
	reason string
	delay  time.Duration
	bounce bool
}

func (s *Simulated) roll() roll {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r roll
	r.reject = s.rng.Float64() < s.cfg.FailureRate
	if r.reject {
		r.reason = FailureReasons[s.rng.IntN(len(FailureReasons))]
		return r
	}

	r.delay = s.cfg.ReceiptMinDelay
	if spread := s.cfg.ReceiptMaxDelay - s.cfg.ReceiptMinDelay; spread > 0 {
		r.delay += time.Duration(s.rng.Int64N(int64(spread) + 1))
	}
	r.bounce = s.rng.Float64() < s.cfg.BounceRate
	return r
}

// Send implements Gateway.
func (s *Simulated) Send(ctx context.Context, msg Message) (Result, error) {
	if strings.TrimSpace(msg.MessageID) == "" {
		return Result{}, fmt.Errorf("%w: message id is required", ErrInvalidMessage)
	}

	r := s.roll()

	res := Result{Accepted: !r.reject}
	status := store.VendorAccepted
	if r.reject {
		res.ErrorMessage = r.reason
		status = store.VendorRejected
		observability.VendorSends.WithLabelValues("rejected").Inc()
	} else {
		res.VendorMessageID = uuid.NewString()
		observability.VendorSends.WithLabelValues("accepted").Inc()
	}

	s.record(ctx, msg, res, status)

	if res.Accepted {
		s.scheduleReceipt(msg.MessageID, res.VendorMessageID, r)
	}

	return res, nil
}

func (s *Simulated) record(ctx context.Context, msg Message, res Result, status store.VendorMessageStatus) {
	if s.records == nil {
		return
	}
	err := s.records.RecordMessage(ctx, &store.VendorMessage{
		MessageID:       msg.MessageID,
		VendorMessageID: res.VendorMessageID,
		CustomerEmail:   msg.CustomerEmail,
		CustomerName:    msg.CustomerName,
		Subject:         msg.Subject,
		Status:          status,
		ErrorMessage:    res.ErrorMessage,
	})
	if err != nil {
		// The vendor's own bookkeeping never changes the verdict.
		s.logger.Warn("failed to record vendor message",
			slog.String("message_id", msg.MessageID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Simulated) scheduleReceipt(messageID, vendorMessageID string, r roll) {
	if s.receipts == nil || s.queue == nil {
		return
	}

	rc := receipt.Receipt{
		MessageID:       messageID,
		VendorMessageID: vendorMessageID,
		Status:          store.StatusDelivered,
	}
	if r.bounce {
		rc.Status = store.StatusFailed
		rc.ErrorMessage = bounceReason
	}

	ok := s.queue.Submit(r.delay, func(ctx context.Context, attempt int) bool {
		at := time.Now().UTC()
		if rc.Status == store.StatusDelivered {
			rc.DeliveredAt = &at
		}
		outcome := s.receipts.OnReceipt(ctx, rc)
		if outcome == receipt.NotReady {
			s.logger.Debug("receipt not ready, redelivering",
				slog.String("message_id", messageID),
				slog.Int("attempt", attempt),
			)
			return true
		}
		return false
	})
	if !ok {
		s.logger.Warn("receipt queue closed, receipt discarded", slog.String("message_id", messageID))
	}
}
