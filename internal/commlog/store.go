package commlog

import (
	"context"
	"fmt"
	"time"

	"github.com/rafaeljc/herald/internal/store"
)

// Store applies lifecycle transitions on top of a log repository.
type Store struct {
	repo store.LogRepository
	now  func() time.Time
}

// New creates a Store. It panics if repo is nil.
func New(repo store.LogRepository) *Store {
	if repo == nil {
		panic("commlog: log repository cannot be nil")
	}
	return &Store{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// CreatePending persists new entries; each starts as PENDING.
func (s *Store) CreatePending(ctx context.Context, logs []*store.CommunicationLog) error {
	for _, l := range logs {
		l.Status = store.StatusPending
	}
	if err := s.repo.CreateLogs(ctx, logs); err != nil {
		return fmt.Errorf("failed to create communication logs: %w", err)
	}
	return nil
}

// Get loads one entry.
func (s *Store) Get(ctx context.Context, id string) (*store.CommunicationLog, error) {
	return s.repo.GetLog(ctx, id)
}

// MarkSent records the gateway's acceptance.
func (s *Store) MarkSent(ctx context.Context, id, vendorMessageID string) (*store.CommunicationLog, error) {
	now := s.now()
	return s.transition(ctx, id, store.LogTransition{
		From:            store.StatusPending,
		To:              store.StatusSent,
		VendorMessageID: &vendorMessageID,
		SentAt:          &now,
		UpdatedAt:       now,
	})
}

// MarkFailed records a synchronous rejection.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) (*store.CommunicationLog, error) {
	return s.transition(ctx, id, store.LogTransition{
		From:         store.StatusPending,
		To:           store.StatusFailed,
		ErrorMessage: &reason,
		UpdatedAt:    s.now(),
	})
}

// MarkDelivered applies a positive receipt. A zero deliveredAt means now.
func (s *Store) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (*store.CommunicationLog, error) {
	now := s.now()
	if deliveredAt.IsZero() {
		deliveredAt = now
	}
	return s.transition(ctx, id, store.LogTransition{
		From:        store.StatusSent,
		To:          store.StatusDelivered,
		DeliveredAt: &deliveredAt,
		UpdatedAt:   now,
	})
}

// MarkBounced applies a receipt that reports failure after acceptance.
func (s *Store) MarkBounced(ctx context.Context, id, reason string) (*store.CommunicationLog, error) {
	// delivered_at stays null: the message never reached the mailbox.
	return s.transition(ctx, id, store.LogTransition{
		From:         store.StatusSent,
		To:           store.StatusFailed,
		ErrorMessage: &reason,
		UpdatedAt:    s.now(),
	})
}

func (s *Store) transition(ctx context.Context, id string, t store.LogTransition) (*store.CommunicationLog, error) {
	if !CanTransition(t.From, t.To) {
		return nil, fmt.Errorf("%s -> %s: %w", t.From, t.To, ErrIllegalTransition)
	}
	return s.repo.TransitionLog(ctx, id, t)
}
