package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rafaeljc/herald/internal/commlog"
	"github.com/rafaeljc/herald/internal/gateway"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/segment"
	"github.com/rafaeljc/herald/internal/store"
)

var (
	// ErrInvalidCampaign wraps request validation failures.
	ErrInvalidCampaign = errors.New("invalid campaign")
	// ErrSegmentNotFound is returned when the target segment does not exist.
	ErrSegmentNotFound = errors.New("segment not found")
)

// DefaultConcurrency bounds parallel gateway calls when none is configured.
const DefaultConcurrency = 8

// DeliverRequest launches a campaign against a segment.
type DeliverRequest struct {
	Name               string
	SegmentID          string
	Subject            string
	Message            string
	DiscountPercentage float64
}

// Validate checks the request before anything is written.
func (r DeliverRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.SegmentID) == "":
		return fmt.Errorf("%w: segment_id is required", ErrInvalidCampaign)
	case strings.TrimSpace(r.Subject) == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidCampaign)
	case strings.TrimSpace(r.Message) == "":
		return fmt.Errorf("%w: message is required", ErrInvalidCampaign)
	case r.DiscountPercentage < 0 || r.DiscountPercentage > 100:
		return fmt.Errorf("%w: discount_percentage must be between 0 and 100", ErrInvalidCampaign)
	}
	return nil
}

// Summary is the synchronous result of a delivery. Delivery receipts arrive
// later, so Logs shows SENT entries that may already be DELIVERED in storage.
type Summary struct {
	Campaign      *store.Campaign
	TotalMessages int
	SentCount     int
	FailedCount   int
	Logs          []*store.CommunicationLog
}

// Dispatcher runs the campaign pipeline: members, compose, log, send.
type Dispatcher struct {
	campaigns   store.CampaignRepository
	logRepo     store.LogRepository
	segments    *segment.Materializer
	logs        *commlog.Store
	gateway     gateway.Gateway
	concurrency int
	logger      *slog.Logger
}

// NewDispatcher wires the pipeline. It panics on nil dependencies.
func NewDispatcher(
	campaigns store.CampaignRepository,
	logRepo store.LogRepository,
	segments *segment.Materializer,
	gw gateway.Gateway,
	concurrency int,
	logger *slog.Logger,
) *Dispatcher {
	if campaigns == nil {
		panic("campaign: campaign repository cannot be nil")
	}
	if logRepo == nil {
		panic("campaign: log repository cannot be nil")
	}
	if segments == nil {
		panic("campaign: segment materializer cannot be nil")
	}
	if gw == nil {
		panic("campaign: vendor gateway cannot be nil")
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		campaigns:   campaigns,
		logRepo:     logRepo,
		segments:    segments,
		logs:        commlog.New(logRepo),
		gateway:     gw,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "campaign")),
	}
}

// Deliver creates a campaign and sends one message per segment member. Each
// message gets exactly one gateway attempt; rejections are counted, never
// fatal. Once sending starts the caller's cancellation is ignored so a
// campaign is never left half dispatched.
func (d *Dispatcher) Deliver(ctx context.Context, req DeliverRequest) (*Summary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	page, err := d.segments.GetCustomers(ctx, req.SegmentID, 0, 0)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, req.SegmentID)
		}
		return nil, fmt.Errorf("failed to load segment members: %w", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = req.Subject
	}

	messages := Compose(page.Customers, Template{Subject: req.Subject, Body: req.Message}, req.DiscountPercentage)

	c := &store.Campaign{
		Name:               name,
		SegmentID:          req.SegmentID,
		Subject:            req.Subject,
		MessageTemplate:    req.Message,
		DiscountPercentage: req.DiscountPercentage,
		Status:             store.CampaignActive,
		TotalMessages:      len(messages),
	}
	if err := d.campaigns.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	log := d.logger.With(slog.String("campaign_id", c.ID), slog.String("segment_id", c.SegmentID))
	log.Info("campaign dispatch started", slog.Int("recipients", len(messages)))

	entries := make([]*store.CommunicationLog, len(messages))
	for i, msg := range messages {
		entries[i] = &store.CommunicationLog{
			CampaignID:         c.ID,
			CustomerID:         msg.CustomerID,
			CustomerName:       msg.CustomerName,
			CustomerEmail:      msg.CustomerEmail,
			Subject:            msg.Subject,
			Body:               msg.Body,
			DiscountPercentage: msg.DiscountPercentage,
		}
	}

	ctx = context.WithoutCancel(ctx)
	if err := d.logs.CreatePending(ctx, entries); err != nil {
		return nil, err
	}

	start := time.Now()
	sent, failed := d.fanOut(ctx, entries)
	observability.DispatchDuration.Observe(time.Since(start).Seconds())
	observability.CampaignsDelivered.Inc()

	completedAt := time.Now().UTC()
	if err := d.campaigns.CompleteCampaign(ctx, c.ID, sent, failed, completedAt); err != nil {
		// Every message went out; only the campaign row is stale.
		log.Error("failed to complete campaign", slog.String("error", err.Error()))
	} else {
		c.Status = store.CampaignCompleted
		c.SentCount = sent
		c.FailedCount = failed
		c.CompletedAt = &completedAt
	}

	log.Info("campaign dispatch completed",
		slog.Int("sent", sent),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)),
	)

	return &Summary{
		Campaign:      c,
		TotalMessages: len(entries),
		SentCount:     sent,
		FailedCount:   failed,
		Logs:          entries,
	}, nil
}

// fanOut sends every entry with bounded concurrency and updates entries in
// place. Each goroutine owns exactly one slice index.
func (d *Dispatcher) fanOut(ctx context.Context, entries []*store.CommunicationLog) (sent, failed int) {
	accepted := make([]bool, len(entries))

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i := range entries {
		g.Go(func() error {
			accepted[i] = d.dispatchOne(ctx, i, entries)
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range accepted {
		if ok {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

func (d *Dispatcher) dispatchOne(ctx context.Context, i int, entries []*store.CommunicationLog) bool {
	entry := entries[i]

	res, err := d.gateway.Send(ctx, gateway.Message{
		MessageID:     entry.ID,
		CustomerEmail: entry.CustomerEmail,
		CustomerName:  entry.CustomerName,
		Subject:       entry.Subject,
		Body:          entry.Body,
	})
	if err != nil {
		res = gateway.Result{Accepted: false, ErrorMessage: err.Error()}
	}

	var updated *store.CommunicationLog
	if res.Accepted {
		updated, err = d.logs.MarkSent(ctx, entry.ID, res.VendorMessageID)
		observability.MessagesDispatched.WithLabelValues(string(store.StatusSent)).Inc()
	} else {
		updated, err = d.logs.MarkFailed(ctx, entry.ID, res.ErrorMessage)
		observability.MessagesDispatched.WithLabelValues(string(store.StatusFailed)).Inc()
	}

	if err != nil {
		d.logger.Error("failed to record dispatch outcome",
			slog.String("log_id", entry.ID),
			slog.Bool("accepted", res.Accepted),
			slog.String("error", err.Error()),
		)
		return res.Accepted
	}

	entries[i] = updated
	return res.Accepted
}

// Get loads a campaign.
func (d *Dispatcher) Get(ctx context.Context, id string) (*store.Campaign, error) {
	return d.campaigns.GetCampaign(ctx, id)
}

// List pages campaigns, newest first.
func (d *Dispatcher) List(ctx context.Context, limit, offset int) ([]*store.Campaign, int64, error) {
	return d.campaigns.ListCampaigns(ctx, limit, offset)
}

// Logs pages the communication log of one campaign.
func (d *Dispatcher) Logs(ctx context.Context, campaignID string, limit, offset int) ([]*store.CommunicationLog, int64, error) {
	if _, err := d.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, 0, err
	}
	return d.logRepo.ListLogs(ctx, store.LogFilter{CampaignID: campaignID, Limit: limit, Offset: offset})
}
