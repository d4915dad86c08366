// Package segment turns rule groups into cached customer sets.
package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rafaeljc/herald/internal/cache"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/ruleengine"
	"github.com/rafaeljc/herald/internal/store"
)

// ErrInvalidSegment wraps every authoring-time validation failure.
var ErrInvalidSegment = errors.New("invalid segment")

// Repository is the slice of storage the materializer needs.
type Repository interface {
	store.CustomerRepository
	store.SegmentRepository
}

// Result is the outcome of evaluating a rule group over a customer set.
type Result struct {
	CustomerIDs []string `json:"customer_ids"`
	Count       int      `json:"customer_count"`
}

// CreateInput describes a new segment.
type CreateInput struct {
	Name        string
	Description string
	Rules       ruleengine.RuleGroup
	CreatedBy   string
}

// CustomerPage is a page of hydrated segment members.
type CustomerPage struct {
	Customers []*store.Customer
	Total     int
	Limit     int
	Offset    int
	HasMore   bool

	// MaterializedAt is when the served ids were computed.
	MaterializedAt *time.Time
}

// Materializer evaluates segments against the customer set and persists the
// resulting member ids.
type Materializer struct {
	repo      Repository
	engine    *ruleengine.Engine
	customers *cache.CustomerCache
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Materializer. customers may be nil to disable hydration caching.
func New(repo Repository, engine *ruleengine.Engine, customers *cache.CustomerCache, logger *slog.Logger) *Materializer {
	if repo == nil {
		panic("segment: repository cannot be nil")
	}
	if engine == nil {
		panic("segment: rule engine cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Materializer{
		repo:      repo,
		engine:    engine,
		customers: customers,
		logger:    logger.With(slog.String("component", "segment")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Materialize evaluates group over customers, preserving their order. It has
// no side effects: the same inputs always yield the same ids.
func (m *Materializer) Materialize(group ruleengine.RuleGroup, customers []*store.Customer) Result {
	ids := make([]string, 0, len(customers))
	for _, c := range customers {
		if m.engine.Evaluate(group, c.RuleContext()) {
			ids = append(ids, c.ID)
		}
	}
	return Result{CustomerIDs: ids, Count: len(ids)}
}

// Preview evaluates rules against the current customer set without persisting.
func (m *Materializer) Preview(ctx context.Context, rules ruleengine.RuleGroup) (Result, error) {
	if err := ruleengine.ValidateGroup(rules); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidSegment, err)
	}

	customers, err := m.loadCustomers(ctx)
	if err != nil {
		return Result{}, err
	}
	return m.Materialize(rules, customers), nil
}

// Create validates, persists and materializes a segment once.
func (m *Materializer) Create(ctx context.Context, in CreateInput) (*store.Segment, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSegment)
	}
	if err := ruleengine.ValidateGroup(in.Rules); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSegment, err)
	}

	seg := &store.Segment{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Rules:       in.Rules,
		CreatedBy:   strings.TrimSpace(in.CreatedBy),
	}
	if err := m.repo.CreateSegment(ctx, seg); err != nil {
		return nil, fmt.Errorf("failed to create segment: %w", err)
	}

	refreshed, err := m.refresh(ctx, seg)
	if err != nil {
		// The segment exists; the next read path retries the materialization.
		m.logger.Warn("initial materialization failed",
			slog.String("segment_id", seg.ID),
			slog.String("error", err.Error()),
		)
		return seg, nil
	}
	return refreshed, nil
}

// Get loads a segment.
func (m *Materializer) Get(ctx context.Context, id string) (*store.Segment, error) {
	return m.repo.GetSegment(ctx, id)
}

// List pages segments, newest first.
func (m *Materializer) List(ctx context.Context, limit, offset int) ([]*store.Segment, int64, error) {
	return m.repo.ListSegments(ctx, limit, offset)
}

// Delete removes a segment. Campaigns that reference it are left untouched.
func (m *Materializer) Delete(ctx context.Context, id string) error {
	return m.repo.DeleteSegment(ctx, id)
}

// ImportCustomers upserts customers and refreshes their cached copies.
// Segment memberships only change on the next refresh.
func (m *Materializer) ImportCustomers(ctx context.Context, customers []*store.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	if err := m.repo.UpsertCustomers(ctx, customers); err != nil {
		return fmt.Errorf("failed to import customers: %w", err)
	}
	if m.customers != nil {
		m.customers.SetMany(customers)
	}
	return nil
}

// ListCustomers pages the whole customer set.
func (m *Materializer) ListCustomers(ctx context.Context, limit, offset int) ([]*store.Customer, int64, error) {
	return m.repo.ListCustomers(ctx, limit, offset)
}

// Refresh re-evaluates a segment and overwrites its materialization.
func (m *Materializer) Refresh(ctx context.Context, id string) (*store.Segment, error) {
	seg, err := m.repo.GetSegment(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.refresh(ctx, seg)
}

// RefreshAll re-materializes every segment, continuing past individual
// failures. It returns the number of segments refreshed and failed.
func (m *Materializer) RefreshAll(ctx context.Context) (refreshed, failed int, err error) {
	segments, _, err := m.repo.ListSegments(ctx, 0, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list segments: %w", err)
	}
	if len(segments) == 0 {
		return 0, 0, nil
	}

	customers, err := m.loadCustomers(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, seg := range segments {
		if ctx.Err() != nil {
			return refreshed, failed, ctx.Err()
		}
		if _, err := m.save(ctx, seg, customers); err != nil {
			m.logger.Warn("failed to refresh segment",
				slog.String("segment_id", seg.ID),
				slog.String("error", err.Error()),
			)
			failed++
			continue
		}
		refreshed++
	}
	return refreshed, failed, nil
}

// GetCustomers refreshes the segment, then returns a page of its members.
// When the refresh fails but an earlier materialization exists, the cached
// ids are served instead.
func (m *Materializer) GetCustomers(ctx context.Context, id string, limit, offset int) (*CustomerPage, error) {
	seg, err := m.repo.GetSegment(ctx, id)
	if err != nil {
		return nil, err
	}

	refreshed, err := m.refresh(ctx, seg)
	switch {
	case err == nil:
		seg = refreshed
	case seg.IsMaterialized():
		m.logger.Warn("segment refresh failed, serving cached members",
			slog.String("segment_id", id),
			slog.String("error", err.Error()),
		)
	default:
		return nil, err
	}

	offset = max(offset, 0)
	total := len(seg.CustomerIDs)
	start := min(offset, total)
	end := total
	if limit > 0 {
		end = min(start+limit, total)
	}

	customers, err := m.hydrate(ctx, seg.CustomerIDs[start:end])
	if err != nil {
		return nil, err
	}

	return &CustomerPage{
		Customers:      customers,
		Total:          total,
		Limit:          limit,
		Offset:         offset,
		HasMore:        end < total,
		MaterializedAt: seg.MaterializedAt,
	}, nil
}

func (m *Materializer) refresh(ctx context.Context, seg *store.Segment) (*store.Segment, error) {
	customers, err := m.loadCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return m.save(ctx, seg, customers)
}

func (m *Materializer) save(ctx context.Context, seg *store.Segment, customers []*store.Customer) (*store.Segment, error) {
	start := time.Now()
	res := m.Materialize(seg.Rules, customers)
	observability.SegmentMaterializationDuration.Observe(time.Since(start).Seconds())

	at := m.now()
	if err := m.repo.SaveMaterialization(ctx, seg.ID, res.CustomerIDs, at); err != nil {
		return nil, fmt.Errorf("failed to save materialization: %w", err)
	}

	out := *seg
	out.CustomerIDs = res.CustomerIDs
	out.CustomerCount = res.Count
	out.MaterializedAt = &at

	m.logger.Debug("segment materialized",
		slog.String("segment_id", seg.ID),
		slog.Int("customer_count", res.Count),
	)
	return &out, nil
}

func (m *Materializer) loadCustomers(ctx context.Context) ([]*store.Customer, error) {
	customers, err := m.repo.ListAllCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}
	if m.customers != nil {
		m.customers.SetMany(customers)
	}
	return customers, nil
}

// hydrate resolves ids to customers, in order. Ids whose customer no longer
// exists are skipped.
func (m *Materializer) hydrate(ctx context.Context, ids []string) ([]*store.Customer, error) {
	out := make([]*store.Customer, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var byID map[string]*store.Customer
	for _, id := range ids {
		if m.customers != nil {
			if c, ok := m.customers.Get(id); ok {
				out = append(out, c)
				continue
			}
		}

		if byID == nil {
			all, err := m.loadCustomers(ctx)
			if err != nil {
				return nil, err
			}
			byID = make(map[string]*store.Customer, len(all))
			for _, c := range all {
				byID[c.ID] = c
			}
		}
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}
