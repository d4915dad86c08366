package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rafaeljc/herald/internal/observability"
)

// Compile-time check to verify that Resilient implements Repository.
var _ Repository = (*Resilient)(nil)

// IsUnavailable reports whether err means the backend could not be reached,
// as opposed to a domain error (not found, conflict) or a caller cancellation.
// A missing table counts as unavailable: the schema is not deployed yet.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42P01": // undefined_table
			return true
		case strings.HasPrefix(pgErr.Code, "08"): // connection_exception class
			return true
		case pgErr.Code == "57P01", pgErr.Code == "57P03": // admin_shutdown, cannot_connect_now
			return true
		}
		return false
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	return strings.Contains(err.Error(), "closed pool")
}

// Resilient serves every operation from the primary backend while it is
// reachable and mirrors each successful result into the fallback. Once the
// primary fails with a transport error it is skipped for reprobeInterval and
// the fallback answers instead. Reads fail with ErrUnavailable only when the
// fallback never saw the collection.
//
// Writes the fallback accepts during an outage are journaled and replayed
// into the primary before it serves anything again.
//
// A nil primary makes the fallback the only backend.
type Resilient struct {
	primary  Repository
	fallback *FallbackStore
	logger   *slog.Logger
	reprobe  time.Duration
	now      func() time.Time

	downUntil atomic.Int64 // unix nanos; zero means available

	// journaled counts journal writes; replayed is the count the last
	// complete replay covered. They differ while work is pending.
	journaled atomic.Uint64
	replayed  atomic.Uint64
	replayMu  sync.Mutex
}

// NewResilient wires the two backends together.
func NewResilient(primary Repository, fb *FallbackStore, reprobeInterval time.Duration, logger *slog.Logger) *Resilient {
	if fb == nil {
		panic("store: fallback store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Resilient{
		primary:  primary,
		fallback: fb,
		logger:   logger.With(slog.String("component", "store")),
		reprobe:  reprobeInterval,
		now:      time.Now,
	}

	if primary != nil {
		// A persistent fallback may still hold a journal from a previous run.
		r.journaled.Store(1)
		observability.StorePrimaryAvailable.Set(1)
	} else {
		observability.StorePrimaryAvailable.Set(0)
	}

	return r
}

// PrimaryAvailable reports whether the next operation will try the primary.
func (r *Resilient) PrimaryAvailable() bool {
	if r.primary == nil {
		return false
	}
	return r.now().UnixNano() >= r.downUntil.Load()
}

func (r *Resilient) markDown(err error) {
	until := r.now().Add(r.reprobe).UnixNano()
	if prev := r.downUntil.Swap(until); prev == 0 {
		r.logger.Warn("primary store unavailable, serving from fallback",
			slog.String("error", err.Error()),
			slog.Duration("reprobe_in", r.reprobe),
		)
	}
	observability.StorePrimaryAvailable.Set(0)
}

func (r *Resilient) markUp() {
	if prev := r.downUntil.Swap(0); prev != 0 {
		r.logger.Info("primary store recovered")
	}
	observability.StorePrimaryAvailable.Set(1)
}

// Ping probes the primary (updating the availability state) and reports an
// error only when neither backend is usable.
func (r *Resilient) Ping(ctx context.Context) error {
	if r.primary != nil {
		err := r.primary.Ping(ctx)
		if err == nil {
			r.markUp()
			r.catchUp(ctx)
			return nil
		}
		r.markDown(err)
	}
	if err := r.fallback.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// mirror writes a primary result into the fallback. Failures only cost
// fallback freshness, so they are logged and swallowed.
func (r *Resilient) mirror(collection string, fn func() error) {
	if err := fn(); err != nil {
		r.logger.Warn("failed to mirror into fallback store",
			slog.String("collection", collection),
			slog.String("error", err.Error()),
		)
		return
	}
	observability.StoreFallbackOps.WithLabelValues(collection, "write").Inc()
}

// read executes a read against the primary, falling back on transport failure.
func read[T any](
	ctx context.Context,
	r *Resilient,
	collection string,
	primaryFn func(Repository) (T, error),
	fallbackFn func(*FallbackStore) (T, error),
	mirrorFn func(T) error,
) (T, error) {
	var zero T

	if r.PrimaryAvailable() && r.catchUp(ctx) {
		v, err := primaryFn(r.primary)
		if err == nil {
			r.markUp()
			if mirrorFn != nil {
				r.mirror(collection, func() error { return mirrorFn(v) })
			}
			return v, nil
		}
		if !IsUnavailable(err) {
			return zero, err
		}
		r.markDown(err)

		has, herr := r.fallback.HasState(ctx, collection)
		if herr != nil {
			return zero, fmt.Errorf("%w: %v (fallback: %v)", ErrUnavailable, err, herr)
		}
		if !has {
			return zero, fmt.Errorf("%w: no fallback state for %s: %v", ErrUnavailable, collection, err)
		}
	} else if r.primary != nil {
		has, herr := r.fallback.HasState(ctx, collection)
		if herr != nil {
			return zero, fmt.Errorf("%w: %v", ErrUnavailable, herr)
		}
		if !has {
			return zero, fmt.Errorf("%w: no fallback state for %s", ErrUnavailable, collection)
		}
	}

	observability.StoreFallbackOps.WithLabelValues(collection, "read").Inc()
	return fallbackFn(r.fallback)
}

// write executes a mutation against the primary and mirrors it, or against
// the fallback alone while the primary is down. In the latter case ids names
// the entities fallbackFn touched so they can be replayed later; it is called
// after fallbackFn because ids may only be assigned there.
func (r *Resilient) write(
	ctx context.Context,
	collection string,
	primaryFn func(Repository) error,
	fallbackFn func(*FallbackStore) error,
	mirrorFn func() error,
	ids func() []string,
) error {
	if r.PrimaryAvailable() && r.catchUp(ctx) {
		err := primaryFn(r.primary)
		if err == nil {
			r.markUp()
			if mirrorFn != nil {
				r.mirror(collection, mirrorFn)
			}
			return nil
		}
		if !IsUnavailable(err) {
			return err
		}
		r.markDown(err)
	}

	observability.StoreFallbackOps.WithLabelValues(collection, "write").Inc()
	if err := fallbackFn(r.fallback); err != nil {
		return err
	}

	if r.primary != nil {
		if err := r.fallback.journal(ctx, collection, ids(), r.now()); err != nil {
			r.logger.Error("failed to journal fallback write, primary will miss it",
				slog.String("collection", collection),
				slog.String("error", err.Error()),
			)
		}
		r.journaled.Add(1)
	}
	return nil
}

// replayOrder restores parents before the entities that reference them.
var replayOrder = []string{
	CollectionCustomers,
	CollectionSegments,
	CollectionCampaigns,
	CollectionCommunicationLogs,
	CollectionMessages,
}

// errReplaySource marks failures reading the fallback side of a replay.
var errReplaySource = errors.New("fallback journal unreadable")

// catchUp replays pending journal entries and reports whether the primary
// is still usable afterwards.
func (r *Resilient) catchUp(ctx context.Context) bool {
	err := r.replay(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errReplaySource):
		r.logger.Warn("failed to read fallback journal, replay postponed", slog.String("error", err.Error()))
		return true
	case IsUnavailable(err):
		r.markDown(err)
		return false
	default:
		r.logger.Error("failed to replay fallback journal", slog.String("error", err.Error()))
		return true
	}
}

// replay pushes every journaled entity's current fallback copy into the
// primary. Concurrent callers wait for a replay in progress.
func (r *Resilient) replay(ctx context.Context) error {
	if r.primary == nil || r.journaled.Load() == r.replayed.Load() {
		return nil
	}

	r.replayMu.Lock()
	defer r.replayMu.Unlock()

	seen := r.journaled.Load()
	if seen == r.replayed.Load() {
		return nil
	}

	entries, err := r.fallback.pendingJournal(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", errReplaySource, err)
	}

	byCollection := make(map[string][]journalEntry, len(replayOrder))
	for _, e := range entries {
		byCollection[e.Collection] = append(byCollection[e.Collection], e)
	}

	for _, collection := range replayOrder {
		batch := byCollection[collection]
		if len(batch) == 0 {
			continue
		}

		ids := make([]string, 0, len(batch))
		for _, e := range batch {
			ids = append(ids, e.ID)
		}

		if err := r.restore(ctx, collection, ids); err != nil {
			if errors.Is(err, errReplaySource) || IsUnavailable(err) {
				return err
			}
			// The primary rejects these entities; retrying cannot succeed.
			r.logger.Error("dropping journaled fallback writes rejected by primary",
				slog.String("collection", collection),
				slog.Int("count", len(ids)),
				slog.String("error", err.Error()),
			)
		}

		if err := r.fallback.clearJournal(ctx, batch); err != nil {
			return fmt.Errorf("%w: %v", errReplaySource, err)
		}
		observability.StoreFallbackOps.WithLabelValues(collection, "replay").Add(float64(len(batch)))
	}

	if len(entries) > 0 {
		r.logger.Info("replayed fallback writes into primary", slog.Int("entities", len(entries)))
	}
	r.replayed.Store(seen)
	return nil
}

// restore copies the fallback's current version of ids into the primary.
func (r *Resilient) restore(ctx context.Context, collection string, ids []string) error {
	kv := r.fallback.kv

	switch collection {
	case CollectionCustomers:
		found, err := getByID[Customer](ctx, kv, collection, ids...)
		if err != nil {
			return fmt.Errorf("%w: %v", errReplaySource, err)
		}
		return r.primary.UpsertCustomers(ctx, sortedValues(found))

	case CollectionSegments:
		found, err := getByID[Segment](ctx, kv, collection, ids...)
		if err != nil {
			return fmt.Errorf("%w: %v", errReplaySource, err)
		}
		if err := r.primary.RestoreSegments(ctx, sortedValues(found)); err != nil {
			return err
		}
		// Journaled but gone from the fallback means deleted during the outage.
		for _, id := range ids {
			if _, ok := found[id]; ok {
				continue
			}
			if err := ignoreNotFound(r.primary.DeleteSegment(ctx, id)); err != nil {
				return err
			}
		}
		return nil

	case CollectionCampaigns:
		found, err := getByID[Campaign](ctx, kv, collection, ids...)
		if err != nil {
			return fmt.Errorf("%w: %v", errReplaySource, err)
		}
		return r.primary.RestoreCampaigns(ctx, sortedValues(found))

	case CollectionCommunicationLogs:
		found, err := getByID[CommunicationLog](ctx, kv, collection, ids...)
		if err != nil {
			return fmt.Errorf("%w: %v", errReplaySource, err)
		}
		return r.primary.RestoreLogs(ctx, sortedValues(found))

	case CollectionMessages:
		found, err := getByID[VendorMessage](ctx, kv, collection, ids...)
		if err != nil {
			return fmt.Errorf("%w: %v", errReplaySource, err)
		}
		for _, id := range slices.Sorted(maps.Keys(found)) {
			if err := r.primary.RecordMessage(ctx, found[id]); err != nil {
				return err
			}
		}
		return nil
	}

	return fmt.Errorf("unknown journal collection %q", collection)
}

// sortedValues returns the map's values ordered by key.
func sortedValues[T any](m map[string]*T) []*T {
	out := make([]*T, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[k])
	}
	return out
}

// ignoreNotFound lets mirrors skip entities the fallback never saw.
func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// -----------------------------------------------------------------------------
// Customers
// -----------------------------------------------------------------------------

func customerIDsOf(customers []*Customer) func() []string {
	return func() []string {
		ids := make([]string, 0, len(customers))
		for _, c := range customers {
			ids = append(ids, c.ID)
		}
		return ids
	}
}

func (r *Resilient) UpsertCustomers(ctx context.Context, customers []*Customer) error {
	return r.write(ctx, CollectionCustomers,
		func(p Repository) error { return p.UpsertCustomers(ctx, customers) },
		func(f *FallbackStore) error { return f.UpsertCustomers(ctx, customers) },
		func() error { return r.fallback.UpsertCustomers(ctx, customers) },
		customerIDsOf(customers),
	)
}

func (r *Resilient) ListAllCustomers(ctx context.Context) ([]*Customer, error) {
	return read(ctx, r, CollectionCustomers,
		func(p Repository) ([]*Customer, error) { return p.ListAllCustomers(ctx) },
		func(f *FallbackStore) ([]*Customer, error) { return f.ListAllCustomers(ctx) },
		func(v []*Customer) error { return r.fallback.replaceCustomers(ctx, v) },
	)
}

type page[T any] struct {
	items []*T
	total int64
}

func (r *Resilient) ListCustomers(ctx context.Context, limit, offset int) ([]*Customer, int64, error) {
	p, err := read(ctx, r, CollectionCustomers,
		func(p Repository) (page[Customer], error) {
			items, total, err := p.ListCustomers(ctx, limit, offset)
			return page[Customer]{items, total}, err
		},
		func(f *FallbackStore) (page[Customer], error) {
			items, total, err := f.ListCustomers(ctx, limit, offset)
			return page[Customer]{items, total}, err
		},
		func(v page[Customer]) error { return r.fallback.UpsertCustomers(ctx, v.items) },
	)
	return p.items, p.total, err
}

// -----------------------------------------------------------------------------
// Segments
// -----------------------------------------------------------------------------

func only(id *string) func() []string {
	return func() []string { return []string{*id} }
}

func (r *Resilient) CreateSegment(ctx context.Context, seg *Segment) error {
	return r.write(ctx, CollectionSegments,
		func(p Repository) error { return p.CreateSegment(ctx, seg) },
		func(f *FallbackStore) error { return f.CreateSegment(ctx, seg) },
		func() error { return r.fallback.RestoreSegments(ctx, []*Segment{seg}) },
		only(&seg.ID),
	)
}

func (r *Resilient) GetSegment(ctx context.Context, id string) (*Segment, error) {
	return read(ctx, r, CollectionSegments,
		func(p Repository) (*Segment, error) { return p.GetSegment(ctx, id) },
		func(f *FallbackStore) (*Segment, error) { return f.GetSegment(ctx, id) },
		func(v *Segment) error { return r.fallback.RestoreSegments(ctx, []*Segment{v}) },
	)
}

func (r *Resilient) ListSegments(ctx context.Context, limit, offset int) ([]*Segment, int64, error) {
	p, err := read(ctx, r, CollectionSegments,
		func(p Repository) (page[Segment], error) {
			items, total, err := p.ListSegments(ctx, limit, offset)
			return page[Segment]{items, total}, err
		},
		func(f *FallbackStore) (page[Segment], error) {
			items, total, err := f.ListSegments(ctx, limit, offset)
			return page[Segment]{items, total}, err
		},
		func(v page[Segment]) error { return r.fallback.RestoreSegments(ctx, v.items) },
	)
	return p.items, p.total, err
}

func (r *Resilient) SaveMaterialization(ctx context.Context, id string, customerIDs []string, at time.Time) error {
	return r.write(ctx, CollectionSegments,
		func(p Repository) error { return p.SaveMaterialization(ctx, id, customerIDs, at) },
		func(f *FallbackStore) error { return f.SaveMaterialization(ctx, id, customerIDs, at) },
		func() error {
			seg, err := r.primary.GetSegment(ctx, id)
			if err != nil {
				return err
			}
			return r.fallback.RestoreSegments(ctx, []*Segment{seg})
		},
		only(&id),
	)
}

func (r *Resilient) DeleteSegment(ctx context.Context, id string) error {
	return r.write(ctx, CollectionSegments,
		func(p Repository) error { return p.DeleteSegment(ctx, id) },
		func(f *FallbackStore) error { return f.DeleteSegment(ctx, id) },
		func() error { return ignoreNotFound(r.fallback.DeleteSegment(ctx, id)) },
		only(&id),
	)
}

func (r *Resilient) RestoreSegments(ctx context.Context, segments []*Segment) error {
	return r.write(ctx, CollectionSegments,
		func(p Repository) error { return p.RestoreSegments(ctx, segments) },
		func(f *FallbackStore) error { return f.RestoreSegments(ctx, segments) },
		func() error { return r.fallback.RestoreSegments(ctx, segments) },
		func() []string {
			ids := make([]string, 0, len(segments))
			for _, seg := range segments {
				ids = append(ids, seg.ID)
			}
			return ids
		},
	)
}

// -----------------------------------------------------------------------------
// Campaigns
// -----------------------------------------------------------------------------

func (r *Resilient) CreateCampaign(ctx context.Context, c *Campaign) error {
	return r.write(ctx, CollectionCampaigns,
		func(p Repository) error { return p.CreateCampaign(ctx, c) },
		func(f *FallbackStore) error { return f.CreateCampaign(ctx, c) },
		func() error { return r.fallback.RestoreCampaigns(ctx, []*Campaign{c}) },
		only(&c.ID),
	)
}

func (r *Resilient) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	return read(ctx, r, CollectionCampaigns,
		func(p Repository) (*Campaign, error) { return p.GetCampaign(ctx, id) },
		func(f *FallbackStore) (*Campaign, error) { return f.GetCampaign(ctx, id) },
		func(v *Campaign) error { return r.fallback.RestoreCampaigns(ctx, []*Campaign{v}) },
	)
}

func (r *Resilient) ListCampaigns(ctx context.Context, limit, offset int) ([]*Campaign, int64, error) {
	p, err := read(ctx, r, CollectionCampaigns,
		func(p Repository) (page[Campaign], error) {
			items, total, err := p.ListCampaigns(ctx, limit, offset)
			return page[Campaign]{items, total}, err
		},
		func(f *FallbackStore) (page[Campaign], error) {
			items, total, err := f.ListCampaigns(ctx, limit, offset)
			return page[Campaign]{items, total}, err
		},
		func(v page[Campaign]) error { return r.fallback.RestoreCampaigns(ctx, v.items) },
	)
	return p.items, p.total, err
}

func (r *Resilient) CompleteCampaign(ctx context.Context, id string, sent, failed int, at time.Time) error {
	return r.write(ctx, CollectionCampaigns,
		func(p Repository) error { return p.CompleteCampaign(ctx, id, sent, failed, at) },
		func(f *FallbackStore) error { return f.CompleteCampaign(ctx, id, sent, failed, at) },
		func() error {
			c, err := r.primary.GetCampaign(ctx, id)
			if err != nil {
				return err
			}
			return r.fallback.RestoreCampaigns(ctx, []*Campaign{c})
		},
		only(&id),
	)
}

func (r *Resilient) RestoreCampaigns(ctx context.Context, campaigns []*Campaign) error {
	return r.write(ctx, CollectionCampaigns,
		func(p Repository) error { return p.RestoreCampaigns(ctx, campaigns) },
		func(f *FallbackStore) error { return f.RestoreCampaigns(ctx, campaigns) },
		func() error { return r.fallback.RestoreCampaigns(ctx, campaigns) },
		func() []string {
			ids := make([]string, 0, len(campaigns))
			for _, c := range campaigns {
				ids = append(ids, c.ID)
			}
			return ids
		},
	)
}

// -----------------------------------------------------------------------------
// Communication logs
// -----------------------------------------------------------------------------

func logIDsOf(logs []*CommunicationLog) func() []string {
	return func() []string {
		ids := make([]string, 0, len(logs))
		for _, l := range logs {
			ids = append(ids, l.ID)
		}
		return ids
	}
}

func (r *Resilient) CreateLogs(ctx context.Context, logs []*CommunicationLog) error {
	return r.write(ctx, CollectionCommunicationLogs,
		func(p Repository) error { return p.CreateLogs(ctx, logs) },
		func(f *FallbackStore) error { return f.CreateLogs(ctx, logs) },
		func() error { return r.fallback.RestoreLogs(ctx, logs) },
		logIDsOf(logs),
	)
}

func (r *Resilient) GetLog(ctx context.Context, id string) (*CommunicationLog, error) {
	return read(ctx, r, CollectionCommunicationLogs,
		func(p Repository) (*CommunicationLog, error) { return p.GetLog(ctx, id) },
		func(f *FallbackStore) (*CommunicationLog, error) { return f.GetLog(ctx, id) },
		func(v *CommunicationLog) error { return r.fallback.RestoreLogs(ctx, []*CommunicationLog{v}) },
	)
}

func (r *Resilient) ListLogs(ctx context.Context, filter LogFilter) ([]*CommunicationLog, int64, error) {
	p, err := read(ctx, r, CollectionCommunicationLogs,
		func(p Repository) (page[CommunicationLog], error) {
			items, total, err := p.ListLogs(ctx, filter)
			return page[CommunicationLog]{items, total}, err
		},
		func(f *FallbackStore) (page[CommunicationLog], error) {
			items, total, err := f.ListLogs(ctx, filter)
			return page[CommunicationLog]{items, total}, err
		},
		func(v page[CommunicationLog]) error { return r.fallback.RestoreLogs(ctx, v.items) },
	)
	return p.items, p.total, err
}

// TransitionLog is a write whose result is the updated entry.
func (r *Resilient) TransitionLog(ctx context.Context, id string, t LogTransition) (*CommunicationLog, error) {
	var updated *CommunicationLog
	err := r.write(ctx, CollectionCommunicationLogs,
		func(p Repository) error {
			l, err := p.TransitionLog(ctx, id, t)
			updated = l
			return err
		},
		func(f *FallbackStore) error {
			l, err := f.TransitionLog(ctx, id, t)
			updated = l
			return err
		},
		func() error { return r.fallback.RestoreLogs(ctx, []*CommunicationLog{updated}) },
		only(&id),
	)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Resilient) ListLogsSentBetween(ctx context.Context, from, to time.Time) ([]*CommunicationLog, error) {
	return read(ctx, r, CollectionCommunicationLogs,
		func(p Repository) ([]*CommunicationLog, error) { return p.ListLogsSentBetween(ctx, from, to) },
		func(f *FallbackStore) ([]*CommunicationLog, error) { return f.ListLogsSentBetween(ctx, from, to) },
		func(v []*CommunicationLog) error { return r.fallback.RestoreLogs(ctx, v) },
	)
}

func (r *Resilient) CountLogsByStatus(ctx context.Context, from, to *time.Time) (StatusCounts, error) {
	return read(ctx, r, CollectionCommunicationLogs,
		func(p Repository) (StatusCounts, error) { return p.CountLogsByStatus(ctx, from, to) },
		func(f *FallbackStore) (StatusCounts, error) { return f.CountLogsByStatus(ctx, from, to) },
		nil,
	)
}

func (r *Resilient) RestoreLogs(ctx context.Context, logs []*CommunicationLog) error {
	return r.write(ctx, CollectionCommunicationLogs,
		func(p Repository) error { return p.RestoreLogs(ctx, logs) },
		func(f *FallbackStore) error { return f.RestoreLogs(ctx, logs) },
		func() error { return r.fallback.RestoreLogs(ctx, logs) },
		logIDsOf(logs),
	)
}

// -----------------------------------------------------------------------------
// Vendor messages
// -----------------------------------------------------------------------------

func (r *Resilient) RecordMessage(ctx context.Context, m *VendorMessage) error {
	return r.write(ctx, CollectionMessages,
		func(p Repository) error { return p.RecordMessage(ctx, m) },
		func(f *FallbackStore) error { return f.RecordMessage(ctx, m) },
		func() error { return r.fallback.RecordMessage(ctx, m) },
		only(&m.MessageID),
	)
}

func (r *Resilient) GetMessage(ctx context.Context, messageID string) (*VendorMessage, error) {
	return read(ctx, r, CollectionMessages,
		func(p Repository) (*VendorMessage, error) { return p.GetMessage(ctx, messageID) },
		func(f *FallbackStore) (*VendorMessage, error) { return f.GetMessage(ctx, messageID) },
		func(v *VendorMessage) error { return r.fallback.RecordMessage(ctx, v) },
	)
}
