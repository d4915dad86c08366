package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rafaeljc/herald/internal/fallback"
)

// Compile-time check to verify that FallbackStore implements Repository.
var _ Repository = (*FallbackStore)(nil)

// FallbackStore implements Repository on top of a fallback.KV. Every entity
// is its own JSON entry keyed by id, so point writes stay constant-size as a
// collection grows. Mutations that check before writing (duplicate ids,
// compare-and-set transitions) hold the collection's mutex, which makes
// TransitionLog a true compare-and-set within this process.
type FallbackStore struct {
	kv fallback.KV
	mu map[string]*sync.Mutex
}

// NewFallbackStore wraps kv.
func NewFallbackStore(kv fallback.KV) *FallbackStore {
	if kv == nil {
		panic("store: fallback kv cannot be nil")
	}

	mu := make(map[string]*sync.Mutex)
	for _, c := range []string{
		CollectionCustomers,
		CollectionSegments,
		CollectionCampaigns,
		CollectionCommunicationLogs,
		CollectionMessages,
		collectionJournal,
	} {
		mu[c] = &sync.Mutex{}
	}

	return &FallbackStore{kv: kv, mu: mu}
}

func (f *FallbackStore) lock(collection string) func() {
	m := f.mu[collection]
	m.Lock()
	return m.Unlock
}

// Ping checks the underlying KV.
func (f *FallbackStore) Ping(ctx context.Context) error {
	return f.kv.Ping(ctx)
}

// HasState reports whether the collection was ever written.
func (f *FallbackStore) HasState(ctx context.Context, collection string) (bool, error) {
	written, err := f.kv.Written(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to read fallback %s: %w", collection, err)
	}
	return written, nil
}

func loadAll[T any](ctx context.Context, kv fallback.KV, collection string) ([]T, error) {
	raw, err := kv.Load(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback %s: %w", collection, err)
	}

	items := make([]T, 0, len(raw))
	for id, v := range raw {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return nil, fmt.Errorf("failed to decode fallback %s/%s: %w", collection, id, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// getByID returns the stored entities for ids, keyed by id.
func getByID[T any](ctx context.Context, kv fallback.KV, collection string, ids ...string) (map[string]*T, error) {
	raw, err := kv.Get(ctx, collection, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback %s: %w", collection, err)
	}

	out := make(map[string]*T, len(raw))
	for id, v := range raw {
		item := new(T)
		if err := json.Unmarshal(v, item); err != nil {
			return nil, fmt.Errorf("failed to decode fallback %s/%s: %w", collection, id, err)
		}
		out[id] = item
	}
	return out, nil
}

func getOne[T any](ctx context.Context, kv fallback.KV, collection, id string) (*T, error) {
	found, err := getByID[T](ctx, kv, collection, id)
	if err != nil {
		return nil, err
	}
	return found[id], nil
}

func putAll[T any](ctx context.Context, kv fallback.KV, collection string, items []*T, id func(*T) string) error {
	entries := make(map[string][]byte, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode fallback %s: %w", collection, err)
		}
		entries[id(item)] = raw
	}
	if err := kv.Put(ctx, collection, entries); err != nil {
		return fmt.Errorf("failed to write fallback %s: %w", collection, err)
	}
	return nil
}

func customerID(c *Customer) string { return c.ID }

func segmentID(s *Segment) string { return s.ID }

func campaignID(c *Campaign) string { return c.ID }

func logID(l *CommunicationLog) string { return l.ID }

func messageID(m *VendorMessage) string { return m.MessageID }

// paginate applies LIMIT/OFFSET semantics to an already ordered slice.
func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func pointers[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}

// newestFirst orders by created_at descending, then id descending.
func newestFirst(aTime, bTime time.Time, aID, bID string) int {
	if c := bTime.Compare(aTime); c != 0 {
		return c
	}
	return cmp.Compare(bID, aID)
}

// oldestFirst orders by created_at ascending, then id ascending.
func oldestFirst(aTime, bTime time.Time, aID, bID string) int {
	if c := aTime.Compare(bTime); c != 0 {
		return c
	}
	return cmp.Compare(aID, bID)
}

// -----------------------------------------------------------------------------
// Customers
// -----------------------------------------------------------------------------

// UpsertCustomers inserts or replaces customers by ID.
func (f *FallbackStore) UpsertCustomers(ctx context.Context, customers []*Customer) error {
	if len(customers) == 0 {
		return nil
	}

	defer f.lock(CollectionCustomers)()

	ids := make([]string, 0, len(customers))
	for _, c := range customers {
		prepareCustomer(c)
		ids = append(ids, c.ID)
	}

	current, err := getByID[Customer](ctx, f.kv, CollectionCustomers, ids...)
	if err != nil {
		return err
	}

	items := make([]*Customer, 0, len(customers))
	for _, c := range customers {
		updated := *c
		if prev, ok := current[c.ID]; ok {
			// CreatedAt is immutable, matching the ON CONFLICT clause.
			updated.CreatedAt = prev.CreatedAt
		}
		items = append(items, &updated)
	}
	return putAll(ctx, f.kv, CollectionCustomers, items, customerID)
}

// replaceCustomers overwrites the collection with an authoritative full set.
func (f *FallbackStore) replaceCustomers(ctx context.Context, customers []*Customer) error {
	defer f.lock(CollectionCustomers)()

	existing, err := f.kv.Load(ctx, CollectionCustomers)
	if err != nil {
		return fmt.Errorf("failed to read fallback %s: %w", CollectionCustomers, err)
	}

	if err := putAll(ctx, f.kv, CollectionCustomers, customers, customerID); err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(customers))
	for _, c := range customers {
		keep[c.ID] = struct{}{}
	}
	stale := make([]string, 0)
	for id := range existing {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := f.kv.Delete(ctx, CollectionCustomers, stale...); err != nil {
		return fmt.Errorf("failed to prune fallback %s: %w", CollectionCustomers, err)
	}
	return nil
}

// ListAllCustomers returns every customer ordered by creation.
func (f *FallbackStore) ListAllCustomers(ctx context.Context) ([]*Customer, error) {
	items, err := loadAll[Customer](ctx, f.kv, CollectionCustomers)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(items, func(a, b Customer) int { return oldestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
	return pointers(items), nil
}

// ListCustomers returns a page of customers.
func (f *FallbackStore) ListCustomers(ctx context.Context, limit, offset int) ([]*Customer, int64, error) {
	all, err := f.ListAllCustomers(ctx)
	if err != nil {
		return nil, 0, err
	}
	return paginate(all, limit, offset), int64(len(all)), nil
}

// -----------------------------------------------------------------------------
// Segments
// -----------------------------------------------------------------------------

// CreateSegment stores a new segment.
func (f *FallbackStore) CreateSegment(ctx context.Context, seg *Segment) error {
	defer f.lock(CollectionSegments)()

	prepareSegment(seg)

	existing, err := getOne[Segment](ctx, f.kv, CollectionSegments, seg.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("segment %q %w", seg.ID, ErrConflict)
	}
	return putAll(ctx, f.kv, CollectionSegments, []*Segment{seg}, segmentID)
}

// RestoreSegments upserts authoritative copies.
func (f *FallbackStore) RestoreSegments(ctx context.Context, segments []*Segment) error {
	defer f.lock(CollectionSegments)()
	return putAll(ctx, f.kv, CollectionSegments, segments, segmentID)
}

// GetSegment finds a segment by id.
func (f *FallbackStore) GetSegment(ctx context.Context, id string) (*Segment, error) {
	seg, err := getOne[Segment](ctx, f.kv, CollectionSegments, id)
	if err != nil {
		return nil, err
	}
	if seg == nil {
		return nil, fmt.Errorf("segment %q: %w", id, ErrNotFound)
	}
	return seg, nil
}

// ListSegments returns a page of segments, newest first.
func (f *FallbackStore) ListSegments(ctx context.Context, limit, offset int) ([]*Segment, int64, error) {
	items, err := loadAll[Segment](ctx, f.kv, CollectionSegments)
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(items, func(a, b Segment) int { return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
	return pointers(paginate(items, limit, offset)), int64(len(items)), nil
}

// SaveMaterialization overwrites the cached evaluation result.
func (f *FallbackStore) SaveMaterialization(ctx context.Context, id string, customerIDs []string, at time.Time) error {
	defer f.lock(CollectionSegments)()

	seg, err := getOne[Segment](ctx, f.kv, CollectionSegments, id)
	if err != nil {
		return err
	}
	if seg == nil {
		return fmt.Errorf("segment %q: %w", id, ErrNotFound)
	}

	if customerIDs == nil {
		customerIDs = []string{}
	}
	seg.CustomerIDs = slices.Clone(customerIDs)
	seg.CustomerCount = len(customerIDs)
	seg.MaterializedAt = &at

	return putAll(ctx, f.kv, CollectionSegments, []*Segment{seg}, segmentID)
}

// DeleteSegment removes a segment.
func (f *FallbackStore) DeleteSegment(ctx context.Context, id string) error {
	defer f.lock(CollectionSegments)()

	seg, err := getOne[Segment](ctx, f.kv, CollectionSegments, id)
	if err != nil {
		return err
	}
	if seg == nil {
		return fmt.Errorf("segment %q: %w", id, ErrNotFound)
	}
	if err := f.kv.Delete(ctx, CollectionSegments, id); err != nil {
		return fmt.Errorf("failed to delete fallback segment %q: %w", id, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Campaigns
// -----------------------------------------------------------------------------

// CreateCampaign stores a new campaign.
func (f *FallbackStore) CreateCampaign(ctx context.Context, c *Campaign) error {
	defer f.lock(CollectionCampaigns)()

	prepareCampaign(c)

	existing, err := getOne[Campaign](ctx, f.kv, CollectionCampaigns, c.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("campaign %q %w", c.ID, ErrConflict)
	}
	return putAll(ctx, f.kv, CollectionCampaigns, []*Campaign{c}, campaignID)
}

// RestoreCampaigns upserts authoritative copies.
func (f *FallbackStore) RestoreCampaigns(ctx context.Context, campaigns []*Campaign) error {
	defer f.lock(CollectionCampaigns)()
	return putAll(ctx, f.kv, CollectionCampaigns, campaigns, campaignID)
}

// GetCampaign finds a campaign by id.
func (f *FallbackStore) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	c, err := getOne[Campaign](ctx, f.kv, CollectionCampaigns, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("campaign %q: %w", id, ErrNotFound)
	}
	return c, nil
}

// ListCampaigns returns a page of campaigns, newest first.
func (f *FallbackStore) ListCampaigns(ctx context.Context, limit, offset int) ([]*Campaign, int64, error) {
	items, err := loadAll[Campaign](ctx, f.kv, CollectionCampaigns)
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(items, func(a, b Campaign) int { return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
	return pointers(paginate(items, limit, offset)), int64(len(items)), nil
}

// CompleteCampaign stores the final counters.
func (f *FallbackStore) CompleteCampaign(ctx context.Context, id string, sent, failed int, at time.Time) error {
	defer f.lock(CollectionCampaigns)()

	c, err := getOne[Campaign](ctx, f.kv, CollectionCampaigns, id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("campaign %q: %w", id, ErrNotFound)
	}

	c.Status = CampaignCompleted
	c.SentCount = sent
	c.FailedCount = failed
	c.TotalMessages = sent + failed
	c.CompletedAt = &at

	return putAll(ctx, f.kv, CollectionCampaigns, []*Campaign{c}, campaignID)
}

// -----------------------------------------------------------------------------
// Communication logs
// -----------------------------------------------------------------------------

// CreateLogs stores new entries, rejecting duplicate ids.
func (f *FallbackStore) CreateLogs(ctx context.Context, logs []*CommunicationLog) error {
	if len(logs) == 0 {
		return nil
	}

	defer f.lock(CollectionCommunicationLogs)()

	ids := make([]string, 0, len(logs))
	seen := make(map[string]struct{}, len(logs))
	for _, l := range logs {
		prepareLog(l)
		if _, dup := seen[l.ID]; dup {
			return fmt.Errorf("communication log %q %w", l.ID, ErrConflict)
		}
		seen[l.ID] = struct{}{}
		ids = append(ids, l.ID)
	}

	existing, err := f.kv.Get(ctx, CollectionCommunicationLogs, ids...)
	if err != nil {
		return fmt.Errorf("failed to read fallback %s: %w", CollectionCommunicationLogs, err)
	}
	for _, id := range ids {
		if _, dup := existing[id]; dup {
			return fmt.Errorf("communication log %q %w", id, ErrConflict)
		}
	}

	return putAll(ctx, f.kv, CollectionCommunicationLogs, logs, logID)
}

// RestoreLogs upserts copies, skipping any older than the stored entry.
func (f *FallbackStore) RestoreLogs(ctx context.Context, logs []*CommunicationLog) error {
	if len(logs) == 0 {
		return nil
	}

	defer f.lock(CollectionCommunicationLogs)()

	ids := make([]string, 0, len(logs))
	for _, l := range logs {
		ids = append(ids, l.ID)
	}
	current, err := getByID[CommunicationLog](ctx, f.kv, CollectionCommunicationLogs, ids...)
	if err != nil {
		return err
	}

	newer := slices.DeleteFunc(slices.Clone(logs), func(l *CommunicationLog) bool {
		prev, ok := current[l.ID]
		return ok && prev.UpdatedAt.After(l.UpdatedAt)
	})
	return putAll(ctx, f.kv, CollectionCommunicationLogs, newer, logID)
}

// GetLog finds an entry by id.
func (f *FallbackStore) GetLog(ctx context.Context, id string) (*CommunicationLog, error) {
	l, err := getOne[CommunicationLog](ctx, f.kv, CollectionCommunicationLogs, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("communication log %q: %w", id, ErrNotFound)
	}
	return l, nil
}

func (flt LogFilter) matches(l *CommunicationLog) bool {
	if flt.CampaignID != "" && l.CampaignID != flt.CampaignID {
		return false
	}
	if flt.Status != "" && l.Status != flt.Status {
		return false
	}
	if flt.CreatedFrom != nil && l.CreatedAt.Before(*flt.CreatedFrom) {
		return false
	}
	if flt.CreatedTo != nil && l.CreatedAt.After(*flt.CreatedTo) {
		return false
	}
	return true
}

// ListLogs returns a filtered page of entries, newest first.
func (f *FallbackStore) ListLogs(ctx context.Context, flt LogFilter) ([]*CommunicationLog, int64, error) {
	items, err := loadAll[CommunicationLog](ctx, f.kv, CollectionCommunicationLogs)
	if err != nil {
		return nil, 0, err
	}

	matched := slices.DeleteFunc(items, func(l CommunicationLog) bool { return !flt.matches(&l) })
	slices.SortFunc(matched, func(a, b CommunicationLog) int { return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })

	return pointers(paginate(matched, flt.Limit, flt.Offset)), int64(len(matched)), nil
}

// TransitionLog applies t if the entry is still in t.From.
func (f *FallbackStore) TransitionLog(ctx context.Context, id string, t LogTransition) (*CommunicationLog, error) {
	defer f.lock(CollectionCommunicationLogs)()

	l, err := getOne[CommunicationLog](ctx, f.kv, CollectionCommunicationLogs, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("communication log %q: %w", id, ErrNotFound)
	}
	if l.Status != t.From {
		return nil, fmt.Errorf("communication log %q is %s, expected %s: %w", id, l.Status, t.From, ErrStatusConflict)
	}

	l.Status = t.To
	if t.VendorMessageID != nil {
		l.VendorMessageID = *t.VendorMessageID
	}
	if t.ErrorMessage != nil {
		l.ErrorMessage = *t.ErrorMessage
	}
	if t.SentAt != nil {
		l.SentAt = t.SentAt
	}
	if t.DeliveredAt != nil {
		l.DeliveredAt = t.DeliveredAt
	}
	l.UpdatedAt = t.UpdatedAt

	if err := putAll(ctx, f.kv, CollectionCommunicationLogs, []*CommunicationLog{l}, logID); err != nil {
		return nil, err
	}

	out := *l
	return &out, nil
}

// ListLogsSentBetween returns entries whose sent_at is inside [from, to].
func (f *FallbackStore) ListLogsSentBetween(ctx context.Context, from, to time.Time) ([]*CommunicationLog, error) {
	items, err := loadAll[CommunicationLog](ctx, f.kv, CollectionCommunicationLogs)
	if err != nil {
		return nil, err
	}

	inWindow := slices.DeleteFunc(items, func(l CommunicationLog) bool {
		return l.SentAt == nil || l.SentAt.Before(from) || l.SentAt.After(to)
	})
	slices.SortFunc(inWindow, func(a, b CommunicationLog) int {
		if c := a.SentAt.Compare(*b.SentAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return pointers(inWindow), nil
}

// CountLogsByStatus groups entries by status.
func (f *FallbackStore) CountLogsByStatus(ctx context.Context, from, to *time.Time) (StatusCounts, error) {
	items, err := loadAll[CommunicationLog](ctx, f.kv, CollectionCommunicationLogs)
	if err != nil {
		return nil, err
	}

	flt := LogFilter{CreatedFrom: from, CreatedTo: to}
	counts := StatusCounts{}
	for i := range items {
		if flt.matches(&items[i]) {
			counts[items[i].Status]++
		}
	}
	return counts, nil
}

// -----------------------------------------------------------------------------
// Vendor messages
// -----------------------------------------------------------------------------

// RecordMessage upserts the gateway's record for a message id.
func (f *FallbackStore) RecordMessage(ctx context.Context, m *VendorMessage) error {
	defer f.lock(CollectionMessages)()

	prepareMessage(m)

	record := *m
	existing, err := getOne[VendorMessage](ctx, f.kv, CollectionMessages, m.MessageID)
	if err != nil {
		return err
	}
	if existing != nil {
		// Only the verdict changes on a resend, matching the ON CONFLICT clause.
		record = *existing
		record.VendorMessageID = m.VendorMessageID
		record.Status = m.Status
		record.ErrorMessage = m.ErrorMessage
	}
	return putAll(ctx, f.kv, CollectionMessages, []*VendorMessage{&record}, messageID)
}

// GetMessage finds a vendor message record.
func (f *FallbackStore) GetMessage(ctx context.Context, id string) (*VendorMessage, error) {
	m, err := getOne[VendorMessage](ctx, f.kv, CollectionMessages, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("vendor message %q: %w", id, ErrNotFound)
	}
	return m, nil
}

// -----------------------------------------------------------------------------
// Outage journal
// -----------------------------------------------------------------------------

// collectionJournal records entities written here while the primary was down.
const collectionJournal = "journal"

// journalEntry names one entity that still has to reach the primary.
// Repeated writes to the same entity coalesce into one entry.
type journalEntry struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
}

func (e *journalEntry) key() string { return e.Collection + "/" + e.ID }

// journal marks ids of collection as pending replay.
func (f *FallbackStore) journal(ctx context.Context, collection string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	defer f.lock(collectionJournal)()

	entries := make([]*journalEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, &journalEntry{Collection: collection, ID: id, At: at})
	}
	return putAll(ctx, f.kv, collectionJournal, entries, (*journalEntry).key)
}

// pendingJournal returns every pending entry, oldest first.
func (f *FallbackStore) pendingJournal(ctx context.Context) ([]journalEntry, error) {
	entries, err := loadAll[journalEntry](ctx, f.kv, collectionJournal)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b journalEntry) int { return oldestFirst(a.At, b.At, a.key(), b.key()) })
	return entries, nil
}

// clearJournal drops entries, keeping any that were rewritten after they were read.
func (f *FallbackStore) clearJournal(ctx context.Context, entries []journalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	defer f.lock(collectionJournal)()

	keys := make([]string, 0, len(entries))
	for i := range entries {
		keys = append(keys, entries[i].key())
	}
	current, err := getByID[journalEntry](ctx, f.kv, collectionJournal, keys...)
	if err != nil {
		return err
	}

	done := make([]string, 0, len(entries))
	for i := range entries {
		cur, ok := current[entries[i].key()]
		if ok && !cur.At.After(entries[i].At) {
			done = append(done, entries[i].key())
		}
	}
	if err := f.kv.Delete(ctx, collectionJournal, done...); err != nil {
		return fmt.Errorf("failed to clear fallback %s: %w", collectionJournal, err)
	}
	return nil
}
