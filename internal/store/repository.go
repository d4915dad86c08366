package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on duplicate identifiers.
	ErrConflict = errors.New("already exists")

	// ErrStatusConflict is returned by TransitionLog when the entry is no
	// longer in the expected status.
	ErrStatusConflict = errors.New("status changed concurrently")

	// ErrUnavailable is returned when the primary backend cannot be reached
	// and the fallback holds no state for the collection.
	ErrUnavailable = errors.New("store unavailable")
)

// CustomerRepository persists customers.
type CustomerRepository interface {
	// UpsertCustomers inserts or replaces customers by ID.
	UpsertCustomers(ctx context.Context, customers []*Customer) error

	// ListAllCustomers returns the full customer set ordered by creation.
	// Materialization needs every customer, so there is no pagination here.
	ListAllCustomers(ctx context.Context) ([]*Customer, error)

	// ListCustomers returns a page of customers and the total count.
	ListCustomers(ctx context.Context, limit, offset int) ([]*Customer, int64, error)
}

// SegmentRepository persists segments and their materialization.
type SegmentRepository interface {
	CreateSegment(ctx context.Context, s *Segment) error
	GetSegment(ctx context.Context, id string) (*Segment, error)

	// ListSegments orders by created_at descending.
	ListSegments(ctx context.Context, limit, offset int) ([]*Segment, int64, error)

	// SaveMaterialization overwrites customer_ids, customer_count and materialized_at.
	SaveMaterialization(ctx context.Context, id string, customerIDs []string, at time.Time) error

	DeleteSegment(ctx context.Context, id string) error
}

// CampaignRepository persists campaigns.
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, c *Campaign) error
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	ListCampaigns(ctx context.Context, limit, offset int) ([]*Campaign, int64, error)

	// CompleteCampaign records the dispatch counters and marks the campaign COMPLETED.
	CompleteCampaign(ctx context.Context, id string, sent, failed int, at time.Time) error
}

// LogRepository persists communication log entries.
type LogRepository interface {
	CreateLogs(ctx context.Context, logs []*CommunicationLog) error
	GetLog(ctx context.Context, id string) (*CommunicationLog, error)

	// ListLogs orders by created_at descending, then id.
	ListLogs(ctx context.Context, filter LogFilter) ([]*CommunicationLog, int64, error)

	// TransitionLog applies t atomically if the entry is still in t.From.
	// Returns ErrNotFound or ErrStatusConflict otherwise.
	TransitionLog(ctx context.Context, id string, t LogTransition) (*CommunicationLog, error)

	// ListLogsSentBetween returns entries with from <= sent_at <= to.
	ListLogsSentBetween(ctx context.Context, from, to time.Time) ([]*CommunicationLog, error)

	// CountLogsByStatus counts entries per status, optionally bounded on created_at.
	CountLogsByStatus(ctx context.Context, from, to *time.Time) (StatusCounts, error)
}

// MessageRepository persists the vendor gateway's message records.
type MessageRepository interface {
	RecordMessage(ctx context.Context, m *VendorMessage) error
	GetMessage(ctx context.Context, messageID string) (*VendorMessage, error)
}

// Restorer overwrites entities with copies taken from another backend.
// Resilient uses it to move writes accepted during an outage into the primary.
type Restorer interface {
	RestoreSegments(ctx context.Context, segments []*Segment) error
	RestoreCampaigns(ctx context.Context, campaigns []*Campaign) error

	// RestoreLogs never replaces an entry with an older updated_at.
	RestoreLogs(ctx context.Context, logs []*CommunicationLog) error
}

// Repository is the full persistence contract served by every backend.
type Repository interface {
	CustomerRepository
	SegmentRepository
	CampaignRepository
	LogRepository
	MessageRepository
	Restorer

	// Ping verifies that the backend is reachable.
	Ping(ctx context.Context) error
}
