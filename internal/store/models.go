// Package store provides the Data Access Layer (Repository) for Herald.
// PostgresStore talks to the system of record through pgx, FallbackStore keeps
// the same entities as JSON entries keyed by id in a local key-value store, and
// Resilient selects between them at runtime.
package store

import (
	"time"

	"github.com/rafaeljc/herald/internal/ruleengine"
)

// Collection names, shared by the fallback keys and the metrics labels.
const (
	CollectionCustomers         = "customers"
	CollectionSegments          = "segments"
	CollectionCampaigns         = "campaigns"
	CollectionCommunicationLogs = "communication_logs"
	CollectionMessages          = "messages"
)

// MessageStatus is the delivery state of a communication log entry.
type MessageStatus string

const (
	StatusPending   MessageStatus = "PENDING"
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusFailed    MessageStatus = "FAILED"
)

// IsValid reports whether s is a known status.
func (s MessageStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// CampaignStatus is informational; the pipeline sets it, nothing branches on it.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignActive    CampaignStatus = "ACTIVE"
	CampaignCompleted CampaignStatus = "COMPLETED"
)

// Customer is a target of segments and campaigns.
type Customer struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Spend      float64    `json:"spend"`
	Visits     int        `json:"visits"`
	LastActive *time.Time `json:"last_active,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RuleContext exposes the customer's targetable fields to the rule engine.
func (c *Customer) RuleContext() ruleengine.Context {
	attrs := map[string]any{
		ruleengine.FieldSpend:  c.Spend,
		ruleengine.FieldVisits: float64(c.Visits),
		ruleengine.FieldEmail:  c.Email,
		ruleengine.FieldName:   c.Name,
	}
	if c.LastActive != nil {
		attrs[ruleengine.FieldLastActive] = *c.LastActive
	}
	return ruleengine.Context{Attributes: attrs}
}

// Segment is a named rule group with a cached materialization.
// CustomerIDs and CustomerCount reflect the customer set as of MaterializedAt;
// a nil MaterializedAt means the rules were never evaluated.
type Segment struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	Rules          ruleengine.RuleGroup `json:"rules"`
	CreatedBy      string               `json:"created_by"`
	CreatedAt      time.Time            `json:"created_at"`
	CustomerIDs    []string             `json:"customer_ids"`
	CustomerCount  int                  `json:"customer_count"`
	MaterializedAt *time.Time           `json:"materialized_at"`
}

// IsMaterialized reports whether the segment was ever evaluated.
func (s *Segment) IsMaterialized() bool {
	return s.MaterializedAt != nil
}

// Campaign pairs a segment with a message template and discount.
type Campaign struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	SegmentID          string         `json:"segment_id"`
	Subject            string         `json:"subject"`
	MessageTemplate    string         `json:"message_template"`
	DiscountPercentage float64        `json:"discount_percentage"`
	Status             CampaignStatus `json:"status"`
	TotalMessages      int            `json:"total_messages"`
	SentCount          int            `json:"sent_count"`
	FailedCount        int            `json:"failed_count"`
	CreatedAt          time.Time      `json:"created_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
}

// CommunicationLog tracks one message to one customer.
type CommunicationLog struct {
	ID                 string        `json:"id"`
	CampaignID         string        `json:"campaign_id"`
	CustomerID         string        `json:"customer_id"`
	CustomerName       string        `json:"customer_name"`
	CustomerEmail      string        `json:"customer_email"`
	Subject            string        `json:"subject"`
	Body               string        `json:"body"`
	DiscountPercentage float64       `json:"discount_percentage"`
	Status             MessageStatus `json:"status"`
	VendorMessageID    string        `json:"vendor_message_id"`
	ErrorMessage       string        `json:"error_message"`
	SentAt             *time.Time    `json:"sent_at"`
	DeliveredAt        *time.Time    `json:"delivered_at"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// VendorMessageStatus is the gateway's synchronous verdict.
type VendorMessageStatus string

const (
	VendorAccepted VendorMessageStatus = "ACCEPTED"
	VendorRejected VendorMessageStatus = "REJECTED"
)

// VendorMessage is the gateway's own record of a send attempt.
type VendorMessage struct {
	MessageID       string              `json:"message_id"`
	VendorMessageID string              `json:"vendor_message_id"`
	CustomerEmail   string              `json:"customer_email"`
	CustomerName    string              `json:"customer_name"`
	Subject         string              `json:"subject"`
	Status          VendorMessageStatus `json:"status"`
	ErrorMessage    string              `json:"error_message"`
	CreatedAt       time.Time           `json:"created_at"`
}

// LogFilter narrows ListLogs. Zero values mean "no filter".
// CreatedFrom/CreatedTo are inclusive bounds on created_at.
type LogFilter struct {
	CampaignID  string
	Status      MessageStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// LogTransition is a compare-and-set update on a log entry: it applies only
// while the entry is still in From. Nil pointers leave the column unchanged.
type LogTransition struct {
	From            MessageStatus
	To              MessageStatus
	VendorMessageID *string
	ErrorMessage    *string
	SentAt          *time.Time
	DeliveredAt     *time.Time
	UpdatedAt       time.Time
}

// StatusCounts maps each status to its number of entries.
type StatusCounts map[MessageStatus]int64

// Total returns the sum across statuses.
func (c StatusCounts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}
