package controlapi

import (
	"strings"
	"time"

	"github.com/rafaeljc/herald/internal/campaign"
	"github.com/rafaeljc/herald/internal/ruleengine"
	"github.com/rafaeljc/herald/internal/store"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeInvalidJSON  = "ERR_INVALID_JSON"
	codeInvalidInput = "ERR_INVALID_INPUT"
	codeInvalidQuery = "ERR_INVALID_QUERY_PARAM"
	codeNotFound     = "ERR_NOT_FOUND"
	codeUnavailable  = "ERR_UNAVAILABLE"
	codeInternal     = "ERR_INTERNAL"
)

const maxNameLength = 255

func invalidInput(field, issue string) *ErrorResponse {
	return &ErrorResponse{
		Code:    codeInvalidInput,
		Message: issue,
		Details: []ErrorDetail{{Field: field, Issue: issue}},
	}
}

// -----------------------------------------------------------------------------
// Customers
// -----------------------------------------------------------------------------

// CustomerInput is one customer in a bulk import. A missing ID is generated.
type CustomerInput struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Spend      float64    `json:"spend"`
	Visits     int        `json:"visits"`
	LastActive *time.Time `json:"last_active,omitempty"`
}

// ImportCustomersRequest is the payload of POST /customers.
type ImportCustomersRequest struct {
	Customers []CustomerInput `json:"customers"`
}

// Validate checks every customer of the batch.
func (r *ImportCustomersRequest) Validate() *ErrorResponse {
	if len(r.Customers) == 0 {
		return invalidInput("customers", "At least one customer is required")
	}

	var details []ErrorDetail
	for i := range r.Customers {
		c := &r.Customers[i]
		c.ID = strings.TrimSpace(c.ID)
		c.Name = strings.TrimSpace(c.Name)
		c.Email = strings.TrimSpace(c.Email)

		switch {
		case c.Name == "":
			details = append(details, ErrorDetail{Field: fieldIndex("customers", i, "name"), Issue: "Name is required"})
		case c.Email == "" || !strings.Contains(c.Email, "@"):
			details = append(details, ErrorDetail{Field: fieldIndex("customers", i, "email"), Issue: "A valid email is required"})
		case c.Spend < 0 || c.Visits < 0:
			details = append(details, ErrorDetail{Field: fieldIndex("customers", i, "spend"), Issue: "Spend and visits cannot be negative"})
		}
	}

	if len(details) > 0 {
		return &ErrorResponse{Code: codeInvalidInput, Message: "Invalid customers in batch", Details: details}
	}
	return nil
}

func (r *ImportCustomersRequest) toStore() []*store.Customer {
	out := make([]*store.Customer, len(r.Customers))
	for i, c := range r.Customers {
		out[i] = &store.Customer{
			ID:         c.ID,
			Name:       c.Name,
			Email:      c.Email,
			Spend:      c.Spend,
			Visits:     c.Visits,
			LastActive: c.LastActive,
		}
	}
	return out
}

// ImportCustomersResponse reports the stored customers with their ids.
type ImportCustomersResponse struct {
	ImportedCount int               `json:"imported_count"`
	Customers     []*store.Customer `json:"customers"`
}

// -----------------------------------------------------------------------------
// Segments
// -----------------------------------------------------------------------------

// CreateSegmentRequest is the payload of POST /segments.
type CreateSegmentRequest struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Rules       ruleengine.RuleGroup `json:"rules"`
	CreatedBy   string               `json:"created_by,omitempty"`
}

// Sanitize trims free-text fields in place.
func (r *CreateSegmentRequest) Sanitize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.CreatedBy = strings.TrimSpace(r.CreatedBy)
}

// Validate checks the name and the rule group.
func (r *CreateSegmentRequest) Validate() *ErrorResponse {
	if r.Name == "" {
		return invalidInput("name", "Name is required")
	}
	if len(r.Name) > maxNameLength {
		return invalidInput("name", "Name must be less than 255 characters")
	}
	return validateRules(r.Rules)
}

// PreviewSegmentRequest is the payload of POST /segments/preview.
type PreviewSegmentRequest struct {
	Rules ruleengine.RuleGroup `json:"rules"`
}

// Validate checks the rule group.
func (r *PreviewSegmentRequest) Validate() *ErrorResponse {
	return validateRules(r.Rules)
}

func validateRules(group ruleengine.RuleGroup) *ErrorResponse {
	if err := ruleengine.ValidateGroup(group); err != nil {
		return invalidInput("rules", err.Error())
	}
	return nil
}

// SegmentCustomersResponse is one page of hydrated segment members.
type SegmentCustomersResponse struct {
	SegmentID      string            `json:"segment_id"`
	Customers      []*store.Customer `json:"customers"`
	Pagination     OffsetPagination  `json:"pagination"`
	MaterializedAt *time.Time        `json:"materialized_at,omitempty"`
}

// -----------------------------------------------------------------------------
// Campaigns
// -----------------------------------------------------------------------------

// DeliverCampaignRequest is the payload of POST /campaigns/deliver.
type DeliverCampaignRequest struct {
	Name               string  `json:"name,omitempty"`
	SegmentID          string  `json:"segment_id"`
	Subject            string  `json:"subject"`
	Message            string  `json:"message"`
	DiscountPercentage float64 `json:"discount_percentage"`
}

func (r *DeliverCampaignRequest) toDomain() campaign.DeliverRequest {
	return campaign.DeliverRequest{
		Name:               strings.TrimSpace(r.Name),
		SegmentID:          strings.TrimSpace(r.SegmentID),
		Subject:            r.Subject,
		Message:            r.Message,
		DiscountPercentage: r.DiscountPercentage,
	}
}

// Validate reuses the dispatcher's own request checks.
func (r *DeliverCampaignRequest) Validate() *ErrorResponse {
	if err := r.toDomain().Validate(); err != nil {
		// The dispatcher formats issues as "invalid campaign: <issue>".
		issue := strings.TrimPrefix(err.Error(), campaign.ErrInvalidCampaign.Error()+": ")
		field, _, _ := strings.Cut(issue, " ")
		return invalidInput(field, issue)
	}
	return nil
}

// DeliverCampaignResponse is the synchronous dispatch summary.
type DeliverCampaignResponse struct {
	Success           bool                      `json:"success"`
	CampaignID        string                    `json:"campaign_id"`
	TotalMessages     int                       `json:"total_messages"`
	SentCount         int                       `json:"sent_count"`
	FailedCount       int                       `json:"failed_count"`
	CommunicationLogs []*store.CommunicationLog `json:"communication_logs"`
}

// -----------------------------------------------------------------------------
// Vendor boundary
// -----------------------------------------------------------------------------

// VendorSendRequest is the payload of POST /vendor/send.
type VendorSendRequest struct {
	MessageID     string `json:"message_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	Message       string `json:"message"`
	Subject       string `json:"subject"`
}

// Validate checks the fields the gateway needs.
func (r *VendorSendRequest) Validate() *ErrorResponse {
	switch {
	case strings.TrimSpace(r.MessageID) == "":
		return invalidInput("message_id", "message_id is required")
	case strings.TrimSpace(r.CustomerEmail) == "":
		return invalidInput("customer_email", "customer_email is required")
	case strings.TrimSpace(r.Message) == "":
		return invalidInput("message", "message is required")
	}
	return nil
}

// VendorSendResponse is the gateway's synchronous verdict.
type VendorSendResponse struct {
	Success         bool   `json:"success"`
	MessageID       string `json:"message_id"`
	VendorMessageID string `json:"vendor_message_id,omitempty"`
	Status          string `json:"status"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// DeliveryReceiptRequest is the payload of POST /delivery-receipt.
type DeliveryReceiptRequest struct {
	MessageID       string              `json:"message_id"`
	VendorMessageID string              `json:"vendor_message_id"`
	Status          store.MessageStatus `json:"status"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	ErrorMessage    string              `json:"error_message,omitempty"`
}

// Validate accepts only final statuses.
func (r *DeliveryReceiptRequest) Validate() *ErrorResponse {
	r.Status = store.MessageStatus(strings.ToUpper(strings.TrimSpace(string(r.Status))))
	if strings.TrimSpace(r.MessageID) == "" {
		return invalidInput("message_id", "message_id is required")
	}
	if r.Status != store.StatusDelivered && r.Status != store.StatusFailed {
		return invalidInput("status", "status must be DELIVERED or FAILED")
	}
	return nil
}

// DeliveryReceiptResponse reports how many log entries the receipt changed.
type DeliveryReceiptResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	UpdatedCount int    `json:"updated_count"`
}

// SentMessagesResponse is one page of the communication log.
type SentMessagesResponse struct {
	Messages   []*store.CommunicationLog `json:"messages"`
	Pagination Pagination                `json:"pagination"`
}

// -----------------------------------------------------------------------------
// Shared envelopes
// -----------------------------------------------------------------------------

// PaginatedResponse is a standard wrapper for list endpoints to support offset pagination.
type PaginatedResponse struct {
	// Data holds the list of resources.
	Data any `json:"data"`

	Pagination Pagination `json:"pagination"`
}

// Pagination metadata for the frontend pager.
type Pagination struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
}

// OffsetPagination describes a limit/offset window.
type OffsetPagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details provides optional granular validation errors.
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail provides context about specific field validation failures.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}
