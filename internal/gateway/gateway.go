// Package gateway is the boundary to the message-sending provider. The only
// provider shipped is Simulated, which injects failures and schedules delivery
// receipts; a real provider plugs in behind the same Gateway contract.
package gateway

import (
	"context"
	"errors"

	"github.com/rafaeljc/herald/internal/receipt"
)

// ErrInvalidMessage is returned for messages the gateway cannot even attempt.
var ErrInvalidMessage = errors.New("invalid vendor message")

// Failure reasons reported on synchronous rejections.
const (
	ReasonInvalidAddress     = "Invalid email address"
	ReasonMailboxFull        = "Mailbox full"
	ReasonTimeout            = "Timeout"
	ReasonServiceUnavailable = "Service unavailable"
	ReasonInvalidFormat      = "Invalid format"
)

// FailureReasons is the rejection taxonomy, sampled uniformly.
var FailureReasons = []string{
	ReasonInvalidAddress,
	ReasonMailboxFull,
	ReasonTimeout,
	ReasonServiceUnavailable,
	ReasonInvalidFormat,
}

// Message is one personalized message handed to the provider.
type Message struct {
	MessageID     string
	CustomerEmail string
	CustomerName  string
	Subject       string
	Body          string
}

// Result is the provider's synchronous verdict.
type Result struct {
	Accepted        bool
	VendorMessageID string
	ErrorMessage    string
}

// Gateway sends one message at a time. A rejection is a Result, not an error;
// the error return is reserved for messages that could not be attempted.
type Gateway interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// ReceiptHandler consumes the provider's delayed confirmations.
type ReceiptHandler interface {
	OnReceipt(ctx context.Context, r receipt.Receipt) receipt.Outcome
}
