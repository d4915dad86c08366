package config

import (
	"fmt"
	"time"
)

// VendorConfig configures the simulated vendor gateway.
// The defaults reproduce the reference simulation: 10% synchronous rejections
// and a delivery receipt 1-3s after every accepted message.
type VendorConfig struct {
	FailureRate     float64       `envconfig:"FAILURE_RATE" default:"0.1" validate:"min=0,max=1"`
	BounceRate      float64       `envconfig:"BOUNCE_RATE" default:"0" validate:"min=0,max=1"`
	ReceiptMinDelay time.Duration `envconfig:"RECEIPT_MIN_DELAY" default:"1s"`
	ReceiptMaxDelay time.Duration `envconfig:"RECEIPT_MAX_DELAY" default:"3s"`

	// ReceiptWorkers is the number of goroutines draining due receipts.
	ReceiptWorkers int `envconfig:"RECEIPT_WORKERS" default:"4" validate:"min=1"`

	// ReceiptAttempts bounds redelivery of receipts that arrive before the
	// log entry was marked SENT.
	ReceiptAttempts int           `envconfig:"RECEIPT_ATTEMPTS" default:"5" validate:"min=1"`
	RedeliveryDelay time.Duration `envconfig:"REDELIVERY_DELAY" default:"250ms"`
}

// Validate checks the delay range.
func (c *VendorConfig) Validate() error {
	if c.ReceiptMinDelay < 0 {
		return fmt.Errorf("vendor receipt min delay cannot be negative")
	}
	if c.ReceiptMaxDelay < c.ReceiptMinDelay {
		return fmt.Errorf("vendor receipt max delay (%s) cannot be less than min delay (%s)", c.ReceiptMaxDelay, c.ReceiptMinDelay)
	}
	return nil
}
