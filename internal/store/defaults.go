package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/rafaeljc/herald/internal/ruleengine"
)

// The prepare helpers assign identifiers and timestamps before a write, so
// every backend produces identical records for the same input.

func prepareCustomer(c *Customer) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
}

func prepareSegment(seg *Segment) {
	if seg.ID == "" {
		seg.ID = uuid.NewString()
	}
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = time.Now().UTC()
	}
	if seg.CustomerIDs == nil {
		seg.CustomerIDs = []string{}
	}
	if seg.Rules.And == nil {
		seg.Rules.And = []ruleengine.Rule{}
	}
	if seg.Rules.Or == nil {
		seg.Rules.Or = []ruleengine.Rule{}
	}
	seg.CustomerCount = len(seg.CustomerIDs)
}

func prepareCampaign(c *Campaign) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = CampaignDraft
	}
}

func prepareLog(l *CommunicationLog) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	if l.Status == "" {
		l.Status = StatusPending
	}
}

func prepareMessage(m *VendorMessage) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
}
