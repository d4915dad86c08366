package config

import (
	"fmt"
	"time"
)

// CampaignConfig configures the dispatch orchestrator.
type CampaignConfig struct {
	// DispatchConcurrency bounds in-flight vendor calls per campaign.
	DispatchConcurrency int `envconfig:"DISPATCH_CONCURRENCY" default:"8" validate:"min=1,max=256"`
}

// StatsConfig configures the statistics aggregator.
type StatsConfig struct {
	WindowDays int    `envconfig:"WINDOW_DAYS" default:"7" validate:"min=1,max=90"`
	Timezone   string `envconfig:"TIMEZONE" default:"UTC"`
}

// Location resolves the configured timezone. Validate guarantees it loads.
func (c *StatsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks that the timezone is known.
func (c *StatsConfig) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid stats timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// RefresherConfig contains configuration for the segment refresher worker.
type RefresherConfig struct {
	Enabled  bool          `envconfig:"ENABLED" default:"false"`
	Interval time.Duration `envconfig:"INTERVAL" default:"5m" validate:"min=1s"`
}
