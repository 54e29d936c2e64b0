package config

import (
	"fmt"
)

// EventRetentionConfig holds configuration for registry event retention and cleanup
type EventRetentionConfig struct {
	// RetentionDays is the retention period for regular events (in days)
	// Events older than this are eligible for deletion
	// Default: 30, Range: 1-365
	RetentionDays int `yaml:"retention_days"`

	// RetentionCriticalDays is the retention period for error/critical events (in days)
	// Failed patches and unresolved finds are kept longer to compare builds
	// Must be >= RetentionDays
	// Default: 90, Range: 1-730
	RetentionCriticalDays int `yaml:"retention_critical_days"`

	// GlobalLimitEvents is the maximum total number of events to keep
	// This is a safety limit to prevent database bloat
	// Default: 100000, Range: 1000-1000000
	GlobalLimitEvents int `yaml:"global_limit_events"`

	// CleanupBatchSize is the number of events to delete per transaction
	// Larger batches = faster cleanup but longer locks
	// Default: 1000, Range: 100-10000
	CleanupBatchSize int `yaml:"cleanup_batch_size"`

	// CleanupEnabled controls whether cleanup runs after each check
	// Default: true
	CleanupEnabled bool `yaml:"cleanup_enabled"`
}

// DefaultEventRetentionConfig returns the default event retention configuration
//
// These defaults are chosen to:
// - Keep a month of report history
// - Keep failures for a full release cycle (90 days)
// - Cap total database size (100k events)
func DefaultEventRetentionConfig() EventRetentionConfig {
	return EventRetentionConfig{
		RetentionDays:         30,
		RetentionCriticalDays: 90,
		GlobalLimitEvents:     100000,
		CleanupBatchSize:      1000,
		CleanupEnabled:        true,
	}
}

// Validate checks if the configuration has valid values
func (c EventRetentionConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("retention_days must be between 1 and 365 (got %d)", c.RetentionDays)
	}

	if c.RetentionCriticalDays < 1 || c.RetentionCriticalDays > 730 {
		return fmt.Errorf("retention_critical_days must be between 1 and 730 (got %d)",
			c.RetentionCriticalDays)
	}
	if c.RetentionCriticalDays < c.RetentionDays {
		return fmt.Errorf("retention_critical_days (%d) must be >= retention_days (%d)",
			c.RetentionCriticalDays, c.RetentionDays)
	}

	if c.GlobalLimitEvents < 1000 {
		return fmt.Errorf("global_limit_events must be at least 1000 (got %d)",
			c.GlobalLimitEvents)
	}
	if c.GlobalLimitEvents > 1000000 {
		return fmt.Errorf("global_limit_events too large (got %d, max 1000000)",
			c.GlobalLimitEvents)
	}

	if c.CleanupBatchSize < 100 {
		return fmt.Errorf("cleanup_batch_size must be at least 100 (got %d)",
			c.CleanupBatchSize)
	}
	if c.CleanupBatchSize > 10000 {
		return fmt.Errorf("cleanup_batch_size too large (got %d, max 10000)",
			c.CleanupBatchSize)
	}

	return nil
}

// String returns a human-readable representation of the config
func (c EventRetentionConfig) String() string {
	return fmt.Sprintf(
		"EventRetentionConfig{RetentionDays: %d, RetentionCriticalDays: %d, "+
			"GlobalLimit: %d, BatchSize: %d, Enabled: %t}",
		c.RetentionDays, c.RetentionCriticalDays, c.GlobalLimitEvents,
		c.CleanupBatchSize, c.CleanupEnabled,
	)
}

// applyEnv overrides fields from environment variables
//
// Environment variables:
//   - MODHOOK_EVENT_RETENTION_DAYS: Retention period for regular events in days (default: 30)
//   - MODHOOK_EVENT_RETENTION_CRITICAL_DAYS: Retention period for failures in days (default: 90)
//   - MODHOOK_EVENT_GLOBAL_LIMIT: Maximum total events (default: 100000)
//   - MODHOOK_EVENT_CLEANUP_BATCH_SIZE: Events to delete per transaction (default: 1000)
//   - MODHOOK_EVENT_CLEANUP_ENABLED: Enable cleanup after checks (default: true)
func (c *EventRetentionConfig) applyEnv() error {
	if err := parseEnvInt("MODHOOK_EVENT_RETENTION_DAYS", &c.RetentionDays); err != nil {
		return err
	}
	if err := parseEnvInt("MODHOOK_EVENT_RETENTION_CRITICAL_DAYS", &c.RetentionCriticalDays); err != nil {
		return err
	}
	if err := parseEnvInt("MODHOOK_EVENT_GLOBAL_LIMIT", &c.GlobalLimitEvents); err != nil {
		return err
	}
	if err := parseEnvInt("MODHOOK_EVENT_CLEANUP_BATCH_SIZE", &c.CleanupBatchSize); err != nil {
		return err
	}
	return parseEnvBool("MODHOOK_EVENT_CLEANUP_ENABLED", &c.CleanupEnabled)
}
