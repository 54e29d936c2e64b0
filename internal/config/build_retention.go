package config

import (
	"fmt"
)

// BuildRetentionConfig holds configuration for pruning stored builds
type BuildRetentionConfig struct {
	// KeepBuilds is how many of the newest builds (by version) to keep
	// Older builds are deleted together with their modules
	// Default: 5, Range: 0-1000
	// 0 = never prune
	KeepBuilds int `yaml:"keep_builds"`
}

// DefaultBuildRetentionConfig returns the default build retention configuration
//
// Five builds cover the stable, beta and canary channels with room to diff
// against the previous release of each.
func DefaultBuildRetentionConfig() BuildRetentionConfig {
	return BuildRetentionConfig{
		KeepBuilds: 5,
	}
}

// Validate checks if the configuration has valid values
func (c BuildRetentionConfig) Validate() error {
	if c.KeepBuilds < 0 || c.KeepBuilds > 1000 {
		return fmt.Errorf("keep_builds must be between 0 and 1000 (got %d)", c.KeepBuilds)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c BuildRetentionConfig) String() string {
	return fmt.Sprintf("BuildRetentionConfig{KeepBuilds: %d}", c.KeepBuilds)
}

// applyEnv overrides fields from environment variables
//
// Environment variables:
//   - MODHOOK_KEEP_BUILDS: Number of newest builds to keep, 0 to disable pruning (default: 5)
func (c *BuildRetentionConfig) applyEnv() error {
	return parseEnvInt("MODHOOK_KEEP_BUILDS", &c.KeepBuilds)
}
