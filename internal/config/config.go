package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/modhook/internal/canon"
	"github.com/steveyegge/modhook/internal/patches"
)

// DefaultPath is where Load looks for the project configuration file.
const DefaultPath = ".modhook/config.yaml"

// Config is the modhook project configuration
type Config struct {
	// DatabasePath is the sqlite database holding builds and events
	// Default: .modhook/modhook.db
	DatabasePath string `yaml:"database"`

	// PatchesDir is the directory scanned for plugin patch files
	// Default: plugins
	PatchesDir string `yaml:"patches"`

	// SelfPathFormat renders a plugin's self path from its name
	// Must contain exactly one %s
	// Default: plugins/%s
	SelfPathFormat string `yaml:"self_path_format"`

	// Bracket configures when a hashed key renders as index syntax
	Bracket BracketConfig `yaml:"bracket"`

	// MatchTimeout bounds a single regex match
	// Default: 2s, 0 = no timeout
	MatchTimeout time.Duration `yaml:"match_timeout"`

	// Concurrency is the number of patches checked in parallel
	// Default: 4, Range: 1-256
	Concurrency int `yaml:"concurrency"`

	// Log configures the CLI log handler
	Log LogConfig `yaml:"log"`

	// Events configures registry event retention
	Events EventRetentionConfig `yaml:"events"`

	// Builds configures stored build pruning
	Builds BuildRetentionConfig `yaml:"builds"`
}

// BracketConfig mirrors canon.BracketRule
type BracketConfig struct {
	LeadingDigit bool   `yaml:"leading_digit"`
	Chars        string `yaml:"chars"`
}

// LogConfig selects the log level and output format
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is one of text, json, logfmt
	Format string `yaml:"format"`
}

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json", "logfmt"}
)

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	rule := canon.DefaultBracketRule()
	return Config{
		DatabasePath:   ".modhook/modhook.db",
		PatchesDir:     "plugins",
		SelfPathFormat: patches.DefaultSelfPathFormat,
		Bracket: BracketConfig{
			LeadingDigit: rule.LeadingDigit,
			Chars:        rule.Chars,
		},
		MatchTimeout: 2 * time.Second,
		Concurrency:  4,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Events: DefaultEventRetentionConfig(),
		Builds: DefaultBuildRetentionConfig(),
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database must not be empty")
	}
	if c.PatchesDir == "" {
		return fmt.Errorf("patches must not be empty")
	}
	if strings.Count(c.SelfPathFormat, "%s") != 1 || strings.Count(c.SelfPathFormat, "%") != 1 {
		return fmt.Errorf("self_path_format must contain exactly one %%s (got %q)", c.SelfPathFormat)
	}
	if !c.Bracket.LeadingDigit && c.Bracket.Chars == "" {
		return fmt.Errorf("bracket rule must set leading_digit or chars")
	}
	if c.MatchTimeout < 0 {
		return fmt.Errorf("match_timeout must not be negative (got %v)", c.MatchTimeout)
	}
	if c.Concurrency < 1 || c.Concurrency > 256 {
		return fmt.Errorf("concurrency must be between 1 and 256 (got %d)", c.Concurrency)
	}
	if !contains(validLogLevels, c.Log.Level) {
		return fmt.Errorf("log.level must be one of %s (got %q)",
			strings.Join(validLogLevels, ", "), c.Log.Level)
	}
	if !contains(validLogFormats, c.Log.Format) {
		return fmt.Errorf("log.format must be one of %s (got %q)",
			strings.Join(validLogFormats, ", "), c.Log.Format)
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := c.Builds.Validate(); err != nil {
		return fmt.Errorf("builds: %w", err)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Database: %s, Patches: %s, SelfPath: %s, Bracket: {LeadingDigit: %t, Chars: %q}, "+
			"MatchTimeout: %v, Concurrency: %d, Log: %s/%s, %s, %s}",
		c.DatabasePath, c.PatchesDir, c.SelfPathFormat, c.Bracket.LeadingDigit, c.Bracket.Chars,
		c.MatchTimeout, c.Concurrency, c.Log.Level, c.Log.Format, c.Events, c.Builds,
	)
}

// Canonicalizer builds a canonicalizer from the bracket and timeout settings
func (c Config) Canonicalizer() *canon.Canonicalizer {
	opts := canon.DefaultOptions()
	opts.Bracket = canon.BracketRule{
		LeadingDigit: c.Bracket.LeadingDigit,
		Chars:        c.Bracket.Chars,
	}
	opts.MatchTimeout = c.MatchTimeout
	return canon.New(opts)
}

// LoadOptions returns plugin loader options for this configuration
func (c Config) LoadOptions() patches.LoadOptions {
	return patches.LoadOptions{
		Canonicalizer:  c.Canonicalizer(),
		SelfPathFormat: c.SelfPathFormat,
	}
}

// Load reads the configuration file at path, applies environment overrides
// and validates the result.
//
// A missing file is not an error: defaults plus environment are used.
// Relative database and patch paths in the file resolve against the
// directory containing the .modhook directory.
//
// Environment variables:
//   - MODHOOK_DB: Database path
//   - MODHOOK_PATCHES: Plugin patch directory
//   - MODHOOK_SELF_PATH_FORMAT: Self path format
//   - MODHOOK_LOG_LEVEL: Log level (debug, info, warn, error)
//   - MODHOOK_LOG_FORMAT: Log format (text, json, logfmt)
//   - MODHOOK_CONCURRENCY: Parallel patch checks
//   - MODHOOK_MATCH_TIMEOUT: Regex match timeout (Go duration)
//   - MODHOOK_BRACKET_CHARS: Characters forcing bracket form
//   - MODHOOK_BRACKET_LEADING_DIGIT: Leading digit forces bracket form
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		root := projectRoot(path)
		cfg.DatabasePath = resolve(root, cfg.DatabasePath)
		cfg.PatchesDir = resolve(root, cfg.PatchesDir)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if err := parseEnvString("MODHOOK_DB", &c.DatabasePath); err != nil {
		return err
	}
	if err := parseEnvString("MODHOOK_PATCHES", &c.PatchesDir); err != nil {
		return err
	}
	if err := parseEnvString("MODHOOK_SELF_PATH_FORMAT", &c.SelfPathFormat); err != nil {
		return err
	}
	if err := parseEnvString("MODHOOK_LOG_LEVEL", &c.Log.Level); err != nil {
		return err
	}
	if err := parseEnvString("MODHOOK_LOG_FORMAT", &c.Log.Format); err != nil {
		return err
	}
	if err := parseEnvInt("MODHOOK_CONCURRENCY", &c.Concurrency); err != nil {
		return err
	}
	if err := parseEnvDuration("MODHOOK_MATCH_TIMEOUT", &c.MatchTimeout); err != nil {
		return err
	}
	if err := parseEnvString("MODHOOK_BRACKET_CHARS", &c.Bracket.Chars); err != nil {
		return err
	}
	if err := parseEnvBool("MODHOOK_BRACKET_LEADING_DIGIT", &c.Bracket.LeadingDigit); err != nil {
		return err
	}
	if err := c.Events.applyEnv(); err != nil {
		return err
	}
	return c.Builds.applyEnv()
}

// projectRoot returns the directory that owns the config file. For
// .modhook/config.yaml that is the parent of .modhook.
func projectRoot(path string) string {
	dir := filepath.Dir(path)
	if filepath.Base(dir) == ".modhook" {
		return filepath.Dir(dir)
	}
	return dir
}

func resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
