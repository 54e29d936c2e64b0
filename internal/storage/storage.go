package storage

import (
	"context"
	"fmt"

	"github.com/steveyegge/modhook/internal/config"
	"github.com/steveyegge/modhook/internal/events"
	"github.com/steveyegge/modhook/internal/modgraph"
	"github.com/steveyegge/modhook/internal/storage/sqlite"
)

// Build describes an ingested host bundle.
type Build = sqlite.Build

// ErrBuildNotFound is returned when no stored build matches.
var ErrBuildNotFound = sqlite.ErrBuildNotFound

// Storage defines the interface for build and event storage backends
type Storage interface {
	// Builds - ingested module snapshots
	SaveBuild(ctx context.Context, snap *modgraph.Snapshot, source string) (*Build, error)
	GetBuild(ctx context.Context, id string) (*Build, error)
	ListBuilds(ctx context.Context) ([]*Build, error)
	LatestBuild(ctx context.Context) (*Build, error)
	LoadSnapshot(ctx context.Context, buildID string) (*modgraph.Snapshot, error)
	PruneBuilds(ctx context.Context, keep int) ([]string, error)

	// Registry Events - interest lifecycle and patch check results
	StoreEvent(ctx context.Context, event *events.RegistryEvent) error
	GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.RegistryEvent, error)
	GetEventsByBuild(ctx context.Context, buildID string) ([]*events.RegistryEvent, error)

	// Event Cleanup - retention policy enforcement
	CleanupOrphanedEvents(ctx context.Context, batchSize int) (int, error)
	CleanupEventsByAge(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error)
	CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error)
	GetEventCounts(ctx context.Context) (*sqlite.EventCounts, error)
	VacuumDatabase(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Storage also serves as the event store behind events.StoreSink.
var _ events.EventStore = Storage(nil)

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".modhook/modhook.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: config.DefaultConfig().DatabasePath,
	}
}

// NewStorage creates a new SQLite storage backend
// The ctx parameter is currently unused but kept for API consistency
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Default to standard path if not specified
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}

	return sqlite.New(cfg.Path)
}

// CleanupResult reports what RunEventCleanup removed
type CleanupResult struct {
	DeletedOrphaned int
	DeletedByAge    int
	DeletedByLimit  int
	RemainingEvents int
}

// RunEventCleanup applies the retention policy: events of pruned builds
// first, then age-based deletion, then the global cap. Events of the newest
// build survive the last two. It is a no-op when cleanup is disabled.
func RunEventCleanup(ctx context.Context, s Storage, cfg config.EventRetentionConfig) (*CleanupResult, error) {
	result := &CleanupResult{}
	if !cfg.CleanupEnabled {
		return result, nil
	}

	var err error
	result.DeletedOrphaned, err = s.CleanupOrphanedEvents(ctx, cfg.CleanupBatchSize)
	if err != nil {
		return result, fmt.Errorf("orphan cleanup: %w", err)
	}

	result.DeletedByAge, err = s.CleanupEventsByAge(ctx, cfg.RetentionDays, cfg.RetentionCriticalDays, cfg.CleanupBatchSize)
	if err != nil {
		return result, fmt.Errorf("age cleanup: %w", err)
	}

	result.DeletedByLimit, err = s.CleanupEventsByGlobalLimit(ctx, cfg.GlobalLimitEvents, cfg.CleanupBatchSize)
	if err != nil {
		return result, fmt.Errorf("global limit cleanup: %w", err)
	}

	counts, err := s.GetEventCounts(ctx)
	if err != nil {
		return result, err
	}
	result.RemainingEvents = counts.TotalEvents
	return result, nil
}
