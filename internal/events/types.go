package events

import (
	"context"
	"time"
)

// EventType represents the type of event emitted by the finder or the reporter.
type EventType string

const (
	// Registry lifecycle events
	// EventTypeInterestCreated indicates a caller declared a lazy interest
	EventTypeInterestCreated EventType = "interest_created"
	// EventTypeInterestResolved indicates a pending interest matched a module
	EventTypeInterestResolved EventType = "interest_resolved"
	// EventTypeInterestReleased indicates the last handle on a pending interest was released
	EventTypeInterestReleased EventType = "interest_released"
	// EventTypePredicateFailed indicates a predicate errored or panicked on a module
	EventTypePredicateFailed EventType = "predicate_failed"

	// Build events
	// EventTypeBuildIngested indicates a bundle snapshot was stored
	EventTypeBuildIngested EventType = "build_ingested"

	// Report events
	// EventTypeFindUnresolved indicates a lazy find was still pending after replay
	EventTypeFindUnresolved EventType = "find_unresolved"
	// EventTypePatchChecked indicates a patch applied cleanly to the build
	EventTypePatchChecked EventType = "patch_checked"
	// EventTypePatchFailed indicates a patch find or replacement did not apply
	EventTypePatchFailed EventType = "patch_failed"
	// EventTypeReportCompleted indicates a report run finished
	EventTypeReportCompleted EventType = "report_completed"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
	// SeverityCritical indicates critical events requiring immediate attention
	SeverityCritical EventSeverity = "critical"
)

// RegistryEvent represents something that happened while modules streamed
// into a graph or while a build was checked.
type RegistryEvent struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// BuildID is the stored build the event relates to, if any
	BuildID string `json:"build_id"`
	// ModuleID is the module involved, if any
	ModuleID string `json:"module_id"`
	// InterestID is the lazy interest involved, if any
	InterestID string `json:"interest_id"`
	// Plugin is the plugin whose patch or find produced the event
	Plugin string `json:"plugin"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data"`
}

// InterestResolvedData contains structured data for resolution events.
type InterestResolvedData struct {
	// Filter describes the predicate that matched
	Filter string `json:"filter"`
	// Name is the human name given with filters.Named
	Name string `json:"name,omitempty"`
	// ModulesTested is how many modules the interest was tested against
	ModulesTested int `json:"modules_tested"`
	// Handles is the number of live handles notified
	Handles int `json:"handles"`
	// WaitMs is how long the interest was pending in milliseconds
	WaitMs int64 `json:"wait_ms"`
}

// PredicateFailedData contains structured data for predicate failures.
type PredicateFailedData struct {
	// Filter describes the failing predicate
	Filter string `json:"filter"`
	// Error is the error or recovered panic value
	Error string `json:"error"`
	// Panicked indicates the predicate panicked rather than returning an error
	Panicked bool `json:"panicked"`
}

// BuildIngestedData contains structured data for ingestion events.
type BuildIngestedData struct {
	// Version is the host build version
	Version string `json:"version"`
	// ModuleCount is the number of modules stored
	ModuleCount int `json:"module_count"`
	// Source is the snapshot file the build was read from
	Source string `json:"source,omitempty"`
}

// FindUnresolvedData contains structured data for unresolved finds.
type FindUnresolvedData struct {
	// Name is the find's name in the plugin file
	Name string `json:"name"`
	// Filter describes the predicate
	Filter string `json:"filter"`
}

// PatchFailedData contains structured data for patch check failures.
type PatchFailedData struct {
	// Find is the display form of the patch's find pattern
	Find string `json:"find"`
	// Match is the display form of the failing replacement match, if any
	Match string `json:"match,omitempty"`
	// Reason is a short machine-readable failure reason
	Reason string `json:"reason"`
	// Matches is the number of modules the find matched
	Matches int `json:"matches"`
}

// ReportCompletedData contains structured data for report completion events.
type ReportCompletedData struct {
	// ReportID identifies the report run
	ReportID string `json:"report_id"`
	// Modules is the number of modules replayed
	Modules int `json:"modules"`
	// Patches is the number of patches checked
	Patches int `json:"patches"`
	// FailedPatches is the number of patches with at least one problem
	FailedPatches int `json:"failed_patches"`
	// UnresolvedFinds is the number of lazy finds left pending
	UnresolvedFinds int `json:"unresolved_finds"`
	// ProcessingTimeMs is the time taken in milliseconds
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// EventStore defines the interface for storing and retrieving registry events.
type EventStore interface {
	// StoreEvent stores a new event in the event store
	StoreEvent(ctx context.Context, event *RegistryEvent) error

	// GetEvents retrieves events matching the given filter
	GetEvents(ctx context.Context, filter EventFilter) ([]*RegistryEvent, error)
}

// EventFilter defines criteria for filtering events.
type EventFilter struct {
	// BuildID filters events by build ID
	BuildID string
	// InterestID filters events by interest ID
	InterestID string
	// Plugin filters events by plugin name
	Plugin string
	// Type filters events by event type
	Type EventType
	// Severity filters events by severity level
	Severity EventSeverity
	// AfterTime filters events that occurred after this time
	AfterTime time.Time
	// BeforeTime filters events that occurred before this time
	BeforeTime time.Time
	// Limit limits the number of events returned
	Limit int
}

// IsValidSeverity validates a severity string supplied on the command line.
func IsValidSeverity(s string) bool {
	switch EventSeverity(s) {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}
