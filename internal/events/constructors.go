package events

import (
	"time"

	"github.com/google/uuid"
)

// NewSimpleEvent creates a RegistryEvent with no structured data.
func NewSimpleEvent(eventType EventType, severity EventSeverity, message string) *RegistryEvent {
	return &RegistryEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Severity:  severity,
		Message:   message,
		Data:      make(map[string]interface{}),
	}
}

// NewInterestCreatedEvent creates an event for a newly declared interest.
func NewInterestCreatedEvent(interestID, filter string) *RegistryEvent {
	event := NewSimpleEvent(EventTypeInterestCreated, SeverityInfo, "interest created")
	event.InterestID = interestID
	event.Data["filter"] = filter
	return event
}

// NewInterestReleasedEvent creates an event for a pending interest dropped by its callers.
func NewInterestReleasedEvent(interestID, filter string) *RegistryEvent {
	event := NewSimpleEvent(EventTypeInterestReleased, SeverityInfo, "interest released while pending")
	event.InterestID = interestID
	event.Data["filter"] = filter
	return event
}

// NewInterestResolvedEvent creates a resolution event with type-safe data.
func NewInterestResolvedEvent(interestID, moduleID string, data InterestResolvedData) (*RegistryEvent, error) {
	event := NewSimpleEvent(EventTypeInterestResolved, SeverityInfo, "interest resolved")
	event.InterestID = interestID
	event.ModuleID = moduleID
	if err := event.SetInterestResolvedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewPredicateFailedEvent creates a predicate failure event with type-safe data.
func NewPredicateFailedEvent(interestID, moduleID string, data PredicateFailedData) (*RegistryEvent, error) {
	event := NewSimpleEvent(EventTypePredicateFailed, SeverityWarning, "predicate failed: "+data.Error)
	event.InterestID = interestID
	event.ModuleID = moduleID
	if err := event.SetPredicateFailedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewBuildIngestedEvent creates an ingestion event with type-safe data.
func NewBuildIngestedEvent(buildID string, data BuildIngestedData) (*RegistryEvent, error) {
	event := NewSimpleEvent(EventTypeBuildIngested, SeverityInfo, "build "+data.Version+" ingested")
	event.BuildID = buildID
	if err := event.SetBuildIngestedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewFindUnresolvedEvent creates an event for a find left pending after replay.
func NewFindUnresolvedEvent(buildID, plugin string, data FindUnresolvedData) (*RegistryEvent, error) {
	event := NewSimpleEvent(EventTypeFindUnresolved, SeverityError, "find "+data.Name+" did not resolve")
	event.BuildID = buildID
	event.Plugin = plugin
	if err := event.SetFindUnresolvedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewPatchEvent creates a patch check event. A non-empty Reason marks a failure.
func NewPatchEvent(buildID, plugin string, data PatchFailedData) (*RegistryEvent, error) {
	eventType, severity, message := EventTypePatchChecked, SeverityInfo, "patch applies"
	if data.Reason != "" {
		eventType, severity, message = EventTypePatchFailed, SeverityError, "patch failed: "+data.Reason
	}
	event := NewSimpleEvent(eventType, severity, message)
	event.BuildID = buildID
	event.Plugin = plugin
	if err := event.SetPatchFailedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewReportCompletedEvent creates a report completion event with type-safe data.
func NewReportCompletedEvent(buildID string, data ReportCompletedData) (*RegistryEvent, error) {
	severity := SeverityInfo
	if data.FailedPatches > 0 || data.UnresolvedFinds > 0 {
		severity = SeverityWarning
	}
	event := NewSimpleEvent(EventTypeReportCompleted, severity, "report completed")
	event.BuildID = buildID
	if err := event.SetReportCompletedData(data); err != nil {
		return nil, err
	}
	return event, nil
}
