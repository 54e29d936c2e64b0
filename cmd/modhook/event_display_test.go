package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/steveyegge/modhook/internal/events"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    int
		expected string
	}{
		{0, "0"},
		{42, "42"},
		{999, "999"},
		{1000, "1,000"},
		{1001, "1,001"},
		{99999, "99,999"},
		{1000000, "1,000,000"},
		{1234567, "1,234,567"},
		{2147483647, "2,147,483,647"},
		{-1, "-1"},
		{-1234567, "-1,234,567"},
	}

	for _, tt := range tests {
		result := formatNumber(tt.input)
		if result != tt.expected {
			t.Errorf("formatNumber(%d) = %s; want %s", tt.input, result, tt.expected)
		}
	}
}

func TestExtractEventMetadata_PatchFailed(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]interface{}
		expected string
	}{
		{
			name: "no match",
			data: map[string]interface{}{
				"find":    "openModal",
				"reason":  "no_match",
				"matches": float64(0),
			},
			expected: "no_match | 0 matches | openModal",
		},
		{
			name: "no effect with match",
			data: map[string]interface{}{
				"find":    "track(",
				"match":   "/x\\(/",
				"reason":  "no_effect",
				"matches": 1,
			},
			expected: "no_effect | 1 matches | track( | match /x\\(/",
		},
		{
			name:     "all fields missing",
			data:     map[string]interface{}{},
			expected: "0 matches",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &events.RegistryEvent{
				Type:      events.EventTypePatchFailed,
				Data:      tt.data,
				Timestamp: time.Now(),
			}
			result := extractEventMetadata(event)
			if result != tt.expected {
				t.Errorf("extractEventMetadata() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestExtractEventMetadata_ReportCompleted(t *testing.T) {
	event := &events.RegistryEvent{
		Type: events.EventTypeReportCompleted,
		Data: map[string]interface{}{
			"patches":            float64(12),
			"failed_patches":     float64(2),
			"unresolved_finds":   float64(1),
			"processing_time_ms": float64(2500),
		},
	}
	expected := "12 patches | 2 failed | 1 unresolved | 2.5s"
	if result := extractEventMetadata(event); result != expected {
		t.Errorf("extractEventMetadata() = %q, want %q", result, expected)
	}
}

func TestExtractEventMetadata_PredicateFailed(t *testing.T) {
	event := &events.RegistryEvent{
		Type:     events.EventTypePredicateFailed,
		ModuleID: "42",
		Data: map[string]interface{}{
			"filter":   "byFunc",
			"error":    "boom",
			"panicked": true,
		},
	}
	expected := "module 42 | panic | boom"
	if result := extractEventMetadata(event); result != expected {
		t.Errorf("extractEventMetadata() = %q, want %q", result, expected)
	}
}

func TestExtractEventMetadata_UnknownTypeSortsKeys(t *testing.T) {
	event := &events.RegistryEvent{
		Type: events.EventType("custom"),
		Data: map[string]interface{}{"b": 2, "a": "x"},
	}
	expected := "a=x | b=2"
	if result := extractEventMetadata(event); result != expected {
		t.Errorf("extractEventMetadata() = %q, want %q", result, expected)
	}
}

func TestExtractEventMetadata_Truncates(t *testing.T) {
	event := &events.RegistryEvent{
		Type: events.EventTypeFindUnresolved,
		Data: map[string]interface{}{
			"name":   "Tracker",
			"filter": strings.Repeat("x", 200),
		},
	}
	result := extractEventMetadata(event)
	if len(result) != 70 || !strings.HasSuffix(result, "...") {
		t.Errorf("expected 70-char truncated metadata, got %q (%d)", result, len(result))
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in     string
		max    int
		expect string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "..."},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.expect {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.expect)
		}
	}
}

func TestFormatDurationMs(t *testing.T) {
	tests := map[int]string{
		0:      "0ms",
		999:    "999ms",
		1500:   "1.5s",
		120000: "2.0m",
	}
	for in, want := range tests {
		if got := formatDurationMs(in); got != want {
			t.Errorf("formatDurationMs(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestShouldSkipEvent(t *testing.T) {
	skipped := []events.EventType{events.EventTypeInterestCreated, events.EventTypeInterestReleased}
	for _, typ := range skipped {
		if !shouldSkipEvent(&events.RegistryEvent{Type: typ}) {
			t.Errorf("expected %s to be skipped", typ)
		}
	}
	kept := []events.EventType{events.EventTypeInterestResolved, events.EventTypePatchFailed, events.EventTypeReportCompleted}
	for _, typ := range kept {
		if shouldSkipEvent(&events.RegistryEvent{Type: typ}) {
			t.Errorf("expected %s to be shown", typ)
		}
	}
}

func TestDisplayEvent(t *testing.T) {
	color.NoColor = true

	event := &events.RegistryEvent{
		Type:      events.EventTypeBuildIngested,
		Timestamp: time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC),
		BuildID:   "0123456789abcdef",
		Severity:  events.SeverityInfo,
		Message:   "build 1.2.0 ingested",
		Data: map[string]interface{}{
			"version":      "1.2.0",
			"module_count": float64(1500),
		},
	}

	var buf bytes.Buffer
	displayEvent(&buf, event)
	out := buf.String()

	for _, want := range []string{"[14:05:09]", "01234567 ", "build_ingested", "build 1.2.0 ingested", "1.2.0 | 1,500 modules"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
