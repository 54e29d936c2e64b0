package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/steveyegge/modhook/internal/events"
)

// displayEvent formats and prints a single event with color
func displayEvent(w io.Writer, event *events.RegistryEvent) {
	severityColor := getSeverityColor(event.Severity)
	timestamp := event.Timestamp.Format("15:04:05")
	eventType := color.New(color.FgMagenta).Sprint(event.Type)

	scope := event.BuildID
	if len(scope) > 8 {
		scope = scope[:8]
	}
	if event.Plugin != "" {
		scope += "/" + event.Plugin
	}

	fmt.Fprintf(w, "%s [%s] %s %s: %s\n",
		getSeverityIcon(event.Severity),
		timestamp,
		color.New(color.FgGreen).Sprint(scope),
		eventType,
		severityColor.Sprint(event.Message),
	)

	if meta := extractEventMetadata(event); meta != "" {
		gray := color.New(color.FgHiBlack)
		fmt.Fprintf(w, "    %s\n", gray.Sprint(meta))
	}
}

// getSeverityIcon returns the marker printed before an event
func getSeverityIcon(severity events.EventSeverity) string {
	switch severity {
	case events.SeverityInfo:
		return "ℹ️"
	case events.SeverityWarning:
		return "⚠️"
	case events.SeverityError:
		return "❌"
	case events.SeverityCritical:
		return "🔥"
	default:
		return "•"
	}
}

// getSeverityColor returns the appropriate color for a severity level
func getSeverityColor(severity events.EventSeverity) *color.Color {
	switch severity {
	case events.SeverityInfo:
		return color.New(color.FgCyan)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	case events.SeverityError:
		return color.New(color.FgRed)
	case events.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}

// extractEventMetadata picks the few data fields worth showing for each
// event type, joined with " | " and truncated to fit a narrow terminal.
func extractEventMetadata(event *events.RegistryEvent) string {
	var fields []string

	switch event.Type {
	case events.EventTypeInterestResolved:
		fields = append(fields,
			getStringField(event.Data, "name", ""),
			"module "+event.ModuleID,
			fmt.Sprintf("%d tested", getIntField(event.Data, "modules_tested", 0)),
			formatDurationMs(getIntField(event.Data, "wait_ms", 0)),
		)
	case events.EventTypePredicateFailed:
		kind := "error"
		if getBoolField(event.Data, "panicked", false) {
			kind = "panic"
		}
		fields = append(fields,
			"module "+event.ModuleID,
			kind,
			getStringField(event.Data, "error", ""),
		)
	case events.EventTypeBuildIngested:
		fields = append(fields,
			getStringField(event.Data, "version", ""),
			fmt.Sprintf("%s modules", formatNumber(getIntField(event.Data, "module_count", 0))),
			getStringField(event.Data, "source", ""),
		)
	case events.EventTypePatchChecked, events.EventTypePatchFailed:
		fields = append(fields,
			getStringField(event.Data, "reason", ""),
			fmt.Sprintf("%d matches", getIntField(event.Data, "matches", 0)),
			getStringField(event.Data, "find", ""),
		)
		if m := getStringField(event.Data, "match", ""); m != "" {
			fields = append(fields, "match "+m)
		}
	case events.EventTypeFindUnresolved:
		fields = append(fields,
			getStringField(event.Data, "name", ""),
			getStringField(event.Data, "filter", ""),
		)
	case events.EventTypeReportCompleted:
		fields = append(fields,
			fmt.Sprintf("%d patches", getIntField(event.Data, "patches", 0)),
			fmt.Sprintf("%d failed", getIntField(event.Data, "failed_patches", 0)),
			fmt.Sprintf("%d unresolved", getIntField(event.Data, "unresolved_finds", 0)),
			formatDurationMs(getIntField(event.Data, "processing_time_ms", 0)),
		)
	default:
		keys := make([]string, 0, len(event.Data))
		for k := range event.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, fmt.Sprintf("%s=%v", k, event.Data[k]))
		}
	}

	return truncateString(joinFields(fields), 70)
}

// Helper functions to safely extract typed fields from event data
func getStringField(data map[string]interface{}, key, defaultValue string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return defaultValue
}

func getIntField(data map[string]interface{}, key string, defaultValue int) int {
	switch val := data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	}
	return defaultValue
}

func getBoolField(data map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := data[key].(bool); ok {
		return val
	}
	return defaultValue
}

// formatDurationMs formats milliseconds into a human-readable duration
func formatDurationMs(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%.1fm", float64(ms)/60000)
}

// joinFields joins non-empty metadata fields with " | "
func joinFields(fields []string) string {
	nonEmpty := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	return strings.Join(nonEmpty, " | ")
}

// shouldSkipEvent returns true for interest bookkeeping events that would
// drown out check results
func shouldSkipEvent(event *events.RegistryEvent) bool {
	switch event.Type {
	case events.EventTypeInterestCreated, events.EventTypeInterestReleased:
		return true
	}
	return false
}

// truncateString truncates a string to maxLen runes, adding "..." if needed
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatNumber formats a number with thousand separators
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return formatNumber(n/1000) + fmt.Sprintf(",%03d", n%1000)
}
