package events

import "testing"

func TestIsValidSeverity(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		expected bool
	}{
		{"info", "info", true},
		{"warning", "warning", true},
		{"error", "error", true},
		{"critical", "critical", true},
		{"invalid", "fatal", false},
		{"empty string", "", false},
		{"uppercase", "INFO", false},
		{"with space", "info ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidSeverity(tt.s)
			if result != tt.expected {
				t.Errorf("IsValidSeverity(%q) = %v, expected %v", tt.s, result, tt.expected)
			}
		})
	}
}
