package sanitize

import "testing"

func TestPhone(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"+15551234567", "+15*******67"},
		{"5551234567", "555*****67"},
		{"+420777888999", "+42********99"},
		{"1234", "****"},
		{"", "****"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Phone(tt.input); got != tt.expected {
				t.Errorf("Phone(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPartialMask(t *testing.T) {
	tests := []struct {
		input     string
		keepStart int
		keepEnd   int
		expected  string
	}{
		{"1234567890", 2, 2, "12******90"},
		{"abc", 2, 2, "***"},
		{"", 2, 2, ""},
		{"abcdef", 0, 0, "******"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := PartialMask(tt.input, tt.keepStart, tt.keepEnd); got != tt.expected {
				t.Errorf("PartialMask(%q, %d, %d) = %q, want %q",
					tt.input, tt.keepStart, tt.keepEnd, got, tt.expected)
			}
		})
	}
}

func TestID(t *testing.T) {
	if got := ID("abcdef123456ghij"); got != "abcd********ghij" {
		t.Errorf("ID() = %q, want 'abcd********ghij'", got)
	}
	if got := ID("short"); got != "*****" {
		t.Errorf("ID() = %q, want '*****' for short identifiers", got)
	}
}
