package utils

import (
	"strings"
	"testing"
)

func TestIsBlank(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"empty", "", true},
		{"spaces", "   ", true},
		{"tabs_and_newlines", "\t\n  \r", true},
		{"word", "condo", false},
		{"padded_word", "  two bedrooms  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBlank(tt.input); got != tt.want {
				t.Errorf("IsBlank(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "short_text_verbatim",
			input: "Lofts near the river",
			want:  "Lofts near the river",
		},
		{
			name:  "exactly_thirty_runes",
			input: strings.Repeat("a", 30),
			want:  strings.Repeat("a", 30),
		},
		{
			name:  "long_text_truncated",
			input: "Looking for a three bedroom house with a garden in Oakland",
			want:  "Looking for a three bedroom ho...",
		},
		{
			name:  "surrounding_whitespace_trimmed",
			input: "  pet friendly apartments  ",
			want:  "pet friendly apartments",
		},
		{
			name:  "multibyte_runes_not_split",
			input: strings.Repeat("é", 31),
			want:  strings.Repeat("é", 30) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.input); got != tt.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
