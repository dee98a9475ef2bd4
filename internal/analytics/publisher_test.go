package analytics

import (
	"strings"
	"testing"
)

func TestSanitizeReferrer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain url unchanged",
			input:    "https://example.com/page",
			expected: "https://example.com/page",
		},
		{
			name:     "query stripped",
			input:    "https://example.com/search?q=secret&session=tok",
			expected: "https://example.com/search",
		},
		{
			name:     "fragment stripped",
			input:    "https://example.com/page#section-2",
			expected: "https://example.com/page",
		},
		{
			name:     "query and fragment stripped",
			input:    "https://example.com/a?b=c#d",
			expected: "https://example.com/a",
		},
		{
			name:     "empty stays empty",
			input:    "",
			expected: "",
		},
		{
			name:     "unparseable becomes empty",
			input:    "http://[::1]:badport/",
			expected: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := SanitizeReferrer(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeReferrer(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeReferrerTruncatesLongURLs(t *testing.T) {
	t.Parallel()

	long := "https://example.com/" + strings.Repeat("a", 600)
	result := SanitizeReferrer(long)
	if len(result) != maxMetaLength {
		t.Errorf("len = %d, want %d", len(result), maxMetaLength)
	}
}

func TestTruncateUserAgent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		expectedLen int
	}{
		{"short passes through", "Mozilla/5.0", len("Mozilla/5.0")},
		{"exactly at cap", strings.Repeat("x", maxMetaLength), maxMetaLength},
		{"over cap truncated", strings.Repeat("x", maxMetaLength+100), maxMetaLength},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := TruncateUserAgent(tt.input)
			if len(result) != tt.expectedLen {
				t.Errorf("len(TruncateUserAgent) = %d, want %d", len(result), tt.expectedLen)
			}
		})
	}
}
