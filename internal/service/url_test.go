package service

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateLongURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https url", "https://example.com/page", false},
		{"http url", "http://example.com", false},
		{"with query", "https://example.com/a?b=c", false},
		{"empty", "", true},
		{"no scheme", "example.com/page", true},
		{"wrong scheme", "ftp://example.com/file", true},
		{"javascript scheme", "javascript:alert(1)", true},
		{"no host", "https:///path", true},
		{"too long", "https://example.com/" + strings.Repeat("a", 2048), true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validateLongURL(tt.input)
			if tt.wantErr && !errors.Is(err, ErrInvalidLongURL) {
				t.Errorf("validateLongURL(%q) = %v, want ErrInvalidLongURL", tt.input, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("validateLongURL(%q) = %v, want nil", tt.input, err)
			}
		})
	}
}

func TestAliasRegex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		alias string
		valid bool
	}{
		{"alphanumeric", "abc123", true},
		{"with hyphen and underscore", "my-link_2", true},
		{"single char", "a", true},
		{"max length", strings.Repeat("a", 64), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 65), false},
		{"spaces", "my link", false},
		{"slash", "a/b", false},
		{"unicode", "链接", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if result := aliasRegex.MatchString(tt.alias); result != tt.valid {
				t.Errorf("aliasRegex.MatchString(%q) = %v, want %v", tt.alias, result, tt.valid)
			}
		})
	}
}
