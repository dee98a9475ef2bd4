package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spoo-me/url-shortener/internal/stats"
)

func TestParseStatsQuery(t *testing.T) {
	t.Parallel()

	scope := stats.Scope{Kind: stats.ScopeOwner, OwnerID: "u1"}

	t.Run("full parameter set", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet,
			"/api/stats?group_by=time,browser&metrics=total_clicks&timezone=Asia/Kolkata"+
				"&bucket=weekly&browser=Chrome,Firefox&platform=Windows&country=DE"+
				"&city=Berlin&referrer=google.com,Direct&short_code=a,b"+
				"&start=2025-06-01T00:00:00Z&end=2025-06-08T00:00:00Z", nil)

		query, err := parseStatsQuery(req, scope)
		if err != nil {
			t.Fatalf("parseStatsQuery: %v", err)
		}

		if len(query.GroupBy) != 2 || query.GroupBy[0] != "time" || query.GroupBy[1] != "browser" {
			t.Errorf("GroupBy = %v", query.GroupBy)
		}
		if len(query.Metrics) != 1 || query.Metrics[0] != "total_clicks" {
			t.Errorf("Metrics = %v", query.Metrics)
		}
		if query.Timezone != "Asia/Kolkata" {
			t.Errorf("Timezone = %q", query.Timezone)
		}
		if query.BucketOverride != "weekly" {
			t.Errorf("BucketOverride = %q", query.BucketOverride)
		}
		if len(query.Filters.Browsers) != 2 {
			t.Errorf("Browsers = %v", query.Filters.Browsers)
		}
		if len(query.Filters.Referrers) != 2 || query.Filters.Referrers[1] != "Direct" {
			t.Errorf("Referrers = %v", query.Filters.Referrers)
		}
		if query.Range.Start == nil || !query.Range.Start.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("Start = %v", query.Range.Start)
		}
		if query.Range.End == nil || !query.Range.End.Equal(time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("End = %v", query.Range.End)
		}
	})

	t.Run("empty request leaves defaults to the engine", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)

		query, err := parseStatsQuery(req, scope)
		if err != nil {
			t.Fatalf("parseStatsQuery: %v", err)
		}
		if query.GroupBy != nil || query.Metrics != nil {
			t.Errorf("GroupBy = %v, Metrics = %v, want nil", query.GroupBy, query.Metrics)
		}
		if query.Range.Start != nil || query.Range.End != nil {
			t.Errorf("Range = %+v, want open", query.Range)
		}
	})

	t.Run("bad timestamps rejected", func(t *testing.T) {
		t.Parallel()

		for _, target := range []string{
			"/api/stats?start=yesterday",
			"/api/stats?end=2025-06-01",
		} {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			_, err := parseStatsQuery(req, scope)
			if kind, ok := stats.KindOf(err); !ok || kind != stats.KindValidation {
				t.Errorf("%s: error = %v, want validation error", target, err)
			}
		}
	})
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"single", "Chrome", []string{"Chrome"}},
		{"multiple", "a,b,c", []string{"a", "b", "c"}},
		{"whitespace trimmed", " a , b ", []string{"a", "b"}},
		{"empty parts dropped", "a,,b,", []string{"a", "b"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := splitList(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("splitList(%q) = %v, want %v", tt.input, result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("splitList(%q)[%d] = %q, want %q", tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{
			name:     "cloudflare header wins",
			headers:  map[string]string{"CF-Connecting-IP": "198.51.100.1", "X-Forwarded-For": "203.0.113.5"},
			remote:   "10.0.0.1:1234",
			expected: "198.51.100.1",
		},
		{
			name:     "first forwarded hop",
			headers:  map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2"},
			remote:   "10.0.0.1:1234",
			expected: "203.0.113.5",
		},
		{
			name:     "real ip fallback",
			headers:  map[string]string{"X-Real-IP": "203.0.113.9"},
			remote:   "10.0.0.1:1234",
			expected: "203.0.113.9",
		},
		{
			name:     "remote addr last resort",
			headers:  nil,
			remote:   "203.0.113.7:5678",
			expected: "203.0.113.7",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			if result := getClientIP(req); result != tt.expected {
				t.Errorf("getClientIP = %q, want %q", result, tt.expected)
			}
		})
	}
}
