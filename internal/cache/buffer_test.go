package cache

import (
	"reflect"
	"testing"
)

func TestSanitizeFieldValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain value", "Chrome", "Chrome"},
		{"delimiter replaced", "Fire|fox", "Fire_fox"},
		{"control chars replaced", "a\nb\tc", "a_b_c"},
		{"delete char replaced", "a\x7fb", "a_b"},
		{"unicode kept", "Türkiye", "Türkiye"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := SanitizeFieldValue(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeFieldValue(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCounterFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fields   BufferFields
		expected []string
	}{
		{
			name: "all dimensions present",
			fields: BufferFields{
				Browser:  "Chrome",
				OS:       "Windows",
				Country:  "Germany",
				Referrer: "google.com",
			},
			expected: []string{"browser|Chrome", "os|Windows", "country|Germany", "referrer|google.com"},
		},
		{
			name:     "empty referrer counts as direct",
			fields:   BufferFields{Browser: "Chrome"},
			expected: []string{"browser|Chrome", "referrer|direct"},
		},
		{
			name:     "absent dimensions skipped",
			fields:   BufferFields{},
			expected: []string{"referrer|direct"},
		},
		{
			name:     "values sanitized",
			fields:   BufferFields{Browser: "Chr|ome"},
			expected: []string{"browser|Chr_ome", "referrer|direct"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := counterFields(tt.fields)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("counterFields = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestParseSnapshot(t *testing.T) {
	t.Parallel()

	reply := []interface{}{
		[]interface{}{
			"total", "5",
			"browser|Chrome", "3",
			"browser|Firefox", "2",
			"referrer|direct", "4",
		},
		[]interface{}{"10.0.0.1", "10.0.0.2"},
	}

	snap, err := parseSnapshot("abc", reply)
	if err != nil {
		t.Fatalf("parseSnapshot: %v", err)
	}

	if snap.ShortCode != "abc" {
		t.Errorf("ShortCode = %q, want %q", snap.ShortCode, "abc")
	}
	if snap.TotalClicks != 5 {
		t.Errorf("TotalClicks = %d, want 5", snap.TotalClicks)
	}
	if _, ok := snap.Counters["total"]; ok {
		t.Error("total must not appear among dimension counters")
	}
	if snap.Counters["browser|Chrome"] != 3 || snap.Counters["browser|Firefox"] != 2 {
		t.Errorf("browser counters = %v", snap.Counters)
	}
	if len(snap.UniqueIPs) != 2 {
		t.Errorf("UniqueIPs = %v, want 2 entries", snap.UniqueIPs)
	}
}

func TestParseSnapshotRejectsMalformedReplies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply interface{}
	}{
		{"not a slice", "nope"},
		{"wrong arity", []interface{}{[]interface{}{}}},
		{"counters not a slice", []interface{}{"x", []interface{}{}}},
		{"non numeric count", []interface{}{[]interface{}{"total", "many"}, []interface{}{}}},
		{"ips not a slice", []interface{}{[]interface{}{}, "x"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := parseSnapshot("abc", tt.reply); err == nil {
				t.Error("parseSnapshot accepted a malformed reply")
			}
		})
	}
}

func TestBufferedSnapshotBreakdown(t *testing.T) {
	t.Parallel()

	snap := &BufferedSnapshot{
		Counters: map[string]int64{
			"browser|Chrome":      3,
			"browser|Firefox":     1,
			"os|Windows":          4,
			"referrer|direct":     2,
			"referrer|google.com": 2,
		},
	}

	browsers := snap.Breakdown("browser")
	if !reflect.DeepEqual(browsers, map[string]int64{"Chrome": 3, "Firefox": 1}) {
		t.Errorf("Breakdown(browser) = %v", browsers)
	}

	referrers := snap.Breakdown("referrer")
	if referrers["direct"] != 2 || referrers["google.com"] != 2 {
		t.Errorf("Breakdown(referrer) = %v", referrers)
	}

	if cities := snap.Breakdown("city"); len(cities) != 0 {
		t.Errorf("Breakdown(city) = %v, want empty", cities)
	}
}
