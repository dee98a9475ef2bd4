package stats

import (
	"testing"
	"time"
)

func TestChooseBucketStrategy(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		span     time.Duration
		expected BucketStrategy
	}{
		{"ten minutes", 10 * time.Minute, BucketMinute10},
		{"exactly one hour", time.Hour, BucketMinute10},
		{"just over one hour", time.Hour + time.Second, BucketHourly},
		{"six hours", 6 * time.Hour, BucketHourly},
		{"exactly 24 hours", 24 * time.Hour, BucketHourly},
		{"just over 24 hours", 24*time.Hour + time.Second, BucketDaily},
		{"one week", 7 * 24 * time.Hour, BucketDaily},
		{"ninety days", 90 * 24 * time.Hour, BucketDaily},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := ChooseBucketStrategy(base, base.Add(tt.span))
			if result != tt.expected {
				t.Errorf("ChooseBucketStrategy(%v) = %v, want %v", tt.span, result, tt.expected)
			}
		})
	}
}

func TestParseBucketStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected BucketStrategy
		ok       bool
	}{
		{"ten minute", "10min", BucketMinute10, true},
		{"hourly", "hourly", BucketHourly, true},
		{"daily", "daily", BucketDaily, true},
		{"weekly", "weekly", BucketWeekly, true},
		{"monthly", "monthly", BucketMonthly, true},
		{"unknown", "yearly", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, ok := ParseBucketStrategy(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseBucketStrategy(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && result != tt.expected {
				t.Errorf("ParseBucketStrategy(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestBucketRuleRound(t *testing.T) {
	t.Parallel()

	kolkata, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 2025-06-18 is a Wednesday.
	ts := time.Date(2025, 6, 18, 14, 37, 42, 0, time.UTC)

	tests := []struct {
		name     string
		rule     BucketRule
		input    time.Time
		expected time.Time
	}{
		{
			name:     "ten minute floors to mark",
			rule:     BucketRule{Strategy: BucketMinute10, Location: time.UTC},
			input:    ts,
			expected: time.Date(2025, 6, 18, 14, 30, 0, 0, time.UTC),
		},
		{
			name:     "hourly floors to hour",
			rule:     BucketRule{Strategy: BucketHourly, Location: time.UTC},
			input:    ts,
			expected: time.Date(2025, 6, 18, 14, 0, 0, 0, time.UTC),
		},
		{
			name:     "daily floors to midnight",
			rule:     BucketRule{Strategy: BucketDaily, Location: time.UTC},
			input:    ts,
			expected: time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "weekly floors to monday",
			rule:     BucketRule{Strategy: BucketWeekly, Location: time.UTC},
			input:    ts,
			expected: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "weekly on monday stays put",
			rule:     BucketRule{Strategy: BucketWeekly, Location: time.UTC},
			input:    time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "weekly on sunday goes back six days",
			rule:     BucketRule{Strategy: BucketWeekly, Location: time.UTC},
			input:    time.Date(2025, 6, 22, 8, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "monthly floors to first",
			rule:     BucketRule{Strategy: BucketMonthly, Location: time.UTC},
			input:    ts,
			expected: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "half hour offset zone uses local marks",
			rule: BucketRule{Strategy: BucketMinute10, Location: kolkata},
			// 14:37:42 UTC is 20:07:42 IST.
			input:    ts,
			expected: time.Date(2025, 6, 18, 20, 0, 0, 0, kolkata),
		},
		{
			name: "daily boundary follows local midnight",
			rule: BucketRule{Strategy: BucketDaily, Location: kolkata},
			// 22:00 UTC on the 18th is already the 19th in IST.
			input:    time.Date(2025, 6, 18, 22, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 6, 19, 0, 0, 0, 0, kolkata),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := tt.rule.Round(tt.input)
			if !result.Equal(tt.expected) {
				t.Errorf("Round(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestBucketRuleNext(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	rule := BucketRule{Strategy: BucketMonthly, Location: time.UTC}
	next := rule.Next(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if expected := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC); !next.Equal(expected) {
		t.Errorf("monthly Next = %v, want %v", next, expected)
	}

	rule = BucketRule{Strategy: BucketDaily, Location: time.UTC}
	next = rule.Next(start)
	if expected := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC); !next.Equal(expected) {
		t.Errorf("daily Next across month = %v, want %v", next, expected)
	}

	rule = BucketRule{Strategy: BucketMinute10, Location: time.UTC}
	next = rule.Next(time.Date(2025, 1, 1, 10, 50, 0, 0, time.UTC))
	if expected := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC); !next.Equal(expected) {
		t.Errorf("ten minute Next across hour = %v, want %v", next, expected)
	}
}

func TestBucketRuleFormat(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 18, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		strategy BucketStrategy
		expected string
	}{
		{"ten minute", BucketMinute10, "2025-06-18 14:30"},
		{"hourly", BucketHourly, "2025-06-18 14:30"},
		{"daily", BucketDaily, "2025-06-18"},
		{"weekly", BucketWeekly, "2025-06-18"},
		{"monthly", BucketMonthly, "2025-06"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rule := BucketRule{Strategy: tt.strategy, Location: time.UTC}
			if result := rule.Format(ts); result != tt.expected {
				t.Errorf("Format = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestBucketRuleEnumerate(t *testing.T) {
	t.Parallel()

	t.Run("contiguous hourly coverage", func(t *testing.T) {
		t.Parallel()

		rule := BucketRule{Strategy: BucketHourly, Location: time.UTC}
		start := time.Date(2025, 6, 18, 9, 30, 0, 0, time.UTC)
		end := time.Date(2025, 6, 18, 13, 15, 0, 0, time.UTC)

		buckets := rule.Enumerate(start, end)
		if len(buckets) != 5 {
			t.Fatalf("Enumerate returned %d buckets, want 5", len(buckets))
		}
		if expected := time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC); !buckets[0].Equal(expected) {
			t.Errorf("first bucket = %v, want %v", buckets[0], expected)
		}
		if expected := time.Date(2025, 6, 18, 13, 0, 0, 0, time.UTC); !buckets[len(buckets)-1].Equal(expected) {
			t.Errorf("last bucket = %v, want %v", buckets[len(buckets)-1], expected)
		}
		for i := 1; i < len(buckets); i++ {
			if got := buckets[i].Sub(buckets[i-1]); got != time.Hour {
				t.Errorf("gap between buckets %d and %d = %v, want 1h", i-1, i, got)
			}
		}
	})

	t.Run("single bucket when bounds share one", func(t *testing.T) {
		t.Parallel()

		rule := BucketRule{Strategy: BucketDaily, Location: time.UTC}
		start := time.Date(2025, 6, 18, 1, 0, 0, 0, time.UTC)
		end := time.Date(2025, 6, 18, 23, 0, 0, 0, time.UTC)

		buckets := rule.Enumerate(start, end)
		if len(buckets) != 1 {
			t.Fatalf("Enumerate returned %d buckets, want 1", len(buckets))
		}
	})

	t.Run("inverted range yields nothing", func(t *testing.T) {
		t.Parallel()

		rule := BucketRule{Strategy: BucketHourly, Location: time.UTC}
		start := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

		if buckets := rule.Enumerate(start, start.Add(-time.Hour)); buckets != nil {
			t.Errorf("Enumerate on inverted range = %v, want nil", buckets)
		}
	})

	t.Run("capped on pathological range", func(t *testing.T) {
		t.Parallel()

		rule := BucketRule{Strategy: BucketMinute10, Location: time.UTC}
		start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(10, 0, 0)

		buckets := rule.Enumerate(start, end)
		if len(buckets) != maxEnumeratedBuckets {
			t.Errorf("Enumerate returned %d buckets, want cap %d", len(buckets), maxEnumeratedBuckets)
		}
	})
}
