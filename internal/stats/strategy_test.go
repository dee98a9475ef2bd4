package stats

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeStore returns canned results and records the predicates it saw.
type fakeStore struct {
	rows    []Row
	clicks  []RawClick
	summary Summary
	err     error

	groupedBy  []Dimension
	predicates []Predicate
}

func (f *fakeStore) GroupByField(_ context.Context, pred Predicate, dim Dimension) ([]Row, error) {
	f.groupedBy = append(f.groupedBy, dim)
	f.predicates = append(f.predicates, pred)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Row, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeStore) ClicksInRange(_ context.Context, pred Predicate) ([]RawClick, error) {
	f.predicates = append(f.predicates, pred)
	if f.err != nil {
		return nil, f.err
	}
	return f.clicks, nil
}

func (f *fakeStore) Summary(_ context.Context, pred Predicate) (Summary, error) {
	f.predicates = append(f.predicates, pred)
	if f.err != nil {
		return Summary{}, f.err
	}
	return f.summary, nil
}

func TestFieldStrategySortsByTotalDescending(t *testing.T) {
	t.Parallel()

	store := &fakeStore{rows: []Row{
		{Value: "Safari", TotalClicks: 2, UniqueClicks: 1},
		{Value: "Chrome", TotalClicks: 9, UniqueClicks: 4},
		{Value: "Firefox", TotalClicks: 5, UniqueClicks: 3},
	}}

	rows, err := strategyFor(DimensionBrowser, BucketRule{}).rows(context.Background(), store, Predicate{})
	if err != nil {
		t.Fatalf("rows: %v", err)
	}

	expected := []string{"Chrome", "Firefox", "Safari"}
	for i, want := range expected {
		if rows[i].Value != want {
			t.Errorf("rows[%d].Value = %q, want %q", i, rows[i].Value, want)
		}
	}
}

func TestFieldStrategyReferrerDirectLabel(t *testing.T) {
	t.Parallel()

	store := &fakeStore{rows: []Row{
		{Value: "google.com", TotalClicks: 5, UniqueClicks: 3},
		{Value: "", TotalClicks: 8, UniqueClicks: 6},
	}}

	rows, err := strategyFor(DimensionReferrer, BucketRule{}).rows(context.Background(), store, Predicate{})
	if err != nil {
		t.Fatalf("rows: %v", err)
	}

	if rows[0].Value != DirectReferrer {
		t.Errorf("top referrer = %q, want %q", rows[0].Value, DirectReferrer)
	}
	if rows[1].Value != "google.com" {
		t.Errorf("second referrer = %q, want %q", rows[1].Value, "google.com")
	}
}

func TestFieldStrategyCountryFormattingKeepsPartition(t *testing.T) {
	t.Parallel()

	// "Türkiye" and "Turkey" both format to TR but stay separate groups.
	store := &fakeStore{rows: []Row{
		{Value: "Türkiye", TotalClicks: 4, UniqueClicks: 2},
		{Value: "Turkey", TotalClicks: 3, UniqueClicks: 1},
		{Value: "Atlantis", TotalClicks: 1, UniqueClicks: 1},
	}}

	rows, err := strategyFor(DimensionCountry, BucketRule{}).rows(context.Background(), store, Predicate{})
	if err != nil {
		t.Fatalf("rows: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3 (groups must not be merged)", len(rows))
	}
	if rows[0].Value != "TR" || rows[1].Value != "TR" {
		t.Errorf("country codes = %q, %q, want TR, TR", rows[0].Value, rows[1].Value)
	}
	if rows[2].Value != UnknownCountryCode {
		t.Errorf("unmapped country = %q, want %q", rows[2].Value, UnknownCountryCode)
	}
	var total int64
	for _, r := range rows {
		total += r.TotalClicks
	}
	if total != 8 {
		t.Errorf("summed totals = %d, want 8", total)
	}
}

func TestFieldStrategyPropagatesStoreError(t *testing.T) {
	t.Parallel()

	storeErr := TransientError("group clicks", errors.New("connection refused"))
	store := &fakeStore{err: storeErr}

	_, err := strategyFor(DimensionOS, BucketRule{}).rows(context.Background(), store, Predicate{})
	if kind, ok := KindOf(err); !ok || kind != KindTransient {
		t.Errorf("error kind = %v, %v, want KindTransient", kind, ok)
	}
}

func TestTimeStrategyBucketsAndCountsUniques(t *testing.T) {
	t.Parallel()

	at := func(min int) time.Time {
		return time.Date(2025, 6, 18, 10, min, 0, 0, time.UTC)
	}

	store := &fakeStore{clicks: []RawClick{
		{ClickedAt: at(0), IPAddress: "10.0.0.1"},
		{ClickedAt: at(5), IPAddress: "10.0.0.1"},
		{ClickedAt: at(5), IPAddress: "10.0.0.2"},
		{ClickedAt: at(25), IPAddress: "10.0.0.3"},
	}}

	pred := Predicate{Start: at(0), End: at(30)}
	rule := BucketRule{Strategy: BucketMinute10, Location: time.UTC}

	rows, err := strategyFor(DimensionTime, rule).rows(context.Background(), store, pred)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}

	expected := []Row{
		{Value: "2025-06-18 10:00", TotalClicks: 3, UniqueClicks: 2},
		{Value: "2025-06-18 10:10", TotalClicks: 0, UniqueClicks: 0},
		{Value: "2025-06-18 10:20", TotalClicks: 1, UniqueClicks: 1},
		{Value: "2025-06-18 10:30", TotalClicks: 0, UniqueClicks: 0},
	}
	if len(rows) != len(expected) {
		t.Fatalf("got %d rows, want %d", len(rows), len(expected))
	}
	for i, want := range expected {
		if rows[i] != want {
			t.Errorf("rows[%d] = %+v, want %+v", i, rows[i], want)
		}
	}
}

func TestTimeStrategyGapFillsEmptyRange(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	start := time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC)
	pred := Predicate{Start: start, End: start.Add(3 * time.Hour)}
	rule := BucketRule{Strategy: BucketHourly, Location: time.UTC}

	rows, err := strategyFor(DimensionTime, rule).rows(context.Background(), store, pred)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}

	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	for i, row := range rows {
		if row.TotalClicks != 0 || row.UniqueClicks != 0 {
			t.Errorf("rows[%d] = %+v, want zero counts", i, row)
		}
	}
}

func TestCountryCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"official short name", "Russian Federation", "RU"},
		{"legacy alias russia", "Russia", "RU"},
		{"legacy alias turkey", "Turkey", "TR"},
		{"official turkiye", "Türkiye", "TR"},
		{"plain mapping", "Germany", "DE"},
		{"unknown sentinel", "Unknown", "XX"},
		{"unmapped name", "Atlantis", "XX"},
		{"empty", "", "XX"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if result := CountryCode(tt.input); result != tt.expected {
				t.Errorf("CountryCode(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
