package stats

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Dimension is a closed set of grouping dimensions. Dispatch is an
// exhaustive switch so adding a dimension is a compile-time-checked
// change rather than a string-keyed factory lookup.
type Dimension int

const (
	DimensionTime Dimension = iota
	DimensionBrowser
	DimensionOS
	DimensionCountry
	DimensionCity
	DimensionReferrer
	DimensionShortCode
)

// String returns the wire name of the dimension.
func (d Dimension) String() string {
	switch d {
	case DimensionTime:
		return "time"
	case DimensionBrowser:
		return "browser"
	case DimensionOS:
		return "os"
	case DimensionCountry:
		return "country"
	case DimensionCity:
		return "city"
	case DimensionReferrer:
		return "referrer"
	case DimensionShortCode:
		return "short_code"
	default:
		return "unknown"
	}
}

// ParseDimension resolves a wire name to a Dimension.
func ParseDimension(name string) (Dimension, error) {
	switch name {
	case "time":
		return DimensionTime, nil
	case "browser":
		return DimensionBrowser, nil
	case "os":
		return DimensionOS, nil
	case "country":
		return DimensionCountry, nil
	case "city":
		return DimensionCity, nil
	case "referrer":
		return DimensionReferrer, nil
	case "short_code":
		return DimensionShortCode, nil
	default:
		return 0, ValidationErrorf("unknown dimension %q", name)
	}
}

// Metric is a closed set of reported counters.
type Metric int

const (
	MetricTotalClicks Metric = iota
	MetricUniqueClicks
)

// String returns the wire name of the metric.
func (m Metric) String() string {
	switch m {
	case MetricTotalClicks:
		return "total_clicks"
	case MetricUniqueClicks:
		return "unique_clicks"
	default:
		return "unknown"
	}
}

// ParseMetric resolves a wire name to a Metric.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "total_clicks":
		return MetricTotalClicks, nil
	case "unique_clicks":
		return MetricUniqueClicks, nil
	default:
		return 0, ValidationErrorf("unknown metric %q", name)
	}
}

// DirectReferrer is the display value for clicks with no referrer. A
// filter naming it matches both literally-absent and empty-string
// referrer values.
const DirectReferrer = "Direct"

// Row is the uniform formatted aggregation output for one group.
type Row struct {
	Value        string `json:"value"`
	TotalClicks  int64  `json:"total_clicks"`
	UniqueClicks int64  `json:"unique_clicks"`
}

// RawClick is the minimal click projection the time strategy buckets
// in process.
type RawClick struct {
	ClickedAt time.Time
	IPAddress string
}

// Predicate is the normalized selection the store translates into a
// range query: scope pin, [Start, End) window, and per-dimension filter
// lists. ReferrerDirect widens the referrer match to null and empty.
type Predicate struct {
	OwnerID   string
	ShortCode string

	Start time.Time
	End   time.Time

	Browsers   []string
	Platforms  []string
	Countries  []string
	Cities     []string
	Referrers  []string
	ShortCodes []string

	ReferrerDirect bool
}

// Summary holds the scope-wide statistics computed independently of any
// grouping.
type Summary struct {
	TotalClicks   int64      `json:"total_clicks"`
	UniqueClicks  int64      `json:"unique_clicks"`
	FirstClick    *time.Time `json:"first_click,omitempty"`
	LastClick     *time.Time `json:"last_click,omitempty"`
	AvgRedirectMS float64    `json:"avg_redirection_time"`
}

// Store is the durable click store contract the strategies execute
// against. Implementations must honor ctx cancellation and surface
// infrastructure failures as KindTransient errors.
type Store interface {
	// GroupByField groups matched clicks by the dimension column,
	// counting rows and distinct IP addresses per group, ordered by
	// total clicks descending.
	GroupByField(ctx context.Context, pred Predicate, dim Dimension) ([]Row, error)

	// ClicksInRange returns the raw (clicked_at, ip) projection of the
	// matched clicks for in-process time bucketing.
	ClicksInRange(ctx context.Context, pred Predicate) ([]RawClick, error)

	// Summary computes the scope-wide statistics for the matched clicks.
	Summary(ctx context.Context, pred Predicate) (Summary, error)
}

// strategy produces formatted rows for one dimension.
type strategy interface {
	rows(ctx context.Context, store Store, pred Predicate) ([]Row, error)
}

// strategyFor dispatches a dimension to its strategy. The switch is
// exhaustive over the Dimension set.
func strategyFor(dim Dimension, rule BucketRule) strategy {
	switch dim {
	case DimensionTime:
		return timeStrategy{rule: rule}
	case DimensionCountry:
		return fieldStrategy{dim: dim, format: CountryCode}
	case DimensionReferrer:
		return fieldStrategy{dim: dim, format: referrerLabel}
	case DimensionBrowser, DimensionOS, DimensionCity, DimensionShortCode:
		return fieldStrategy{dim: dim}
	default:
		panic(fmt.Sprintf("stats: no strategy for dimension %d", int(dim)))
	}
}

// referrerLabel maps the empty referrer group to the Direct display
// value.
func referrerLabel(value string) string {
	if value == "" {
		return DirectReferrer
	}
	return value
}

// fieldStrategy groups by a click record column. The optional format
// function converts raw dimension values (country names, empty
// referrers) into display values without merging groups, so the
// partition invariant is preserved.
type fieldStrategy struct {
	dim    Dimension
	format func(string) string
}

func (s fieldStrategy) rows(ctx context.Context, store Store, pred Predicate) ([]Row, error) {
	rows, err := store.GroupByField(ctx, pred, s.dim)
	if err != nil {
		return nil, err
	}

	// Stable sort keeps first-encountered order for ties; groups are
	// displayed as top-N so tie order is presentational only.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalClicks > rows[j].TotalClicks
	})

	if s.format != nil {
		for i := range rows {
			rows[i].Value = s.format(rows[i].Value)
		}
	}
	return rows, nil
}

// timeStrategy buckets raw clicks by the rule's granularity in the
// rule's timezone, counts distinct IPs per bucket, and gap-fills so the
// caller always sees a contiguous series.
type timeStrategy struct {
	rule BucketRule
}

func (s timeStrategy) rows(ctx context.Context, store Store, pred Predicate) ([]Row, error) {
	clicks, err := store.ClicksInRange(ctx, pred)
	if err != nil {
		return nil, err
	}

	type bucketAcc struct {
		total int64
		ips   map[string]struct{}
	}

	buckets := make(map[time.Time]*bucketAcc)
	for _, c := range clicks {
		key := s.rule.Round(c.ClickedAt)
		acc := buckets[key]
		if acc == nil {
			acc = &bucketAcc{ips: make(map[string]struct{})}
			buckets[key] = acc
		}
		acc.total++
		if c.IPAddress != "" {
			acc.ips[c.IPAddress] = struct{}{}
		}
	}

	expected := s.rule.Enumerate(pred.Start, pred.End)
	rows := make([]Row, 0, len(expected))
	for _, b := range expected {
		row := Row{Value: s.rule.Format(b)}
		if acc, ok := buckets[b]; ok {
			row.TotalClicks = acc.total
			row.UniqueClicks = int64(len(acc.ips))
		}
		rows = append(rows, row)
	}
	return rows, nil
}
