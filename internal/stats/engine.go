package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ScopeKind is the authorization/selection boundary of a query.
type ScopeKind int

const (
	// ScopeOwner selects every URL the owner has.
	ScopeOwner ScopeKind = iota
	// ScopeOwnedURL selects one URL the caller claims to own.
	ScopeOwnedURL
	// ScopeAnonymousURL selects one public URL with no authentication.
	ScopeAnonymousURL
)

// Scope names the selection boundary for a stats query.
type Scope struct {
	Kind      ScopeKind
	OwnerID   string // caller identity; required for owner scopes
	ShortCode string // required for single-URL scopes
}

// TimeRange is the caller-supplied query window; either bound may be
// absent and is derived during normalization.
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

// Filters carries the per-dimension filter value lists.
type Filters struct {
	Browsers   []string
	Platforms  []string
	Countries  []string
	Cities     []string
	Referrers  []string
	ShortCodes []string
}

// Query is the single entry point request shape.
type Query struct {
	Scope    Scope
	Range    TimeRange
	Filters  Filters
	GroupBy  []string // dimension names; empty defaults to ["time"]
	Metrics  []string // metric names; empty defaults to all
	Timezone string   // IANA name; unknown falls back to UTC

	// BucketOverride forces a bucketing strategy by name (the only way
	// to reach weekly/monthly granularity).
	BucketOverride string
}

// SeriesPoint is one entry of a "{metric}_by_{dimension}" series.
type SeriesPoint struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// BucketingMeta describes how the time series was bucketed, attached
// for client display whenever time is among the grouped dimensions.
type BucketingMeta struct {
	Strategy string `json:"strategy"`
	Timezone string `json:"timezone"`
}

// Response is the engine output.
type Response struct {
	Summary   Summary                  `json:"summary"`
	Series    map[string][]SeriesPoint `json:"series"`
	Range     RangeMeta                `json:"range"`
	Bucketing *BucketingMeta           `json:"bucketing,omitempty"`
}

// RangeMeta echoes the normalized window, rendered in the caller's
// requested timezone at the formatting boundary only.
type RangeMeta struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// URLInfo is the directory projection used for scope resolution.
type URLInfo struct {
	Exists  bool
	Private bool
	OwnerID string
}

// Directory resolves a short code to its ownership and privacy flags.
type Directory interface {
	Lookup(ctx context.Context, shortCode string) (URLInfo, error)
}

// defaultWindow is the query window when only one bound is supplied.
const defaultWindow = 7 * 24 * time.Hour

// Engine orchestrates aggregation strategies for a stats request.
type Engine struct {
	store  Store
	dir    Directory
	logger *slog.Logger

	now func() time.Time // overridable for tests
}

// NewEngine creates a stats query engine.
func NewEngine(store Store, dir Directory, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		dir:    dir,
		logger: logger.With("component", "stats.engine"),
		now:    time.Now,
	}
}

// Run resolves scope, normalizes the window, executes one aggregation
// strategy per grouped dimension and computes the scope-wide summary.
// Validation and authorization failures are rejected before any store
// query executes.
func (e *Engine) Run(ctx context.Context, q Query) (*Response, error) {
	dims, err := e.parseDimensions(q.GroupBy)
	if err != nil {
		return nil, err
	}
	mets, err := e.parseMetrics(q.Metrics)
	if err != nil {
		return nil, err
	}

	pred, pinned, err := e.resolveScope(ctx, q.Scope)
	if err != nil {
		return nil, err
	}

	start, end, err := e.normalizeRange(q.Range)
	if err != nil {
		return nil, err
	}
	pred.Start, pred.End = start, end

	applyFilters(&pred, q.Filters, pinned)

	rule, err := e.bucketRule(q, start, end)
	if err != nil {
		return nil, err
	}

	series := make(map[string][]SeriesPoint, len(dims)*len(mets))
	var bucketing *BucketingMeta
	for _, dim := range dims {
		rows, err := strategyFor(dim, rule).rows(ctx, e.store, pred)
		if err != nil {
			return nil, err
		}
		for _, met := range mets {
			series[seriesKey(met, dim)] = toSeries(rows, met)
		}
		if dim == DimensionTime {
			bucketing = &BucketingMeta{
				Strategy: rule.Strategy.String(),
				Timezone: rule.Location.String(),
			}
		}
	}

	summary, err := e.store.Summary(ctx, pred)
	if err != nil {
		return nil, err
	}

	return &Response{
		Summary: summary,
		Series:  series,
		Range: RangeMeta{
			Start: start.In(rule.Location).Format(time.RFC3339),
			End:   end.In(rule.Location).Format(time.RFC3339),
		},
		Bucketing: bucketing,
	}, nil
}

func (e *Engine) parseDimensions(names []string) ([]Dimension, error) {
	if len(names) == 0 {
		return []Dimension{DimensionTime}, nil
	}

	dims := make([]Dimension, 0, len(names))
	seen := make(map[Dimension]bool, len(names))
	for _, name := range names {
		dim, err := ParseDimension(name)
		if err != nil {
			return nil, err
		}
		if seen[dim] {
			return nil, ValidationErrorf("duplicate dimension %q", name)
		}
		seen[dim] = true
		dims = append(dims, dim)
	}
	return dims, nil
}

func (e *Engine) parseMetrics(names []string) ([]Metric, error) {
	if len(names) == 0 {
		return []Metric{MetricTotalClicks, MetricUniqueClicks}, nil
	}

	mets := make([]Metric, 0, len(names))
	seen := make(map[Metric]bool, len(names))
	for _, name := range names {
		met, err := ParseMetric(name)
		if err != nil {
			return nil, err
		}
		if seen[met] {
			return nil, ValidationErrorf("duplicate metric %q", name)
		}
		seen[met] = true
		mets = append(mets, met)
	}
	return mets, nil
}

// resolveScope maps the scope to a base predicate. The pinned return is
// true when the scope itself fixes a single short code for an anonymous
// caller, which disables short_code filtering (see applyFilters).
func (e *Engine) resolveScope(ctx context.Context, scope Scope) (Predicate, bool, error) {
	switch scope.Kind {
	case ScopeOwner:
		if scope.OwnerID == "" {
			return Predicate{}, false, ValidationErrorf("owner scope requires an owner id")
		}
		return Predicate{OwnerID: scope.OwnerID}, false, nil

	case ScopeOwnedURL:
		if scope.ShortCode == "" {
			return Predicate{}, false, ValidationErrorf("url scope requires a short code")
		}
		info, err := e.dir.Lookup(ctx, scope.ShortCode)
		if err != nil {
			return Predicate{}, false, TransientError("lookup url", err)
		}
		if !info.Exists {
			return Predicate{}, false, NotFoundErrorf("short code %q not found", scope.ShortCode)
		}
		if info.OwnerID != scope.OwnerID {
			return Predicate{}, false, AccessDeniedErrorf("stats access denied")
		}
		return Predicate{ShortCode: scope.ShortCode}, false, nil

	case ScopeAnonymousURL:
		if scope.ShortCode == "" {
			return Predicate{}, false, ValidationErrorf("url scope requires a short code")
		}
		info, err := e.dir.Lookup(ctx, scope.ShortCode)
		if err != nil {
			return Predicate{}, false, TransientError("lookup url", err)
		}
		if !info.Exists {
			return Predicate{}, false, NotFoundErrorf("short code %q not found", scope.ShortCode)
		}
		if info.Private {
			return Predicate{}, false, AccessDeniedErrorf("stats are private")
		}
		return Predicate{ShortCode: scope.ShortCode}, true, nil

	default:
		return Predicate{}, false, ValidationErrorf("unknown scope kind %d", int(scope.Kind))
	}
}

// normalizeRange fills a missing bound with a 7-day window, clamps
// future bounds to now, and rejects inverted ranges.
func (e *Engine) normalizeRange(r TimeRange) (time.Time, time.Time, error) {
	now := e.now().UTC()

	var start, end time.Time
	switch {
	case r.Start == nil && r.End == nil:
		end = now
		start = end.Add(-defaultWindow)
	case r.Start != nil && r.End == nil:
		start = r.Start.UTC()
		end = start.Add(defaultWindow)
	case r.Start == nil && r.End != nil:
		end = r.End.UTC()
		start = end.Add(-defaultWindow)
	default:
		start = r.Start.UTC()
		end = r.End.UTC()
	}

	if start.After(now) {
		start = now
	}
	if end.After(now) {
		end = now
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, ValidationErrorf("start must not be after end")
	}
	return start, end, nil
}

// applyFilters copies the filter lists onto the predicate. When the
// scope pins a single short code for an anonymous caller, a short_code
// filter is dropped silently rather than honored or rejected, so filter
// parameters cannot widen the scope to another URL's stats.
func applyFilters(pred *Predicate, f Filters, pinned bool) {
	pred.Browsers = f.Browsers
	pred.Platforms = f.Platforms
	pred.Countries = f.Countries
	pred.Cities = f.Cities

	if !pinned {
		pred.ShortCodes = f.ShortCodes
	}

	for _, ref := range f.Referrers {
		if ref == DirectReferrer {
			pred.ReferrerDirect = true
			continue
		}
		pred.Referrers = append(pred.Referrers, ref)
	}
}

// bucketRule picks the time bucketing rule for the normalized window.
func (e *Engine) bucketRule(q Query, start, end time.Time) (BucketRule, error) {
	strategy := ChooseBucketStrategy(start, end)
	if q.BucketOverride != "" {
		forced, ok := ParseBucketStrategy(q.BucketOverride)
		if !ok {
			return BucketRule{}, ValidationErrorf("unknown bucket strategy %q", q.BucketOverride)
		}
		strategy = forced
	}
	return NewBucketRule(strategy, q.Timezone), nil
}

func seriesKey(met Metric, dim Dimension) string {
	return fmt.Sprintf("%s_by_%s", met, dim)
}

func toSeries(rows []Row, met Metric) []SeriesPoint {
	points := make([]SeriesPoint, len(rows))
	for i, row := range rows {
		count := row.TotalClicks
		if met == MetricUniqueClicks {
			count = row.UniqueClicks
		}
		points[i] = SeriesPoint{Key: row.Value, Count: count}
	}
	return points
}
