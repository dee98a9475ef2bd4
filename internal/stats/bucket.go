// Package stats implements the analytics aggregation pipeline: time
// bucketing, per-dimension aggregation strategies, and the query engine
// that drives them against the durable click store.
package stats

import (
	"time"
)

// BucketStrategy selects the granularity used to group clicks over time.
type BucketStrategy int

const (
	BucketMinute10 BucketStrategy = iota
	BucketHourly
	BucketDaily
	BucketWeekly
	BucketMonthly
)

// String returns the wire name of the strategy.
func (s BucketStrategy) String() string {
	switch s {
	case BucketMinute10:
		return "10min"
	case BucketHourly:
		return "hourly"
	case BucketDaily:
		return "daily"
	case BucketWeekly:
		return "weekly"
	case BucketMonthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// ParseBucketStrategy resolves an explicit strategy override by name.
func ParseBucketStrategy(name string) (BucketStrategy, bool) {
	switch name {
	case "10min":
		return BucketMinute10, true
	case "hourly":
		return BucketHourly, true
	case "daily":
		return BucketDaily, true
	case "weekly":
		return BucketWeekly, true
	case "monthly":
		return BucketMonthly, true
	default:
		return 0, false
	}
}

// ChooseBucketStrategy picks a granularity for the [start, end) range.
// Ranges up to and including one hour bucket by 10 minutes, up to and
// including 24 hours by hour, anything longer by day. Weekly and Monthly
// are never chosen automatically; they are reachable by explicit
// override only.
func ChooseBucketStrategy(start, end time.Time) BucketStrategy {
	span := end.Sub(start)
	switch {
	case span <= time.Hour:
		return BucketMinute10
	case span <= 24*time.Hour:
		return BucketHourly
	default:
		return BucketDaily
	}
}

// BucketRule combines a strategy with the timezone bucket boundaries are
// computed in. Two queries over the same UTC range in different zones may
// legitimately produce different boundaries and per-bucket counts.
type BucketRule struct {
	Strategy BucketStrategy
	Location *time.Location
}

// NewBucketRule builds a rule for the given IANA timezone name.
// Unknown or empty names fall back to UTC.
func NewBucketRule(strategy BucketStrategy, timezone string) BucketRule {
	loc := time.UTC
	if timezone != "" {
		if parsed, err := time.LoadLocation(timezone); err == nil {
			loc = parsed
		}
	}
	return BucketRule{Strategy: strategy, Location: loc}
}

// Round maps a timestamp to the start of its bucket, computed on wall
// clock components in the rule's timezone so half-hour and odd-offset
// zones still land on local bucket marks.
func (r BucketRule) Round(t time.Time) time.Time {
	lt := t.In(r.Location)
	y, m, d := lt.Date()

	switch r.Strategy {
	case BucketMinute10:
		return time.Date(y, m, d, lt.Hour(), (lt.Minute()/10)*10, 0, 0, r.Location)
	case BucketHourly:
		return time.Date(y, m, d, lt.Hour(), 0, 0, 0, r.Location)
	case BucketDaily:
		return time.Date(y, m, d, 0, 0, 0, 0, r.Location)
	case BucketWeekly:
		// ISO week, Monday start.
		offset := (int(lt.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, r.Location)
	case BucketMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, r.Location)
	default:
		return lt
	}
}

// Next returns the start of the bucket after the given bucket start.
// Calendar-sized buckets advance by calendar arithmetic so DST
// transitions keep buckets aligned to local midnight.
func (r BucketRule) Next(bucket time.Time) time.Time {
	switch r.Strategy {
	case BucketMinute10:
		return bucket.Add(10 * time.Minute)
	case BucketHourly:
		return bucket.Add(time.Hour)
	case BucketDaily:
		return bucket.AddDate(0, 0, 1)
	case BucketWeekly:
		return bucket.AddDate(0, 0, 7)
	case BucketMonthly:
		return bucket.AddDate(0, 1, 0)
	default:
		return bucket
	}
}

// Format renders a bucket start as its display key.
func (r BucketRule) Format(bucket time.Time) string {
	lt := bucket.In(r.Location)
	switch r.Strategy {
	case BucketMinute10, BucketHourly:
		return lt.Format("2006-01-02 15:04")
	case BucketDaily, BucketWeekly:
		return lt.Format("2006-01-02")
	case BucketMonthly:
		return lt.Format("2006-01")
	default:
		return lt.Format(time.RFC3339)
	}
}

// maxEnumeratedBuckets caps gap-fill output so a pathological range
// cannot allocate unbounded memory.
const maxEnumeratedBuckets = 10000

// Enumerate lists every expected bucket start between start and end,
// inclusive of the bucket containing each bound. The result is strictly
// increasing with no duplicates; callers synthesize zero rows for any
// bucket missing from the aggregation result.
func (r BucketRule) Enumerate(start, end time.Time) []time.Time {
	if end.Before(start) {
		return nil
	}

	buckets := make([]time.Time, 0, 16)
	for b := r.Round(start); !b.After(end); b = r.Next(b) {
		buckets = append(buckets, b)
		if len(buckets) >= maxEnumeratedBuckets {
			break
		}
	}
	return buckets
}
