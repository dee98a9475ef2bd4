// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Redirect hot path
	ObserveRedirectDuration(duration time.Duration)

	// Dual-layer cache
	IncCacheHit()
	IncCacheMiss()
	IncCacheStaleServed()
	IncCacheRefresh(status string) // status: "success" or "failed"
	IncCacheDirectCompute()        // backend unavailable, computed directly

	// Ingestion pipeline
	IncEventPublished(status string) // status: "success" or "dropped"
	IncEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	SetQueueDepth(depth int64)
	ObserveIngestLag(lag time.Duration)

	// Buffer flush job
	ObserveFlushBatch(shortCodes int)

	// Stats queries
	IncStatsQuery(status string) // status: "success", "rejected", "transient"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
