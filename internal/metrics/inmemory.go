package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	RedirectDurationCount   uint64
	RedirectDurationTotalNs int64

	CacheHits           uint64
	CacheMisses         uint64
	CacheStaleServed    uint64
	CacheRefreshes      map[string]uint64
	CacheDirectComputes uint64

	EventsPublished map[string]uint64
	EventsProcessed map[string]uint64
	QueueDepth      int64
	IngestLagCount  uint64
	IngestLagTotal  int64

	FlushBatches    uint64
	FlushShortCodes uint64
	StatsQueries    map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	redirectDurationCount   uint64
	redirectDurationTotalNs int64

	cacheHits           uint64
	cacheMisses         uint64
	cacheStaleServed    uint64
	cacheDirectComputes uint64
	queueDepth          int64
	ingestLagCount      uint64
	ingestLagTotal      int64
	flushBatches        uint64
	flushShortCodes     uint64

	mu             sync.Mutex
	cacheRefreshes map[string]uint64
	published      map[string]uint64
	processed      map[string]uint64
	statsQueries   map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		cacheRefreshes: make(map[string]uint64),
		published:      make(map[string]uint64),
		processed:      make(map[string]uint64),
		statsQueries:   make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		RedirectDurationCount:   atomic.LoadUint64(&m.redirectDurationCount),
		RedirectDurationTotalNs: atomic.LoadInt64(&m.redirectDurationTotalNs),
		CacheHits:               atomic.LoadUint64(&m.cacheHits),
		CacheMisses:             atomic.LoadUint64(&m.cacheMisses),
		CacheStaleServed:        atomic.LoadUint64(&m.cacheStaleServed),
		CacheRefreshes:          copyCounts(m.cacheRefreshes),
		CacheDirectComputes:     atomic.LoadUint64(&m.cacheDirectComputes),
		EventsPublished:         copyCounts(m.published),
		EventsProcessed:         copyCounts(m.processed),
		QueueDepth:              atomic.LoadInt64(&m.queueDepth),
		IngestLagCount:          atomic.LoadUint64(&m.ingestLagCount),
		IngestLagTotal:          atomic.LoadInt64(&m.ingestLagTotal),
		FlushBatches:            atomic.LoadUint64(&m.flushBatches),
		FlushShortCodes:         atomic.LoadUint64(&m.flushShortCodes),
		StatsQueries:            copyCounts(m.statsQueries),
	}
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// IncCacheHit increments the fresh-hit counter.
func (m *InMemoryRecorder) IncCacheHit() {
	atomic.AddUint64(&m.cacheHits, 1)
}

// IncCacheMiss increments the full-miss counter.
func (m *InMemoryRecorder) IncCacheMiss() {
	atomic.AddUint64(&m.cacheMisses, 1)
}

// ObserveRedirectDuration records redirect duration.
func (m *InMemoryRecorder) ObserveRedirectDuration(duration time.Duration) {
	atomic.AddUint64(&m.redirectDurationCount, 1)
	atomic.AddInt64(&m.redirectDurationTotalNs, duration.Nanoseconds())
}

// IncCacheStaleServed increments the stale-serve counter.
func (m *InMemoryRecorder) IncCacheStaleServed() {
	atomic.AddUint64(&m.cacheStaleServed, 1)
}

// IncCacheRefresh increments the refresh counter for a status.
func (m *InMemoryRecorder) IncCacheRefresh(status string) {
	m.mu.Lock()
	m.cacheRefreshes[status]++
	m.mu.Unlock()
}

// IncCacheDirectCompute increments the degraded direct-compute counter.
func (m *InMemoryRecorder) IncCacheDirectCompute() {
	atomic.AddUint64(&m.cacheDirectComputes, 1)
}

// IncEventPublished increments the published counter for a status.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	m.mu.Lock()
	m.published[status]++
	m.mu.Unlock()
}

// IncEventProcessed increments the processed counter for a status.
func (m *InMemoryRecorder) IncEventProcessed(status string) {
	m.mu.Lock()
	m.processed[status]++
	m.mu.Unlock()
}

// SetQueueDepth records the current queue depth.
func (m *InMemoryRecorder) SetQueueDepth(depth int64) {
	atomic.StoreInt64(&m.queueDepth, depth)
}

// ObserveIngestLag records the publish-to-process lag of one event.
func (m *InMemoryRecorder) ObserveIngestLag(lag time.Duration) {
	atomic.AddUint64(&m.ingestLagCount, 1)
	atomic.AddInt64(&m.ingestLagTotal, lag.Nanoseconds())
}

// ObserveFlushBatch records one buffer flush cycle.
func (m *InMemoryRecorder) ObserveFlushBatch(shortCodes int) {
	atomic.AddUint64(&m.flushBatches, 1)
	atomic.AddUint64(&m.flushShortCodes, uint64(shortCodes))
}

// IncStatsQuery increments the stats query counter for a status.
func (m *InMemoryRecorder) IncStatsQuery(status string) {
	m.mu.Lock()
	m.statsQueries[status]++
	m.mu.Unlock()
}
