package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// ObserveRedirectDuration is a no-op.
func (n *NoopRecorder) ObserveRedirectDuration(duration time.Duration) {}

// IncCacheHit is a no-op.
func (n *NoopRecorder) IncCacheHit() {}

// IncCacheMiss is a no-op.
func (n *NoopRecorder) IncCacheMiss() {}

// IncCacheStaleServed is a no-op.
func (n *NoopRecorder) IncCacheStaleServed() {}

// IncCacheRefresh is a no-op.
func (n *NoopRecorder) IncCacheRefresh(status string) {}

// IncCacheDirectCompute is a no-op.
func (n *NoopRecorder) IncCacheDirectCompute() {}

// IncEventPublished is a no-op.
func (n *NoopRecorder) IncEventPublished(status string) {}

// IncEventProcessed is a no-op.
func (n *NoopRecorder) IncEventProcessed(status string) {}

// SetQueueDepth is a no-op.
func (n *NoopRecorder) SetQueueDepth(depth int64) {}

// ObserveIngestLag is a no-op.
func (n *NoopRecorder) ObserveIngestLag(lag time.Duration) {}

// ObserveFlushBatch is a no-op.
func (n *NoopRecorder) ObserveFlushBatch(shortCodes int) {}

// IncStatsQuery is a no-op.
func (n *NoopRecorder) IncStatsQuery(status string) {}
