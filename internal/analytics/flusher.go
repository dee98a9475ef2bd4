package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spoo-me/url-shortener/internal/cache"
	"github.com/spoo-me/url-shortener/internal/metrics"
)

// DefaultFlushInterval is how often buffered counters are drained to
// durable storage.
const DefaultFlushInterval = 30 * time.Second

// BufferedStatsRepository applies drained counter snapshots to the
// daily stats rollups.
type BufferedStatsRepository interface {
	ApplyBufferedStats(ctx context.Context, snapshots []*cache.BufferedSnapshot) error
}

// Flusher periodically drains the click counter buffer into the
// durable stats rollups. One final drain runs on shutdown so buffered
// counts survive a clean restart.
type Flusher struct {
	buffer   *cache.ClickEventBuffer
	repo     BufferedStatsRepository
	logger   *slog.Logger
	metrics  metrics.Recorder
	interval time.Duration

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewFlusher creates a flusher over the buffer and stats repository.
func NewFlusher(buffer *cache.ClickEventBuffer, repo BufferedStatsRepository, interval time.Duration, logger *slog.Logger, recorder metrics.Recorder) *Flusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Flusher{
		buffer:   buffer,
		repo:     repo,
		logger:   logger.With("component", "analytics.flusher"),
		metrics:  recorder,
		interval: interval,
	}
}

// Run starts the flush loop. Blocks until context is cancelled.
func (f *Flusher) Run(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return errors.New("flusher already started")
	}
	f.started = true
	f.done = make(chan struct{})
	ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	defer close(f.done)

	f.logger.Info("stats flusher started", "interval", f.interval)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("stats flusher stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := f.FlushOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				f.logger.Error("flush failed", "error", err)
			}
		}
	}
}

// Shutdown stops the loop and drains whatever is still buffered.
// It implements server.ShutdownFunc.
func (f *Flusher) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return nil
	}
	cancel := f.cancel
	done := f.done
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Final drain with the shutdown deadline.
	if err := f.FlushOnce(ctx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	f.logger.Info("stats flusher shutdown complete")
	return nil
}

// FlushOnce drains all buffered short codes and applies them.
func (f *Flusher) FlushOnce(ctx context.Context) error {
	start := time.Now()

	snapshots, err := f.buffer.PullAll(ctx)
	if err != nil {
		// Anything already pulled must still be applied: the pull
		// cleared it from Redis.
		if len(snapshots) == 0 {
			return fmt.Errorf("pull buffered stats: %w", err)
		}
		f.logger.Warn("partial buffer drain", "pulled", len(snapshots), "error", err)
	}
	if len(snapshots) == 0 {
		return nil
	}

	if err := f.repo.ApplyBufferedStats(ctx, snapshots); err != nil {
		return fmt.Errorf("apply buffered stats: %w", err)
	}

	f.metrics.ObserveFlushBatch(len(snapshots))
	f.logger.Info("buffered stats flushed",
		"short_codes", len(snapshots),
		"duration_ms", float64(time.Since(start).Microseconds())/1000,
	)
	return nil
}
