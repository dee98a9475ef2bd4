package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spoo-me/url-shortener/internal/metrics"
)

// memoryBackend is an in-process Backend with real TTL expiry, used to
// drive the dual cache protocol without Redis.
type memoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	err     error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{entries: make(map[string]memoryEntry)}
}

func (m *memoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *memoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *memoryBackend) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if entry, ok := m.entries[key]; ok && time.Now().Before(entry.expiresAt) {
		return false, nil
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (m *memoryBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *memoryBackend) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func newTestDualCache(backend Backend, primaryTTL, staleTTL time.Duration, recorder metrics.Recorder) *DualCache {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDualCache(backend, primaryTTL, staleTTL, time.Second, logger, recorder)
}

func TestDualCacheMissComputesAndCaches(t *testing.T) {
	t.Parallel()

	backend := newMemoryBackend()
	cache := newTestDualCache(backend, time.Minute, 10*time.Minute, nil)

	var calls atomic.Int64
	fn := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("value"), nil
	}

	for i := 0; i < 3; i++ {
		val, err := cache.GetOrCompute(context.Background(), "k", fn)
		if err != nil {
			t.Fatalf("GetOrCompute: %v", err)
		}
		if string(val) != "value" {
			t.Fatalf("value = %q, want %q", val, "value")
		}
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("compute ran %d times, want 1", n)
	}
}

func TestDualCacheComputeErrorNotCached(t *testing.T) {
	t.Parallel()

	backend := newMemoryBackend()
	cache := newTestDualCache(backend, time.Minute, 10*time.Minute, nil)

	var calls atomic.Int64
	fail := errors.New("backing store down")
	fn := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		if calls.Load() == 1 {
			return nil, fail
		}
		return []byte("ok"), nil
	}

	if _, err := cache.GetOrCompute(context.Background(), "k", fn); !errors.Is(err, fail) {
		t.Fatalf("first call error = %v, want %v", err, fail)
	}

	val, err := cache.GetOrCompute(context.Background(), "k", fn)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if string(val) != "ok" {
		t.Errorf("value = %q, want %q", val, "ok")
	}
}

func TestDualCacheServesStaleAndRefreshes(t *testing.T) {
	t.Parallel()

	backend := newMemoryBackend()
	recorder := metrics.NewInMemory()
	cache := newTestDualCache(backend, 50*time.Millisecond, 10*time.Minute, recorder)

	var calls atomic.Int64
	fn := func(ctx context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			return []byte("v1"), nil
		}
		return []byte("v2"), nil
	}

	if _, err := cache.GetOrCompute(context.Background(), "k", fn); err != nil {
		t.Fatalf("prime: %v", err)
	}

	// Let the primary entry expire; the stale copy survives.
	time.Sleep(80 * time.Millisecond)

	val, err := cache.GetOrCompute(context.Background(), "k", fn)
	if err != nil {
		t.Fatalf("stale read: %v", err)
	}
	if string(val) != "v1" {
		t.Errorf("stale value = %q, want %q", val, "v1")
	}
	if n := recorder.Snapshot().CacheStaleServed; n != 1 {
		t.Errorf("CacheStaleServed = %d, want 1", n)
	}

	// The background refresh repopulates the primary key.
	deadline := time.Now().Add(time.Second)
	for {
		val, ok, err := backend.Get(context.Background(), "k")
		if err != nil {
			t.Fatalf("backend get: %v", err)
		}
		if ok {
			if string(val) != "v2" {
				t.Errorf("refreshed value = %q, want %q", val, "v2")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background refresh never populated the primary key")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDualCacheSingleFlightOnMiss(t *testing.T) {
	t.Parallel()

	backend := newMemoryBackend()
	cache := newTestDualCache(backend, time.Minute, 10*time.Minute, nil)

	var calls atomic.Int64
	fn := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		time.Sleep(150 * time.Millisecond)
		return []byte("value"), nil
	}

	const workers = 5
	var wg sync.WaitGroup
	results := make([][]byte, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetOrCompute(context.Background(), "k", fn)
		}(i)
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("compute ran %d times, want 1", n)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Errorf("worker %d error: %v", i, errs[i])
			continue
		}
		if string(results[i]) != "value" {
			t.Errorf("worker %d value = %q, want %q", i, results[i], "value")
		}
	}
}

func TestDualCacheBusyWhenWinnerTooSlow(t *testing.T) {
	t.Parallel()

	backend := newMemoryBackend()
	cache := newTestDualCache(backend, time.Minute, 10*time.Minute, nil)

	// Hold the compute lock without ever publishing a value.
	acquired, err := backend.SetIfAbsent(context.Background(), "k"+lockKeySuffix, []byte("1"), time.Minute)
	if err != nil || !acquired {
		t.Fatalf("lock setup: acquired=%v err=%v", acquired, err)
	}

	fn := func(ctx context.Context) ([]byte, error) {
		t.Error("loser must not compute")
		return nil, nil
	}

	_, err = cache.GetOrCompute(context.Background(), "k", fn)
	if !errors.Is(err, ErrCacheBusy) {
		t.Errorf("error = %v, want ErrCacheBusy", err)
	}
	if !IsBusy(err) {
		t.Error("IsBusy = false, want true")
	}
}

func TestDualCacheDegradesOnBackendFailure(t *testing.T) {
	t.Parallel()

	backend := newMemoryBackend()
	backend.fail(errors.New("connection refused"))
	recorder := metrics.NewInMemory()
	cache := newTestDualCache(backend, time.Minute, 10*time.Minute, recorder)

	var calls atomic.Int64
	fn := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("direct"), nil
	}

	for i := 0; i < 2; i++ {
		val, err := cache.GetOrCompute(context.Background(), "k", fn)
		if err != nil {
			t.Fatalf("GetOrCompute: %v", err)
		}
		if string(val) != "direct" {
			t.Fatalf("value = %q, want %q", val, "direct")
		}
	}

	if n := calls.Load(); n != 2 {
		t.Errorf("compute ran %d times, want 2 (no caching while degraded)", n)
	}
	if n := recorder.Snapshot().CacheDirectComputes; n != 2 {
		t.Errorf("CacheDirectComputes = %d, want 2", n)
	}
}

func TestDualCacheInvalidate(t *testing.T) {
	t.Parallel()

	backend := newMemoryBackend()
	cache := newTestDualCache(backend, time.Minute, 10*time.Minute, nil)

	var calls atomic.Int64
	fn := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("value"), nil
	}

	if _, err := cache.GetOrCompute(context.Background(), "k", fn); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if err := cache.Invalidate(context.Background(), "k"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := cache.GetOrCompute(context.Background(), "k", fn); err != nil {
		t.Fatalf("after invalidate: %v", err)
	}

	if n := calls.Load(); n != 2 {
		t.Errorf("compute ran %d times, want 2 (invalidate clears both layers)", n)
	}
}
