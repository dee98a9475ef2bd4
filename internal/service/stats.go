package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spoo-me/url-shortener/internal/auth"
	"github.com/spoo-me/url-shortener/internal/cache"
	"github.com/spoo-me/url-shortener/internal/metrics"
	"github.com/spoo-me/url-shortener/internal/stats"
)

const statsKeyPrefix = "stats:"

// StatsService fronts the stats engine with a short-TTL cache so a
// dashboard poll loop does not recompute the same aggregation on every
// request.
type StatsService struct {
	engine  *stats.Engine
	dual    *cache.DualCache
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewStatsService creates a cached stats service. dual may be nil to
// disable response caching.
func NewStatsService(engine *stats.Engine, dual *cache.DualCache, logger *slog.Logger, recorder metrics.Recorder) *StatsService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &StatsService{
		engine:  engine,
		dual:    dual,
		logger:  logger.With("component", "service.stats"),
		metrics: recorder,
	}
}

// Query runs a stats query through the response cache. Engine errors
// are never cached; only a successfully computed response is stored.
func (s *StatsService) Query(ctx context.Context, q stats.Query) (*stats.Response, error) {
	if s.dual == nil {
		resp, err := s.engine.Run(ctx, q)
		s.recordOutcome(err)
		return resp, err
	}

	data, err := s.dual.GetOrCompute(ctx, queryKey(q), func(ctx context.Context) ([]byte, error) {
		resp, err := s.engine.Run(ctx, q)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	})
	if err != nil {
		s.recordOutcome(err)
		return nil, err
	}

	var resp stats.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode cached stats: %w", err)
	}
	s.recordOutcome(nil)
	return &resp, nil
}

func (s *StatsService) recordOutcome(err error) {
	if err == nil {
		s.metrics.IncStatsQuery("success")
		return
	}
	if kind, ok := stats.KindOf(err); ok && kind == stats.KindTransient {
		s.metrics.IncStatsQuery("transient")
		return
	}
	s.metrics.IncStatsQuery("rejected")
}

// queryKey derives a stable cache key from every field that affects
// the response.
func queryKey(q stats.Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%s|", int(q.Scope.Kind), q.Scope.OwnerID, q.Scope.ShortCode)
	if q.Range.Start != nil {
		b.WriteString(q.Range.Start.UTC().Format("2006-01-02T15:04:05"))
	}
	b.WriteByte('|')
	if q.Range.End != nil {
		b.WriteString(q.Range.End.UTC().Format("2006-01-02T15:04:05"))
	}
	fmt.Fprintf(&b, "|%s|%s|%s|%s|",
		strings.Join(q.GroupBy, ","),
		strings.Join(q.Metrics, ","),
		q.Timezone,
		q.BucketOverride,
	)
	fmt.Fprintf(&b, "%s|%s|%s|%s|%s|%s",
		strings.Join(q.Filters.Browsers, ","),
		strings.Join(q.Filters.Platforms, ","),
		strings.Join(q.Filters.Countries, ","),
		strings.Join(q.Filters.Cities, ","),
		strings.Join(q.Filters.Referrers, ","),
		strings.Join(q.Filters.ShortCodes, ","),
	)
	return statsKeyPrefix + auth.QuickHash(b.String())
}
