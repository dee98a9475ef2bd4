package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/spoo-me/url-shortener/internal/cache"
	"github.com/spoo-me/url-shortener/internal/model"
	"github.com/spoo-me/url-shortener/internal/stats"
)

// ClickRepository provides database access for click records and the
// daily stats rollups. It implements stats.Store for the query engine
// and analytics.Repository for the ingest worker.
type ClickRepository struct {
	repo *Repository
}

// NewClickRepository creates a new ClickRepository.
func NewClickRepository(repo *Repository) *ClickRepository {
	return &ClickRepository{repo: repo}
}

// InsertClick stores one click record. Replays of the same event ID
// (at-least-once queue delivery) are absorbed by ON CONFLICT DO NOTHING.
func (r *ClickRepository) InsertClick(ctx context.Context, record *model.ClickRecord) error {
	query := `
		INSERT INTO click_events (
			id, event_id, short_code, owner_id, ip_address, country, city,
			browser, os, referrer, bot_name, redirect_ms, clicked_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	_, err := r.repo.pool.Exec(ctx, query,
		record.ID,
		record.EventID,
		record.ShortCode,
		record.OwnerID,
		record.IPAddress,
		record.Country,
		nullableString(record.City),
		record.Browser,
		record.OS,
		nullableString(record.Referrer),
		nullableString(record.BotName),
		record.RedirectMS,
		record.ClickedAt,
	)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

// GroupByField groups matched clicks by a dimension column, counting
// rows and distinct IPs per group.
func (r *ClickRepository) GroupByField(ctx context.Context, pred stats.Predicate, dim stats.Dimension) ([]stats.Row, error) {
	column, err := dimensionColumn(dim)
	if err != nil {
		return nil, err
	}

	where, args := buildPredicate(pred)
	query := fmt.Sprintf(`
		SELECT COALESCE(%s, ''), COUNT(*), COUNT(DISTINCT ip_address)
		FROM click_events
		WHERE %s
		GROUP BY 1
		ORDER BY 2 DESC
	`, column, where)

	rows, err := r.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, stats.TransientError("group clicks", err)
	}
	defer rows.Close()

	var out []stats.Row
	for rows.Next() {
		var row stats.Row
		if err := rows.Scan(&row.Value, &row.TotalClicks, &row.UniqueClicks); err != nil {
			return nil, stats.TransientError("scan group row", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, stats.TransientError("iterate group rows", err)
	}
	return out, nil
}

// ClicksInRange returns the raw (clicked_at, ip) projection of the
// matched clicks for in-process time bucketing.
func (r *ClickRepository) ClicksInRange(ctx context.Context, pred stats.Predicate) ([]stats.RawClick, error) {
	where, args := buildPredicate(pred)
	query := fmt.Sprintf(`
		SELECT clicked_at, ip_address
		FROM click_events
		WHERE %s
		ORDER BY clicked_at
	`, where)

	rows, err := r.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, stats.TransientError("query clicks", err)
	}
	defer rows.Close()

	var out []stats.RawClick
	for rows.Next() {
		var c stats.RawClick
		if err := rows.Scan(&c.ClickedAt, &c.IPAddress); err != nil {
			return nil, stats.TransientError("scan click", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, stats.TransientError("iterate clicks", err)
	}
	return out, nil
}

// Summary computes the scope-wide statistics for the matched clicks.
func (r *ClickRepository) Summary(ctx context.Context, pred stats.Predicate) (stats.Summary, error) {
	where, args := buildPredicate(pred)
	query := fmt.Sprintf(`
		SELECT COUNT(*), COUNT(DISTINCT ip_address),
			   MIN(clicked_at), MAX(clicked_at),
			   COALESCE(AVG(redirect_ms), 0)
		FROM click_events
		WHERE %s
	`, where)

	var summary stats.Summary
	err := r.repo.pool.QueryRow(ctx, query, args...).Scan(
		&summary.TotalClicks,
		&summary.UniqueClicks,
		&summary.FirstClick,
		&summary.LastClick,
		&summary.AvgRedirectMS,
	)
	if err != nil {
		return stats.Summary{}, stats.TransientError("query summary", err)
	}
	return summary, nil
}

// ApplyBufferedStats merges drained counter snapshots into the
// daily_stats rollups, one transaction per snapshot so a mid-batch
// failure loses at most one short code's drain.
func (r *ClickRepository) ApplyBufferedStats(ctx context.Context, snapshots []*cache.BufferedSnapshot) error {
	day := time.Now().UTC().Truncate(24 * time.Hour)

	for _, snap := range snapshots {
		if err := r.applySnapshot(ctx, snap, day); err != nil {
			return fmt.Errorf("apply snapshot %q: %w", snap.ShortCode, err)
		}
	}
	return nil
}

// applySnapshot read-merges-writes one short code's daily row under a
// row lock so concurrent flushers never drop increments.
func (r *ClickRepository) applySnapshot(ctx context.Context, snap *cache.BufferedSnapshot, day time.Time) error {
	tx, err := r.repo.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	existing := model.DailyStats{
		ShortCode: snap.ShortCode,
		Date:      day,
		Browsers:  make(map[string]int64),
		Platforms: make(map[string]int64),
		Countries: make(map[string]int64),
		Referrers: make(map[string]int64),
	}

	var browsersJSON, platformsJSON, countriesJSON, referrersJSON []byte
	err = tx.QueryRow(ctx, `
		SELECT total_clicks, browsers, platforms, countries, referrers
		FROM daily_stats
		WHERE short_code = $1 AND date = $2
		FOR UPDATE
	`, snap.ShortCode, day).Scan(
		&existing.TotalClicks,
		&browsersJSON,
		&platformsJSON,
		&countriesJSON,
		&referrersJSON,
	)
	if err == nil {
		unmarshalBreakdown(browsersJSON, existing.Browsers)
		unmarshalBreakdown(platformsJSON, existing.Platforms)
		unmarshalBreakdown(countriesJSON, existing.Countries)
		unmarshalBreakdown(referrersJSON, existing.Referrers)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("read daily row: %w", err)
	}

	existing.TotalClicks += snap.TotalClicks
	mergeBreakdown(existing.Browsers, snap.Breakdown("browser"))
	mergeBreakdown(existing.Platforms, snap.Breakdown("os"))
	mergeBreakdown(existing.Countries, snap.Breakdown("country"))
	mergeBreakdown(existing.Referrers, snap.Breakdown("referrer"))

	browsersJSON, _ = json.Marshal(existing.Browsers)
	platformsJSON, _ = json.Marshal(existing.Platforms)
	countriesJSON, _ = json.Marshal(existing.Countries)
	referrersJSON, _ = json.Marshal(existing.Referrers)

	_, err = tx.Exec(ctx, `
		INSERT INTO daily_stats (
			short_code, date, total_clicks, browsers, platforms,
			countries, referrers, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (short_code, date) DO UPDATE SET
			total_clicks = EXCLUDED.total_clicks,
			browsers = EXCLUDED.browsers,
			platforms = EXCLUDED.platforms,
			countries = EXCLUDED.countries,
			referrers = EXCLUDED.referrers,
			updated_at = NOW()
	`, snap.ShortCode, day, existing.TotalClicks,
		browsersJSON, platformsJSON, countriesJSON, referrersJSON)
	if err != nil {
		return fmt.Errorf("upsert daily row: %w", err)
	}

	return tx.Commit(ctx)
}

// dimensionColumn maps a grouping dimension to its column.
func dimensionColumn(dim stats.Dimension) (string, error) {
	switch dim {
	case stats.DimensionBrowser:
		return "browser", nil
	case stats.DimensionOS:
		return "os", nil
	case stats.DimensionCountry:
		return "country", nil
	case stats.DimensionCity:
		return "city", nil
	case stats.DimensionReferrer:
		return "referrer", nil
	case stats.DimensionShortCode:
		return "short_code", nil
	default:
		return "", stats.ValidationErrorf("dimension %s is not a column", dim)
	}
}

// buildPredicate translates a predicate into a WHERE clause and its
// bind arguments. The window is half-open: [Start, End).
func buildPredicate(pred stats.Predicate) (string, []interface{}) {
	conds := []string{"clicked_at >= $1", "clicked_at < $2"}
	args := []interface{}{pred.Start, pred.End}

	bind := func(cond string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if pred.OwnerID != "" {
		bind("owner_id = $%d", pred.OwnerID)
	}
	if pred.ShortCode != "" {
		bind("short_code = $%d", pred.ShortCode)
	}
	if len(pred.ShortCodes) > 0 {
		bind("short_code = ANY($%d)", pq.Array(pred.ShortCodes))
	}
	if len(pred.Browsers) > 0 {
		bind("browser = ANY($%d)", pq.Array(pred.Browsers))
	}
	if len(pred.Platforms) > 0 {
		bind("os = ANY($%d)", pq.Array(pred.Platforms))
	}
	if len(pred.Countries) > 0 {
		bind("country = ANY($%d)", pq.Array(pred.Countries))
	}
	if len(pred.Cities) > 0 {
		bind("city = ANY($%d)", pq.Array(pred.Cities))
	}

	// A referrer filter naming the direct group widens the match to
	// null and empty values.
	switch {
	case len(pred.Referrers) > 0 && pred.ReferrerDirect:
		bind("(referrer = ANY($%d) OR referrer IS NULL OR referrer = '')", pq.Array(pred.Referrers))
	case len(pred.Referrers) > 0:
		bind("referrer = ANY($%d)", pq.Array(pred.Referrers))
	case pred.ReferrerDirect:
		conds = append(conds, "(referrer IS NULL OR referrer = '')")
	}

	return strings.Join(conds, " AND "), args
}

// unmarshalBreakdown decodes a JSONB breakdown in place, tolerating
// null columns.
func unmarshalBreakdown(data []byte, into map[string]int64) {
	if len(data) > 0 {
		_ = json.Unmarshal(data, &into)
	}
}

// mergeBreakdown adds the drained counts into the stored breakdown.
func mergeBreakdown(into map[string]int64, drained map[string]int64) {
	for value, count := range drained {
		into[value] += count
	}
}
