package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spoo-me/url-shortener/internal/service"
	"github.com/spoo-me/url-shortener/internal/stats"
)

// ownerHeader carries the caller identity for owner-scoped queries.
const ownerHeader = "X-Owner-ID"

// StatsHandler handles stats query requests.
type StatsHandler struct {
	svc    *service.StatsService
	logger *slog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(svc *service.StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		svc:    svc,
		logger: logger,
	}
}

// URLStats handles GET /api/stats/{alias}. With an owner header the
// query runs as the claimed owner; without one it runs anonymously and
// only succeeds for public URLs.
func (h *StatsHandler) URLStats(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")

	scope := stats.Scope{Kind: stats.ScopeAnonymousURL, ShortCode: alias}
	if owner := r.Header.Get(ownerHeader); owner != "" {
		scope = stats.Scope{Kind: stats.ScopeOwnedURL, OwnerID: owner, ShortCode: alias}
	}

	h.run(w, r, scope)
}

// OwnerStats handles GET /api/stats. The scope spans every URL the
// caller owns, so the owner header is mandatory.
func (h *StatsHandler) OwnerStats(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "OWNER_REQUIRED", "X-Owner-ID header is required")
		return
	}

	h.run(w, r, stats.Scope{Kind: stats.ScopeOwner, OwnerID: owner})
}

func (h *StatsHandler) run(w http.ResponseWriter, r *http.Request, scope stats.Scope) {
	query, err := parseStatsQuery(r, scope)
	if err != nil {
		h.writeStatsError(w, err)
		return
	}

	resp, err := h.svc.Query(r.Context(), query)
	if err != nil {
		h.writeStatsError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseStatsQuery maps query parameters onto the engine request shape.
// Timestamp bounds are RFC 3339; list parameters are comma separated.
func parseStatsQuery(r *http.Request, scope stats.Scope) (stats.Query, error) {
	params := r.URL.Query()

	query := stats.Query{
		Scope:          scope,
		GroupBy:        splitList(params.Get("group_by")),
		Metrics:        splitList(params.Get("metrics")),
		Timezone:       params.Get("timezone"),
		BucketOverride: params.Get("bucket"),
		Filters: stats.Filters{
			Browsers:   splitList(params.Get("browser")),
			Platforms:  splitList(params.Get("platform")),
			Countries:  splitList(params.Get("country")),
			Cities:     splitList(params.Get("city")),
			Referrers:  splitList(params.Get("referrer")),
			ShortCodes: splitList(params.Get("short_code")),
		},
	}

	if raw := params.Get("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return stats.Query{}, stats.ValidationErrorf("invalid start %q", raw)
		}
		query.Range.Start = &start
	}
	if raw := params.Get("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return stats.Query{}, stats.ValidationErrorf("invalid end %q", raw)
		}
		query.Range.End = &end
	}

	return query, nil
}

// writeStatsError maps the stats error kinds to HTTP statuses.
func (h *StatsHandler) writeStatsError(w http.ResponseWriter, err error) {
	kind, ok := stats.KindOf(err)
	if !ok {
		h.logger.Error("stats query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	switch kind {
	case stats.KindValidation:
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error())
	case stats.KindNotFound:
		writeError(w, http.StatusNotFound, "URL_NOT_FOUND", "Short URL not found")
	case stats.KindAccessDenied:
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "Stats access denied")
	default:
		h.logger.Error("stats query failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "TRY_LATER", "Temporarily unavailable, try again")
	}
}

// splitList splits a comma separated parameter, dropping empty parts.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
