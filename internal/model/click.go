package model

import "time"

// ClickRecord is the durable, append-only click event. It is the source
// of truth for all aggregation, keyed for range scans by
// (short_code, clicked_at) and (owner_id, clicked_at).
type ClickRecord struct {
	ID      string `json:"id"`       // ULID (time-sortable)
	EventID string `json:"event_id"` // Idempotency key (queue message ID)

	ShortCode string `json:"short_code"`
	OwnerID   string `json:"owner_id"` // AnonymousOwner when unowned

	IPAddress string `json:"ip_address"`
	Country   string `json:"country"`        // human-readable name, "Unknown" on lookup failure
	City      string `json:"city,omitempty"` // empty when unresolved

	Browser string `json:"browser"`
	OS      string `json:"os"`

	Referrer string `json:"referrer,omitempty"` // sanitized registrable domain, empty = direct
	BotName  string `json:"bot_name,omitempty"` // empty = ordinary browser

	RedirectMS int64 `json:"redirect_ms"`

	ClickedAt time.Time `json:"clicked_at"`
	CreatedAt time.Time `json:"created_at"`
}

// DailyStats is a pre-aggregated per-URL, per-day row maintained by the
// buffer flush job for deployments that batch rather than stream clicks.
type DailyStats struct {
	ShortCode   string    `json:"short_code"`
	Date        time.Time `json:"date"` // UTC date, time component zeroed
	TotalClicks int64     `json:"total_clicks"`

	// Breakdowns stored as JSONB.
	Browsers  map[string]int64 `json:"browsers,omitempty"`
	Platforms map[string]int64 `json:"platforms,omitempty"`
	Countries map[string]int64 `json:"countries,omitempty"`
	Referrers map[string]int64 `json:"referrers,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
