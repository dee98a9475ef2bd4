package analytics

import (
	"fmt"
	"time"
)

const (
	minShortCodeLength = 1
	maxShortCodeLength = 64
	maxOwnerIDLength   = 64

	// maxClockSkew tolerates publishers slightly ahead of the worker.
	maxClockSkew = 5 * time.Minute
)

// ValidateClickEventPayload validates the fields of a click event
// before it is enriched and persisted. Payloads that fail here are
// poison and go to the dead letter stream.
func ValidateClickEventPayload(payload ClickEventPayload) error {
	if payload.ShortCode == "" {
		return fmt.Errorf("short_code is required")
	}
	if len(payload.ShortCode) < minShortCodeLength || len(payload.ShortCode) > maxShortCodeLength {
		return fmt.Errorf("short_code length out of bounds")
	}
	if payload.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if len(payload.OwnerID) > maxOwnerIDLength {
		return fmt.Errorf("owner_id too long")
	}
	if payload.ClickedAt <= 0 {
		return fmt.Errorf("clicked_at must be set")
	}
	if time.UnixMilli(payload.ClickedAt).After(time.Now().Add(maxClockSkew)) {
		return fmt.Errorf("clicked_at is in the future")
	}
	if payload.RedirectMS < 0 {
		return fmt.Errorf("redirect_ms must not be negative")
	}
	if len(payload.Referrer) > maxMetaLength {
		return fmt.Errorf("referrer too long")
	}
	if len(payload.UserAgent) > maxMetaLength {
		return fmt.Errorf("user_agent too long")
	}
	return nil
}
