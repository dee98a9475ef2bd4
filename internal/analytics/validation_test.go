package analytics

import (
	"strings"
	"testing"
	"time"
)

func validPayload() ClickEventPayload {
	return ClickEventPayload{
		ShortCode:  "abc123",
		OwnerID:    "anonymous",
		IPAddress:  "203.0.113.9",
		UserAgent:  "Mozilla/5.0",
		Referrer:   "https://example.com",
		RedirectMS: 12,
		ClickedAt:  time.Now().UnixMilli(),
	}
}

func TestValidateClickEventPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*ClickEventPayload)
		wantErr bool
	}{
		{
			name:    "valid payload",
			mutate:  func(p *ClickEventPayload) {},
			wantErr: false,
		},
		{
			name:    "missing short code",
			mutate:  func(p *ClickEventPayload) { p.ShortCode = "" },
			wantErr: true,
		},
		{
			name:    "short code too long",
			mutate:  func(p *ClickEventPayload) { p.ShortCode = strings.Repeat("a", 65) },
			wantErr: true,
		},
		{
			name:    "missing owner",
			mutate:  func(p *ClickEventPayload) { p.OwnerID = "" },
			wantErr: true,
		},
		{
			name:    "owner too long",
			mutate:  func(p *ClickEventPayload) { p.OwnerID = strings.Repeat("o", 65) },
			wantErr: true,
		},
		{
			name:    "zero clicked at",
			mutate:  func(p *ClickEventPayload) { p.ClickedAt = 0 },
			wantErr: true,
		},
		{
			name:    "negative clicked at",
			mutate:  func(p *ClickEventPayload) { p.ClickedAt = -5 },
			wantErr: true,
		},
		{
			name: "clicked at far in the future",
			mutate: func(p *ClickEventPayload) {
				p.ClickedAt = time.Now().Add(time.Hour).UnixMilli()
			},
			wantErr: true,
		},
		{
			name: "clicked at within clock skew",
			mutate: func(p *ClickEventPayload) {
				p.ClickedAt = time.Now().Add(time.Minute).UnixMilli()
			},
			wantErr: false,
		},
		{
			name:    "negative redirect ms",
			mutate:  func(p *ClickEventPayload) { p.RedirectMS = -1 },
			wantErr: true,
		},
		{
			name:    "referrer too long",
			mutate:  func(p *ClickEventPayload) { p.Referrer = strings.Repeat("r", maxMetaLength+1) },
			wantErr: true,
		},
		{
			name:    "user agent too long",
			mutate:  func(p *ClickEventPayload) { p.UserAgent = strings.Repeat("u", maxMetaLength+1) },
			wantErr: true,
		},
		{
			name: "empty optional fields allowed",
			mutate: func(p *ClickEventPayload) {
				p.UserAgent = ""
				p.Referrer = ""
				p.IPAddress = ""
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			payload := validPayload()
			tt.mutate(&payload)

			err := ValidateClickEventPayload(payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateClickEventPayload() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
