// Package analytics provides click event capture, enrichment and
// asynchronous processing.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spoo-me/url-shortener/internal/metrics"
)

const (
	// StreamKey is the Redis stream for click events.
	StreamKey = "stream:clicks"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:clicks:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// MaxDeadLetterLen bounds the dead letter stream.
	MaxDeadLetterLen = 10000

	// PublishTimeout is the max time to wait for a Redis publish.
	PublishTimeout = 100 * time.Millisecond

	// maxMetaLength caps referrer and user agent fields on the wire.
	maxMetaLength = 500
)

// ClickEventPayload is the compact event format on the Redis stream.
// Geographic and device attributes are resolved later by the worker,
// so the hot redirect path only ships what it already has in hand.
type ClickEventPayload struct {
	ShortCode  string `json:"sc"`
	OwnerID    string `json:"o"`
	IPAddress  string `json:"ip"`
	UserAgent  string `json:"ua,omitempty"`
	Referrer   string `json:"r,omitempty"`
	RedirectMS int64  `json:"ms"`
	ClickedAt  int64  `json:"t"` // Unix milliseconds
}

// Publisher enqueues click events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a click event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "analytics.publisher"),
		metrics: recorder,
	}
}

// Publish adds a click event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event ClickEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget): a redirect
// must never wait on, or fail because of, analytics capture.
func (p *Publisher) PublishAsync(event ClickEventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish click event",
				"short_code", event.ShortCode,
				"error", err,
			)
			p.metrics.IncEventPublished("dropped")
			return
		}

		p.logger.Debug("click event published",
			"short_code", event.ShortCode,
			"stream_id", streamID,
		)
		p.metrics.IncEventPublished("success")
	}()
}

// SanitizeReferrer cleans and truncates a referrer URL.
// Strips query parameters and fragments for privacy.
func SanitizeReferrer(ref string) string {
	if ref == "" {
		return ""
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""

	sanitized := parsed.String()
	if len(sanitized) > maxMetaLength {
		return sanitized[:maxMetaLength]
	}
	return sanitized
}

// TruncateUserAgent truncates a user agent to the wire field cap.
func TruncateUserAgent(ua string) string {
	if len(ua) > maxMetaLength {
		return ua[:maxMetaLength]
	}
	return ua
}
