package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spoo-me/url-shortener/internal/service"
)

// RedirectHandler handles redirect requests.
type RedirectHandler struct {
	svc    *service.RedirectService
	logger *slog.Logger
}

// NewRedirectHandler creates a new RedirectHandler.
func NewRedirectHandler(svc *service.RedirectService, logger *slog.Logger) *RedirectHandler {
	return &RedirectHandler{
		svc:    svc,
		logger: logger,
	}
}

// Redirect handles GET /{alias} for URL redirection. A password for
// protected URLs is supplied via the "password" query parameter.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")
	if alias == "" {
		writeError(w, http.StatusNotFound, "URL_NOT_FOUND", "Short URL not found")
		return
	}

	start := time.Now()

	entry, err := h.svc.ResolveRedirect(r.Context(), service.ResolveInput{
		Alias:     alias,
		Password:  r.URL.Query().Get("password"),
		UserAgent: r.Header.Get("User-Agent"),
	})
	duration := time.Since(start)

	if err != nil {
		h.handleRedirectError(w, alias, err, duration)
		return
	}

	// Fire-and-forget click capture; the redirect never waits on it.
	h.svc.RecordClick(service.ClickInput{
		Alias:      alias,
		OwnerID:    entry.OwnerID,
		IPAddress:  getClientIP(r),
		UserAgent:  r.Header.Get("User-Agent"),
		Referrer:   r.Header.Get("Referer"),
		RedirectMS: duration.Milliseconds(),
		ClickedAt:  time.Now(),
	})

	h.logger.Info("redirect_success",
		"alias", alias,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Cache-Control", "private, max-age=0")

	http.Redirect(w, r, entry.LongURL, http.StatusFound)
}

// handleRedirectError maps resolution errors to HTTP responses.
func (h *RedirectHandler) handleRedirectError(w http.ResponseWriter, alias string, err error, duration time.Duration) {
	durationMS := float64(duration.Microseconds()) / 1000

	switch {
	case errors.Is(err, service.ErrURLNotFound):
		h.logger.Info("redirect_not_found", "alias", alias, "duration_ms", durationMS)
		writeError(w, http.StatusNotFound, "URL_NOT_FOUND", "Short URL not found")

	case errors.Is(err, service.ErrURLExpired):
		h.logger.Info("redirect_expired", "alias", alias, "duration_ms", durationMS)
		writeError(w, http.StatusGone, "URL_EXPIRED", "Short URL has expired")

	case errors.Is(err, service.ErrURLInactive), errors.Is(err, service.ErrURLBlocked):
		// Do not reveal that the alias exists.
		h.logger.Info("redirect_unavailable", "alias", alias, "duration_ms", durationMS)
		writeError(w, http.StatusNotFound, "URL_NOT_FOUND", "Short URL not found")

	case errors.Is(err, service.ErrPasswordRequired):
		writeError(w, http.StatusUnauthorized, "PASSWORD_REQUIRED", "This URL is password protected")

	case errors.Is(err, service.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, "WRONG_PASSWORD", "Incorrect password")

	case errors.Is(err, service.ErrBotBlocked):
		writeError(w, http.StatusForbidden, "BOT_BLOCKED", "Automated clients are not allowed")

	case errors.Is(err, service.ErrTryLater):
		writeError(w, http.StatusServiceUnavailable, "TRY_LATER", "Temporarily unavailable, try again")

	default:
		h.logger.Error("redirect_error", "alias", alias, "error", err, "duration_ms", durationMS)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
