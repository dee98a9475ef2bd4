package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spoo-me/url-shortener/internal/model"
	"github.com/spoo-me/url-shortener/internal/service"
)

// URLHandler handles short URL lifecycle requests.
type URLHandler struct {
	svc    *service.URLService
	logger *slog.Logger
}

// NewURLHandler creates a new URLHandler.
func NewURLHandler(svc *service.URLService, logger *slog.Logger) *URLHandler {
	return &URLHandler{
		svc:    svc,
		logger: logger,
	}
}

type createURLRequest struct {
	Alias          string     `json:"alias"`
	LongURL        string     `json:"long_url"`
	Private        bool       `json:"private"`
	Password       string     `json:"password"`
	BlockBots      bool       `json:"block_bots"`
	MaxClicks      *int64     `json:"max_clicks"`
	ExpirationTime *time.Time `json:"expiration_time"`
}

// Create handles POST /api/urls.
func (h *URLHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	u, err := h.svc.CreateURL(r.Context(), service.CreateURLInput{
		Alias:          req.Alias,
		LongURL:        req.LongURL,
		OwnerID:        r.Header.Get(ownerHeader),
		Private:        req.Private,
		Password:       req.Password,
		BlockBots:      req.BlockBots,
		MaxClicks:      req.MaxClicks,
		ExpirationTime: req.ExpirationTime,
	})
	if err != nil {
		h.writeURLError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

type updateURLRequest struct {
	LongURL        *string    `json:"long_url"`
	Private        *bool      `json:"private"`
	Password       *string    `json:"password"`
	BlockBots      *bool      `json:"block_bots"`
	MaxClicks      *int64     `json:"max_clicks"`
	ClearMaxClicks bool       `json:"clear_max_clicks"`
	ExpirationTime *time.Time `json:"expiration_time"`
	ClearExpiry    bool       `json:"clear_expiry"`
	Status         *string    `json:"status"`
}

// Update handles PATCH /api/urls/{alias}.
func (h *URLHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	input := service.UpdateURLInput{
		Alias:          chi.URLParam(r, "alias"),
		LongURL:        req.LongURL,
		Private:        req.Private,
		Password:       req.Password,
		BlockBots:      req.BlockBots,
		MaxClicks:      req.MaxClicks,
		ClearMaxClicks: req.ClearMaxClicks,
		ExpirationTime: req.ExpirationTime,
		ClearExpiry:    req.ClearExpiry,
	}
	if req.Status != nil {
		status := model.URLStatus(*req.Status)
		switch status {
		case model.URLStatusActive, model.URLStatusInactive, model.URLStatusBlocked:
			input.Status = &status
		default:
			writeError(w, http.StatusBadRequest, "INVALID_STATUS", "Invalid status value")
			return
		}
	}

	u, err := h.svc.UpdateURL(r.Context(), input)
	if err != nil {
		h.writeURLError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// Delete handles DELETE /api/urls/{alias}.
func (h *URLHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteURL(r.Context(), chi.URLParam(r, "alias")); err != nil {
		h.writeURLError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeURLError maps service errors to HTTP responses.
func (h *URLHandler) writeURLError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrURLNotFound):
		writeError(w, http.StatusNotFound, "URL_NOT_FOUND", "Short URL not found")
	case errors.Is(err, service.ErrAliasExists):
		writeError(w, http.StatusConflict, "ALIAS_EXISTS", "Alias already exists")
	case errors.Is(err, service.ErrInvalidAlias):
		writeError(w, http.StatusBadRequest, "INVALID_ALIAS", "Invalid alias format")
	case errors.Is(err, service.ErrInvalidLongURL):
		writeError(w, http.StatusBadRequest, "INVALID_URL", "Invalid long URL")
	case errors.Is(err, service.ErrExpiresInPast):
		writeError(w, http.StatusBadRequest, "INVALID_EXPIRY", "expiration_time must be in the future")
	default:
		h.logger.Error("url operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
