package leaderboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	httperrors "github.com/mentalmath/arena/pkg/http/errors"
)

// HTTPHandler exposes leaderboard queries.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleGet serves GET /v1/leaderboards/{board}/{window}?limit=10.
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	board := r.PathValue("board")
	window := r.PathValue("window")
	if !ValidBoard(board) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Unknown leaderboard")
		return
	}
	if !ValidWindow(window) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Unknown leaderboard window")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	entries, err := h.svc.Top(r.Context(), board, window, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("board", board).Str("window", window).Msg("leaderboard fetch failed")
		httperrors.RespondInternalError(w, "Internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"board":       board,
		"window":      window,
		"top":         entries,
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}
