package solo

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mentalmath/arena/internal/auth"
	"github.com/mentalmath/arena/internal/generator"
	httperrors "github.com/mentalmath/arena/pkg/http/errors"
)

// HTTPHandlers exposes the solo test flow.
type HTTPHandlers struct {
	service *Service
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for solo test endpoints.
func NewHTTPHandlers(service *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		logger:  logger.With().Str("component", "solo_http").Logger(),
	}
}

// Start handles GET /v1/tests/new.
func (h *HTTPHandlers) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthenticated, "Authentication required")
		return
	}

	questions, err := h.service.Start(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

type submitBody struct {
	Answers []AnswerSubmission `json:"answers"`
}

// Submit handles POST /v1/tests.
func (h *HTTPHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthenticated, "Authentication required")
		return
	}

	var body submitBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	res, err := h.service.Submit(r.Context(), userID, body.Answers)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"attempt_id":      res.AttemptID.String(),
		"correct_answers": res.CorrectAnswers,
		"total_questions": res.TotalQuestions,
		"time_bonus":      res.TimeBonus,
		"elo_change":      res.EloChange,
		"rating_delta":    res.RatingDelta,
		"new_rating":      res.NewRating,
		"tier":            string(res.Tier),
		"streak":          res.Streak,
	})
}

func (h *HTTPHandlers) respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, generator.ErrInvalidConfiguration) {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidConfiguration, err.Error())
		return
	}
	h.logger.Error().Err(err).Msg("solo test operation failed")
	httperrors.RespondInternalError(w, "Internal error")
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
