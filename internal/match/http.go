package match

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mentalmath/arena/internal/auth"
	httperrors "github.com/mentalmath/arena/pkg/http/errors"
)

// HTTPHandlers provides the REST surface over the coordinator. Handlers are
// thin: decode, authenticate, delegate, map errors.
type HTTPHandlers struct {
	coordinator *Coordinator
	logger      zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for match endpoints.
func NewHTTPHandlers(coordinator *Coordinator, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		coordinator: coordinator,
		logger:      logger.With().Str("component", "match_http").Logger(),
	}
}

type searchRequestBody struct {
	GameType      string `json:"game_type"`
	TimeControl   string `json:"time_control"`
	QuestionCount int    `json:"question_count,omitempty"`
}

type matchResponse struct {
	MatchID       string     `json:"match_id"`
	Status        string     `json:"status"`
	GameType      string     `json:"game_type"`
	TimeControl   string     `json:"time_control"`
	QuestionCount int        `json:"question_count"`
	Player1ID     string     `json:"player1_id"`
	Player2ID     *string    `json:"player2_id,omitempty"`
	Player1Score  int        `json:"player1_score"`
	Player2Score  int        `json:"player2_score"`
	WinnerID      *string    `json:"winner_id,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

type questionResponse struct {
	QuestionID string `json:"question_id"`
	Order      int    `json:"order"`
	Prompt     string `json:"prompt"`
	Type       string `json:"type"`
	Difficulty int    `json:"difficulty"`
	Answered   bool   `json:"answered"`
}

// Search handles POST /v1/matches/search.
func (h *HTTPHandlers) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthenticated, "Authentication required")
		return
	}

	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	gameType, ok := ParseGameType(body.GameType)
	if !ok {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidConfiguration, "Unknown game type")
		return
	}
	control, ok := ParseTimeControl(body.TimeControl)
	if !ok {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidConfiguration, "Unknown time control")
		return
	}

	res, err := h.coordinator.Search(r.Context(), SearchRequest{
		UserID:        userID,
		GameType:      gameType,
		TimeControl:   control,
		QuestionCount: body.QuestionCount,
	})
	if err != nil {
		h.respondCoordinatorError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Paired {
		status = http.StatusOK
	}
	h.respondJSON(w, status, map[string]interface{}{
		"paired": res.Paired,
		"match":  toMatchResponse(res.Match),
	})
}

// Cancel handles POST /v1/matches/cancel.
func (h *HTTPHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthenticated, "Authentication required")
		return
	}

	res, err := h.coordinator.CancelSearch(r.Context(), userID)
	if err != nil {
		h.respondCoordinatorError(w, err)
		return
	}

	resp := map[string]interface{}{"cancelled": res.Cancelled}
	if res.Match != nil {
		resp["match"] = toMatchResponse(res.Match)
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// Current handles GET /v1/matches/current, the short-poll target while
// waiting for a pairing.
func (h *HTTPHandlers) Current(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthenticated, "Authentication required")
		return
	}

	m, questions, err := h.coordinator.CurrentMatch(r.Context(), userID)
	if err != nil {
		h.respondCoordinatorError(w, err)
		return
	}

	slot, _ := m.SlotOf(userID)
	qs := make([]questionResponse, len(questions))
	for i := range questions {
		answer, _, _ := questions[i].SlotAnswer(slot)
		qs[i] = questionResponse{
			QuestionID: questions[i].ID.String(),
			Order:      questions[i].Order,
			Prompt:     questions[i].Prompt,
			Type:       questions[i].Type,
			Difficulty: questions[i].Difficulty,
			Answered:   answer != nil,
		}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"match":     toMatchResponse(m),
		"questions": qs,
	})
}

type submitAnswerBody struct {
	Answer    string  `json:"answer"`
	TimeTaken float64 `json:"time_taken_seconds"`
}

// SubmitAnswer handles POST /v1/matches/{id}/questions/{questionID}/answer.
func (h *HTTPHandlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthenticated, "Authentication required")
		return
	}

	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid match id")
		return
	}
	questionID, err := uuid.Parse(r.PathValue("questionID"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid question id")
		return
	}

	var body submitAnswerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	res, err := h.coordinator.SubmitAnswer(r.Context(), SubmitRequest{
		MatchID:    matchID,
		UserID:     userID,
		QuestionID: questionID,
		Answer:     body.Answer,
		TimeTaken:  body.TimeTaken,
	})
	if err != nil {
		h.respondCoordinatorError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"correct":       res.Correct,
		"both_answered": res.BothAnswered,
	})
}

// Finish handles POST /v1/matches/{id}/finish.
func (h *HTTPHandlers) Finish(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthenticated, "Authentication required")
		return
	}

	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid match id")
		return
	}

	res, err := h.coordinator.Finish(r.Context(), matchID, userID)
	if err != nil {
		h.respondCoordinatorError(w, err)
		return
	}

	var winner *string
	if res.WinnerID != nil {
		id := res.WinnerID.String()
		winner = &id
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"match_id":        res.MatchID.String(),
		"player1_score":   res.Player1Score,
		"player2_score":   res.Player2Score,
		"player1_delta":   res.Player1Delta,
		"player2_delta":   res.Player2Delta,
		"winner_id":       winner,
		"finished_at":     res.FinishedAt,
		"already_settled": res.AlreadySettled,
	})
}

func toMatchResponse(m *Match) matchResponse {
	resp := matchResponse{
		MatchID:       m.ID.String(),
		Status:        string(m.Status),
		GameType:      string(m.GameType),
		TimeControl:   string(m.TimeControl),
		QuestionCount: m.QuestionCount,
		Player1ID:     m.Player1ID.String(),
		Player1Score:  m.Player1Score,
		Player2Score:  m.Player2Score,
		StartedAt:     m.StartedAt,
		FinishedAt:    m.FinishedAt,
	}
	if m.Player2ID != nil {
		p2 := m.Player2ID.String()
		resp.Player2ID = &p2
	}
	if m.WinnerID != nil {
		w := m.WinnerID.String()
		resp.WinnerID = &w
	}
	return resp
}

func (h *HTTPHandlers) respondCoordinatorError(w http.ResponseWriter, err error) {
	var activeErr *ActiveMatchError
	switch {
	case errors.As(err, &activeErr):
		httperrors.RespondErrorWithDetails(w, http.StatusConflict, httperrors.ErrCodeAlreadyInMatch,
			"Already participating in an active match", map[string]interface{}{
				"match_id": activeErr.Match.ID.String(),
				"status":   string(activeErr.Match.Status),
			})
	case errors.Is(err, ErrNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Match not found")
	case errors.Is(err, ErrForbidden):
		httperrors.RespondForbidden(w, httperrors.ErrCodeForbidden, "Not a participant of this match")
	case errors.Is(err, ErrNotPlaying):
		httperrors.RespondConflict(w, httperrors.ErrCodeMatchNotPlaying, "Match is not in a playing state")
	case errors.Is(err, ErrAlreadyAnswered):
		httperrors.RespondConflict(w, httperrors.ErrCodeAlreadyAnswered, "Answer slot already written")
	case errors.Is(err, ErrInvalidConfiguration):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidConfiguration, err.Error())
	default:
		h.logger.Error().Err(err).Msg("match operation failed")
		httperrors.RespondInternalError(w, "Internal error")
	}
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
