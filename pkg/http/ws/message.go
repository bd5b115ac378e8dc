package ws

import "encoding/json"

// MessageType constants. All traffic is server -> client; clients drive the
// match over the REST API and treat pushes as hints to refresh.
const (
	TypeMatchPaired      = "match_paired"
	TypeOpponentProgress = "opponent_progress"
	TypeMatchFinished    = "match_finished"
	TypeError            = "error"
	TypePing             = "ping"
	TypePong             = "pong"
)

// Message wraps all WebSocket payloads with a type tag.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MatchPairedPayload announces a pairing to both players.
type MatchPairedPayload struct {
	MatchID       string `json:"match_id"`
	GameType      string `json:"game_type"`
	TimeControl   string `json:"time_control"`
	QuestionCount int    `json:"question_count"`
	OpponentID    string `json:"opponent_id"`
}

// OpponentProgressPayload signals that the opponent answered a question.
type OpponentProgressPayload struct {
	MatchID       string `json:"match_id"`
	QuestionOrder int    `json:"question_order"`
	BothAnswered  bool   `json:"both_answered"`
}

// MatchFinishedPayload carries the settled outcome.
type MatchFinishedPayload struct {
	MatchID      string  `json:"match_id"`
	Player1Score int     `json:"player1_score"`
	Player2Score int     `json:"player2_score"`
	WinnerID     *string `json:"winner_id"` // null = draw
	RatingDelta  int     `json:"rating_delta"`
}

// NewMessage marshals a payload into a typed message.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw}, nil
}
