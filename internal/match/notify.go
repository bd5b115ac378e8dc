package match

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mentalmath/arena/pkg/http/ws"
)

// WSNotifier pushes match lifecycle events over the WebSocket hub.
// Delivery is best-effort; a disconnected player learns the same facts from
// the next poll.
type WSNotifier struct {
	hub    *ws.Hub
	logger zerolog.Logger
}

// NewWSNotifier wraps a hub as a coordinator Notifier.
func NewWSNotifier(hub *ws.Hub, logger zerolog.Logger) *WSNotifier {
	return &WSNotifier{
		hub:    hub,
		logger: logger.With().Str("component", "match_notifier").Logger(),
	}
}

// MatchPaired tells both players the match is on.
func (n *WSNotifier) MatchPaired(m *Match) {
	if m.Player2ID == nil {
		return
	}
	n.push(m.Player1ID, ws.TypeMatchPaired, ws.MatchPairedPayload{
		MatchID:       m.ID.String(),
		GameType:      string(m.GameType),
		TimeControl:   string(m.TimeControl),
		QuestionCount: m.QuestionCount,
		OpponentID:    m.Player2ID.String(),
	})
	n.push(*m.Player2ID, ws.TypeMatchPaired, ws.MatchPairedPayload{
		MatchID:       m.ID.String(),
		GameType:      string(m.GameType),
		TimeControl:   string(m.TimeControl),
		QuestionCount: m.QuestionCount,
		OpponentID:    m.Player1ID.String(),
	})
}

// OpponentAnswered tells the other player a question slot was filled.
func (n *WSNotifier) OpponentAnswered(m *Match, answeredBy uuid.UUID, order int, bothAnswered bool) {
	opponent := m.Player1ID
	if answeredBy == m.Player1ID {
		if m.Player2ID == nil {
			return
		}
		opponent = *m.Player2ID
	}
	n.push(opponent, ws.TypeOpponentProgress, ws.OpponentProgressPayload{
		MatchID:       m.ID.String(),
		QuestionOrder: order,
		BothAnswered:  bothAnswered,
	})
}

// MatchFinished delivers the settled outcome, each player seeing their own
// rating delta.
func (n *WSNotifier) MatchFinished(m *Match, res *SettlementResult) {
	var winner *string
	if res.WinnerID != nil {
		w := res.WinnerID.String()
		winner = &w
	}

	n.push(m.Player1ID, ws.TypeMatchFinished, ws.MatchFinishedPayload{
		MatchID:      m.ID.String(),
		Player1Score: res.Player1Score,
		Player2Score: res.Player2Score,
		WinnerID:     winner,
		RatingDelta:  res.Player1Delta,
	})
	if m.Player2ID != nil {
		n.push(*m.Player2ID, ws.TypeMatchFinished, ws.MatchFinishedPayload{
			MatchID:      m.ID.String(),
			Player1Score: res.Player1Score,
			Player2Score: res.Player2Score,
			WinnerID:     winner,
			RatingDelta:  res.Player2Delta,
		})
	}
}

func (n *WSNotifier) push(userID uuid.UUID, msgType string, payload interface{}) {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		n.logger.Warn().Err(err).Str("type", msgType).Msg("marshal push payload")
		return
	}
	if err := n.hub.SendToUser(userID, msg); err != nil {
		n.logger.Debug().Str("user_id", userID.String()).Str("type", msgType).Msg("push skipped")
	}
}
