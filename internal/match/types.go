package match

import (
	"time"

	"github.com/google/uuid"
)

// Status lifecycle states. The only legal transitions are
// waiting -> playing -> finished, plus waiting/playing -> aborted via the
// cleanup sweep or a search cancellation.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
	StatusAborted  Status = "aborted"
)

// GameType distinguishes rating-affecting matches from casual ones.
type GameType string

const (
	GameRanked   GameType = "ranked"
	GameFriendly GameType = "friendly"
)

// ParseGameType validates a client-supplied game type.
func ParseGameType(s string) (GameType, bool) {
	switch GameType(s) {
	case GameRanked, GameFriendly:
		return GameType(s), true
	}
	return "", false
}

// TimeControl is the match pace. Each control maps to a fixed time limit and
// to the user aggregate columns it feeds, via an explicit lookup table rather
// than any dynamic field access.
type TimeControl string

const (
	ControlBullet TimeControl = "bullet"
	ControlBlitz  TimeControl = "blitz"
	ControlRapid  TimeControl = "rapid"
)

// TimeControlSpec carries the per-control constants.
type TimeControlSpec struct {
	Limit       time.Duration
	GamesColumn string
	WinsColumn  string
}

var timeControlSpecs = map[TimeControl]TimeControlSpec{
	ControlBullet: {Limit: 1 * time.Minute, GamesColumn: "bullet_games", WinsColumn: "bullet_wins"},
	ControlBlitz:  {Limit: 3 * time.Minute, GamesColumn: "blitz_games", WinsColumn: "blitz_wins"},
	ControlRapid:  {Limit: 10 * time.Minute, GamesColumn: "rapid_games", WinsColumn: "rapid_wins"},
}

// ParseTimeControl validates a client-supplied time control.
func ParseTimeControl(s string) (TimeControl, bool) {
	if _, ok := timeControlSpecs[TimeControl(s)]; ok {
		return TimeControl(s), true
	}
	return "", false
}

// Spec returns the constants for a time control.
func (tc TimeControl) Spec() TimeControlSpec {
	return timeControlSpecs[tc]
}

// Slot identifies which participant's answer columns a write targets.
type Slot int

const (
	SlotPlayer1 Slot = 1
	SlotPlayer2 Slot = 2
)

// Match is a head-to-head game session. Player ratings are snapshotted at
// creation/pairing time and never re-read during settlement, so the delta
// computation is deterministic against the skill levels at match start.
type Match struct {
	ID            uuid.UUID
	Player1ID     uuid.UUID
	Player2ID     *uuid.UUID
	Status        Status
	GameType      GameType
	TimeControl   TimeControl
	QuestionCount int
	Player1Rating int
	Player2Rating int
	Player1Score  int
	Player2Score  int
	Player1Delta  int
	Player2Delta  int
	WinnerID      *uuid.UUID // nil = draw (or not yet settled)
	StartedAt     *time.Time
	FinishedAt    *time.Time
	CreatedAt     time.Time
}

// IsParticipant reports whether a user plays in this match.
func (m *Match) IsParticipant(userID uuid.UUID) bool {
	return m.Player1ID == userID || (m.Player2ID != nil && *m.Player2ID == userID)
}

// SlotOf returns the answer slot owned by a participant.
func (m *Match) SlotOf(userID uuid.UUID) (Slot, bool) {
	if m.Player1ID == userID {
		return SlotPlayer1, true
	}
	if m.Player2ID != nil && *m.Player2ID == userID {
		return SlotPlayer2, true
	}
	return 0, false
}

// Question is a match question with two independent answer slots. Each slot
// is written at most once, by its owning player; a write to one slot never
// touches the other's columns.
type Question struct {
	ID         uuid.UUID
	MatchID    uuid.UUID
	Order      int
	Prompt     string
	Answer     string
	Type       string
	Difficulty int

	Player1Answer  *string
	Player1Time    *float64
	Player1Correct *bool

	Player2Answer  *string
	Player2Time    *float64
	Player2Correct *bool
}

// SlotAnswer returns the recorded answer fields for one slot.
func (q *Question) SlotAnswer(slot Slot) (answer *string, timeTaken *float64, correct *bool) {
	if slot == SlotPlayer1 {
		return q.Player1Answer, q.Player1Time, q.Player1Correct
	}
	return q.Player2Answer, q.Player2Time, q.Player2Correct
}

// SearchRequest is a matchmaking request from one player.
type SearchRequest struct {
	UserID        uuid.UUID
	GameType      GameType
	TimeControl   TimeControl
	QuestionCount int
}

// SearchResult reports the outcome of a search: either the player paired into
// an existing match (now playing) or a fresh waiting match was created.
type SearchResult struct {
	Match  *Match
	Paired bool
}

// CancelResult reports a cancellation attempt. When a concurrent opponent
// paired first, Cancelled is false and Match carries the now-playing match.
type CancelResult struct {
	Cancelled bool
	Match     *Match
}

// SubmitRequest records one player's answer to one question.
type SubmitRequest struct {
	MatchID    uuid.UUID
	UserID     uuid.UUID
	QuestionID uuid.UUID
	Answer     string
	TimeTaken  float64
}

// AnswerResult is returned from answer intake. BothAnswered signals UI
// progression only; completion is a separate explicit operation.
type AnswerResult struct {
	Correct      bool
	BothAnswered bool
}

// Outcome of a match from one player's perspective, for aggregate counters.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// RatingUpdate is one player's settlement mutation: delta applied to the live
// match rating, tier recomputed from the result, best-rating watermark and
// win/loss/draw aggregates updated, all inside the settlement transaction.
type RatingUpdate struct {
	UserID      uuid.UUID
	Delta       int
	Outcome     Outcome
	TimeControl TimeControl
}

// Settlement is the final state applied to a match exactly once.
type Settlement struct {
	Player1Score  int
	Player2Score  int
	Player1Delta  int
	Player2Delta  int
	WinnerID      *uuid.UUID
	FinishedAt    time.Time
	RatingUpdates []RatingUpdate // empty for friendly matches
}

// SettlementResult is the settled outcome returned to callers. Repeated
// finish calls return the identical stored result.
type SettlementResult struct {
	MatchID        uuid.UUID
	Player1Score   int
	Player2Score   int
	Player1Delta   int
	Player2Delta   int
	WinnerID       *uuid.UUID
	FinishedAt     time.Time
	AlreadySettled bool
}
