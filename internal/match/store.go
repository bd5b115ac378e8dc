package match

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mentalmath/arena/internal/rating"
)

// Store is the persistence contract the coordinator drives. All mutual
// exclusion lives here: conditional updates and transactions, never
// application-level locks, so multiple coordinator instances can share one
// database.
type Store interface {
	// FindActiveMatch returns the user's current waiting or playing match.
	FindActiveMatch(ctx context.Context, userID uuid.UUID) (*Match, error)

	// FindWaitingMatch returns an open waiting match with the given game type
	// and time control whose creator is not excludeUser, or nil.
	FindWaitingMatch(ctx context.Context, gameType GameType, control TimeControl, excludeUser uuid.UUID) (*Match, error)

	// CreateWaitingMatch persists a fresh waiting match with its creator's
	// rating snapshot.
	CreateWaitingMatch(ctx context.Context, m *Match) error

	// PairMatch attaches player2 and the shared question set and flips the
	// match to playing, atomically and only while the match is still waiting
	// with no second player. Returns ErrAlreadyPaired when the conditional
	// update matches no row.
	PairMatch(ctx context.Context, matchID, player2ID uuid.UUID, player2Rating int, questions []Question) (*Match, error)

	// GetMatch loads a match with its questions ordered by presentation order.
	GetMatch(ctx context.Context, matchID uuid.UUID) (*Match, []Question, error)

	// WriteAnswerSlot records one player's answer for one question, touching
	// only that slot's columns and only if the slot is still empty. Reports
	// whether both slots for the question are now filled, or
	// ErrAlreadyAnswered when the slot was taken.
	WriteAnswerSlot(ctx context.Context, matchID, questionID uuid.UUID, slot Slot, answer string, timeTaken float64, correct bool) (bool, error)

	// IncrementScore bumps one player's running score atomically.
	IncrementScore(ctx context.Context, matchID uuid.UUID, slot Slot) error

	// FinishMatch applies the settlement in one transaction, conditional on
	// the match still being in playing state. Returns ErrAlreadySettled when
	// another finish won.
	FinishMatch(ctx context.Context, matchID uuid.UUID, s Settlement) (*Match, error)

	// AbortWaitingMatch cancels a search, conditional on the match still
	// waiting with no second player. Reports whether the abort applied.
	AbortWaitingMatch(ctx context.Context, matchID, player1ID uuid.UUID) (bool, error)

	// SweepStale aborts matches stuck in waiting or playing past their
	// cutoffs and returns how many were moved.
	SweepStale(ctx context.Context, waitingBefore, playingBefore time.Time) (int64, error)
}

// RatingProfile is the slice of a user record the coordinator consumes.
type RatingProfile struct {
	UserID          uuid.UUID
	DisplayName     string
	Rating          int // solo
	MatchRating     int // head-to-head
	BestRating      int
	BestMatchRating int
	CurrentStreak   int
	LastTestAt      *time.Time
	Tier            rating.Tier
	MatchTier       rating.Tier
}

// Profiles reads the rating fields the coordinator snapshots at pairing time.
// Rating writes happen inside the store's settlement transaction, not here.
type Profiles interface {
	Get(ctx context.Context, userID uuid.UUID) (*RatingProfile, error)
}
