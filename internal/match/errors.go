package match

import (
	"errors"
	"fmt"
)

// Recoverable outcomes callers must branch on. Internal invariant violations
// are returned as plain wrapped errors instead and treated as fatal upstream.
var (
	ErrNotFound             = errors.New("match not found")
	ErrForbidden            = errors.New("requester is not a match participant")
	ErrInvalidConfiguration = errors.New("invalid match configuration")
	ErrNotPlaying           = errors.New("match is not in a playing state")
	ErrAlreadyAnswered      = errors.New("answer slot already written")

	// ErrAlreadyPaired is the store's signal that the conditional pairing
	// update lost the race: the waiting match gained a second player first.
	ErrAlreadyPaired = errors.New("match already paired")

	// ErrAlreadySettled is the store's signal that a finish transition found
	// the match already finished. Callers treat it as an idempotent no-op.
	ErrAlreadySettled = errors.New("match already settled")
)

// ActiveMatchError rejects a search from a player who already participates in
// a waiting or playing match. It carries the existing match so clients can
// redirect instead of retrying blindly.
type ActiveMatchError struct {
	Match *Match
}

func (e *ActiveMatchError) Error() string {
	return fmt.Sprintf("already in %s match %s", e.Match.Status, e.Match.ID)
}
