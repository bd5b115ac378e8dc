package match

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mentalmath/arena/internal/generator"
	"github.com/mentalmath/arena/internal/metrics"
	"github.com/mentalmath/arena/internal/rating"
)

// Notifier pushes match lifecycle events to connected clients. Optional:
// short-polling CurrentMatch remains the contract, pushes are best-effort.
type Notifier interface {
	MatchPaired(m *Match)
	OpponentAnswered(m *Match, answeredBy uuid.UUID, order int, bothAnswered bool)
	MatchFinished(m *Match, res *SettlementResult)
}

// Recorder receives rating results for leaderboard upkeep.
type Recorder interface {
	RecordMatchRating(ctx context.Context, userID uuid.UUID, newRating int) error
}

// Config bounds the coordinator's sweeps and defaults.
type Config struct {
	WaitingTimeout       time.Duration // waiting matches older than this are swept
	PlayingTimeout       time.Duration // playing matches older than this are swept
	DefaultQuestionCount int
	MaxQuestionCount     int
}

// DefaultCoordinatorConfig returns production defaults.
func DefaultCoordinatorConfig() Config {
	return Config{
		WaitingTimeout:       2 * time.Minute,
		PlayingTimeout:       30 * time.Minute,
		DefaultQuestionCount: 20,
		MaxQuestionCount:     50,
	}
}

// Coordinator owns matchmaking and the match lifecycle state machine. It
// keeps no in-process mutable state; every operation coordinates through the
// store's atomicity primitives, so concurrent requests and multiple instances
// are safe by construction.
type Coordinator struct {
	store    Store
	profiles Profiles
	engine   *rating.Engine
	notifier Notifier
	recorder Recorder
	cfg      Config
	logger   zerolog.Logger
}

// NewCoordinator wires the match coordinator. notifier and recorder may be nil.
func NewCoordinator(store Store, profiles Profiles, engine *rating.Engine, notifier Notifier, recorder Recorder, cfg Config, logger zerolog.Logger) *Coordinator {
	if cfg.WaitingTimeout == 0 || cfg.PlayingTimeout == 0 {
		cfg = DefaultCoordinatorConfig()
	}
	return &Coordinator{
		store:    store,
		profiles: profiles,
		engine:   engine,
		notifier: notifier,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger.With().Str("component", "match_coordinator").Logger(),
	}
}

// Search pairs the requester into a compatible waiting match or creates a new
// waiting one. A player already in an active match gets an ActiveMatchError
// carrying that match. The pairing transition is a store-level conditional
// update: when two requests race for the same waiting match exactly one wins
// and the loser falls through to another candidate or a fresh waiting match.
func (c *Coordinator) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if req.QuestionCount == 0 {
		req.QuestionCount = c.cfg.DefaultQuestionCount
	}
	if req.QuestionCount < 1 || req.QuestionCount > c.cfg.MaxQuestionCount {
		return nil, fmt.Errorf("%w: question count %d out of range", ErrInvalidConfiguration, req.QuestionCount)
	}
	if _, ok := ParseGameType(string(req.GameType)); !ok {
		return nil, fmt.Errorf("%w: unknown game type %q", ErrInvalidConfiguration, req.GameType)
	}
	if _, ok := ParseTimeControl(string(req.TimeControl)); !ok {
		return nil, fmt.Errorf("%w: unknown time control %q", ErrInvalidConfiguration, req.TimeControl)
	}

	if active, err := c.store.FindActiveMatch(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("find active match: %w", err)
	} else if active != nil {
		return nil, &ActiveMatchError{Match: active}
	}

	profile, err := c.profiles.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load rating profile: %w", err)
	}

	// A lost pairing race falls through to the next candidate; two attempts
	// keep the worst case bounded before we create our own waiting match.
	for attempt := 0; attempt < 2; attempt++ {
		waiting, err := c.store.FindWaitingMatch(ctx, req.GameType, req.TimeControl, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("find waiting match: %w", err)
		}
		if waiting == nil {
			break
		}

		questions, err := c.buildQuestions(waiting, profile.MatchRating)
		if err != nil {
			return nil, err
		}

		paired, err := c.store.PairMatch(ctx, waiting.ID, req.UserID, profile.MatchRating, questions)
		if errors.Is(err, ErrAlreadyPaired) {
			c.logger.Debug().Str("match_id", waiting.ID.String()).Msg("pairing race lost, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("pair match: %w", err)
		}

		metrics.MatchesPaired.Inc()
		c.logger.Info().
			Str("match_id", paired.ID.String()).
			Str("player1_id", paired.Player1ID.String()).
			Str("player2_id", req.UserID.String()).
			Str("time_control", string(paired.TimeControl)).
			Msg("match paired")

		if c.notifier != nil {
			c.notifier.MatchPaired(paired)
		}
		return &SearchResult{Match: paired, Paired: true}, nil
	}

	m := &Match{
		ID:            uuid.New(),
		Player1ID:     req.UserID,
		Status:        StatusWaiting,
		GameType:      req.GameType,
		TimeControl:   req.TimeControl,
		QuestionCount: req.QuestionCount,
		Player1Rating: profile.MatchRating,
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.store.CreateWaitingMatch(ctx, m); err != nil {
		return nil, fmt.Errorf("create waiting match: %w", err)
	}

	metrics.MatchesCreated.Inc()
	c.logger.Info().
		Str("match_id", m.ID.String()).
		Str("player1_id", req.UserID.String()).
		Str("time_control", string(req.TimeControl)).
		Msg("waiting match created")

	return &SearchResult{Match: m, Paired: false}, nil
}

// buildQuestions generates the shared question set calibrated to both
// players' ratings, identical for both by construction.
func (c *Coordinator) buildQuestions(waiting *Match, player2Rating int) ([]Question, error) {
	exercises, err := generator.Generate(generator.Config{
		Count:   waiting.QuestionCount,
		Ratings: []int{waiting.Player1Rating, player2Rating},
	})
	if err != nil {
		if errors.Is(err, generator.ErrInvalidConfiguration) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	questions := make([]Question, len(exercises))
	for i, ex := range exercises {
		questions[i] = Question{
			ID:         uuid.New(),
			MatchID:    waiting.ID,
			Order:      i + 1,
			Prompt:     ex.Question,
			Answer:     ex.Answer,
			Type:       string(ex.Type),
			Difficulty: ex.Difficulty,
		}
	}
	return questions, nil
}

// CancelSearch aborts the requester's waiting match. When a concurrent
// opponent already paired, the cancellation no-ops and the result carries the
// now-playing match instead.
func (c *Coordinator) CancelSearch(ctx context.Context, userID uuid.UUID) (*CancelResult, error) {
	active, err := c.store.FindActiveMatch(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find active match: %w", err)
	}
	if active == nil {
		return nil, ErrNotFound
	}

	if active.Status == StatusWaiting && active.Player1ID == userID {
		aborted, err := c.store.AbortWaitingMatch(ctx, active.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("abort waiting match: %w", err)
		}
		if aborted {
			c.logger.Info().Str("match_id", active.ID.String()).Msg("search cancelled")
			return &CancelResult{Cancelled: true}, nil
		}
	}

	// Pairing won the race (or the match was already playing): report the
	// live match so the client redirects into it.
	current, _, err := c.store.GetMatch(ctx, active.ID)
	if err != nil {
		return nil, fmt.Errorf("reload match: %w", err)
	}
	return &CancelResult{Cancelled: false, Match: current}, nil
}

// CurrentMatch returns the user's active match with its questions, the
// short-poll target for clients awaiting a pairing.
func (c *Coordinator) CurrentMatch(ctx context.Context, userID uuid.UUID) (*Match, []Question, error) {
	active, err := c.store.FindActiveMatch(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("find active match: %w", err)
	}
	if active == nil {
		return nil, nil, ErrNotFound
	}
	return c.store.GetMatch(ctx, active.ID)
}

// SubmitAnswer records one player's answer for one question. The write
// touches only the requester's slot, so the two players' submissions for the
// same question commute.
func (c *Coordinator) SubmitAnswer(ctx context.Context, req SubmitRequest) (*AnswerResult, error) {
	m, questions, err := c.store.GetMatch(ctx, req.MatchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}

	slot, ok := m.SlotOf(req.UserID)
	if !ok {
		return nil, ErrForbidden
	}
	if m.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}

	var question *Question
	for i := range questions {
		if questions[i].ID == req.QuestionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return nil, ErrNotFound
	}

	if answer, _, _ := question.SlotAnswer(slot); answer != nil {
		return nil, ErrAlreadyAnswered
	}

	correct := answersMatch(req.Answer, question.Answer)

	bothAnswered, err := c.store.WriteAnswerSlot(ctx, m.ID, question.ID, slot, req.Answer, req.TimeTaken, correct)
	if err != nil {
		return nil, err
	}

	if correct {
		if err := c.store.IncrementScore(ctx, m.ID, slot); err != nil {
			return nil, fmt.Errorf("increment score: %w", err)
		}
	}

	if c.notifier != nil {
		c.notifier.OpponentAnswered(m, req.UserID, question.Order, bothAnswered)
	}

	return &AnswerResult{Correct: correct, BothAnswered: bothAnswered}, nil
}

// answersMatch compares a submission against the canonical answer,
// case-insensitively after trimming.
func answersMatch(submitted, canonical string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(canonical))
}

// Finish settles a match: final scores, winner, rating deltas, persisted
// atomically and exactly once. A repeat call returns the stored result
// unchanged, so retries and the second participant's finish are always safe.
func (c *Coordinator) Finish(ctx context.Context, matchID, requesterID uuid.UUID) (*SettlementResult, error) {
	m, questions, err := c.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}
	if !m.IsParticipant(requesterID) {
		return nil, ErrForbidden
	}

	if m.Status == StatusFinished {
		return settledResult(m, true), nil
	}
	if m.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}

	settlement, err := c.settle(m, questions)
	if err != nil {
		return nil, err
	}

	finished, err := c.store.FinishMatch(ctx, m.ID, *settlement)
	if errors.Is(err, ErrAlreadySettled) {
		// A concurrent finish won; return its result, not ours.
		reloaded, _, loadErr := c.store.GetMatch(ctx, matchID)
		if loadErr != nil {
			return nil, fmt.Errorf("reload settled match: %w", loadErr)
		}
		return settledResult(reloaded, true), nil
	}
	if err != nil {
		return nil, fmt.Errorf("finish match: %w", err)
	}

	metrics.MatchesSettled.Inc()
	c.logger.Info().
		Str("match_id", m.ID.String()).
		Int("player1_score", settlement.Player1Score).
		Int("player2_score", settlement.Player2Score).
		Int("player1_delta", settlement.Player1Delta).
		Int("player2_delta", settlement.Player2Delta).
		Msg("match settled")

	result := settledResult(finished, false)

	if c.recorder != nil && m.GameType == GameRanked && m.Player2ID != nil {
		// Best-effort leaderboard upkeep off the snapshot + delta.
		if err := c.recorder.RecordMatchRating(ctx, m.Player1ID, m.Player1Rating+settlement.Player1Delta); err != nil {
			c.logger.Warn().Err(err).Msg("leaderboard record failed")
		}
		if err := c.recorder.RecordMatchRating(ctx, *m.Player2ID, m.Player2Rating+settlement.Player2Delta); err != nil {
			c.logger.Warn().Err(err).Msg("leaderboard record failed")
		}
	}

	if c.notifier != nil {
		c.notifier.MatchFinished(finished, result)
	}

	return result, nil
}

// settle computes final scores, the winner, and both rating deltas from the
// question rows. Pure over its inputs.
func (c *Coordinator) settle(m *Match, questions []Question) (*Settlement, error) {
	var s1, s2 int
	var t1, t2 float64
	for i := range questions {
		q := &questions[i]
		if q.Player1Correct != nil && *q.Player1Correct {
			s1++
		}
		if q.Player2Correct != nil && *q.Player2Correct {
			s2++
		}
		// Time totals count only questions the player actually answered.
		if q.Player1Time != nil {
			t1 += *q.Player1Time
		}
		if q.Player2Time != nil {
			t2 += *q.Player2Time
		}
	}

	if s1 < 0 || s2 < 0 {
		return nil, fmt.Errorf("settlement invariant violated: negative scores %d/%d for match %s", s1, s2, m.ID)
	}

	winner := determineWinner(m, s1, s2, t1, t2)

	ranked := m.GameType == GameRanked
	d1 := c.engine.HeadToHead(m.Player1Rating, m.Player2Rating, s1, s2, ranked)
	d2 := c.engine.HeadToHead(m.Player2Rating, m.Player1Rating, s2, s1, ranked)

	settlement := &Settlement{
		Player1Score: s1,
		Player2Score: s2,
		Player1Delta: d1,
		Player2Delta: d2,
		WinnerID:     winner,
		FinishedAt:   time.Now().UTC(),
	}

	if ranked && m.Player2ID != nil {
		settlement.RatingUpdates = []RatingUpdate{
			{UserID: m.Player1ID, Delta: d1, Outcome: outcomeFor(m.Player1ID, winner), TimeControl: m.TimeControl},
			{UserID: *m.Player2ID, Delta: d2, Outcome: outcomeFor(*m.Player2ID, winner), TimeControl: m.TimeControl},
		}
	}

	return settlement, nil
}

// determineWinner applies the tie-break chain: higher score, then lower total
// answered time, then draw.
func determineWinner(m *Match, s1, s2 int, t1, t2 float64) *uuid.UUID {
	switch {
	case s1 > s2:
		return &m.Player1ID
	case s2 > s1:
		return m.Player2ID
	}

	// Equal scores: lower total response time wins; absent or equal totals
	// are a draw.
	if t1 > 0 || t2 > 0 {
		if t1 < t2 {
			return &m.Player1ID
		}
		if t2 < t1 {
			return m.Player2ID
		}
	}
	return nil
}

func outcomeFor(userID uuid.UUID, winner *uuid.UUID) Outcome {
	if winner == nil {
		return OutcomeDraw
	}
	if *winner == userID {
		return OutcomeWin
	}
	return OutcomeLoss
}

func settledResult(m *Match, already bool) *SettlementResult {
	res := &SettlementResult{
		MatchID:        m.ID,
		Player1Score:   m.Player1Score,
		Player2Score:   m.Player2Score,
		Player1Delta:   m.Player1Delta,
		Player2Delta:   m.Player2Delta,
		WinnerID:       m.WinnerID,
		AlreadySettled: already,
	}
	if m.FinishedAt != nil {
		res.FinishedAt = *m.FinishedAt
	}
	return res
}

// SweepStale aborts matches stuck in waiting past the short timeout or in
// playing past the long one. Aborted matches never touch ratings.
func (c *Coordinator) SweepStale(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	count, err := c.store.SweepStale(ctx, now.Add(-c.cfg.WaitingTimeout), now.Add(-c.cfg.PlayingTimeout))
	if err != nil {
		return 0, fmt.Errorf("sweep stale matches: %w", err)
	}
	if count > 0 {
		metrics.MatchesSwept.Add(float64(count))
		c.logger.Info().Int64("count", count).Msg("stale matches aborted")
	}
	return count, nil
}
