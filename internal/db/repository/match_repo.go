package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentalmath/arena/internal/match"
	"github.com/mentalmath/arena/internal/rating"
)

const matchColumns = `id, player1_id, player2_id, status, game_type, time_control,
	question_count, player1_rating, player2_rating, player1_score, player2_score,
	player1_delta, player2_delta, winner_id, started_at, finished_at, created_at`

const questionColumns = `id, match_id, ord, prompt, answer, op_type, difficulty,
	p1_answer, p1_time, p1_correct, p2_answer, p2_time, p2_correct`

// MatchRepository persists matches and their question rows.
type MatchRepository struct {
	pool *pgxpool.Pool
}

// NewMatchRepository constructs a match repository.
func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

func scanMatch(row pgx.Row) (*match.Match, error) {
	var m match.Match
	err := row.Scan(
		&m.ID, &m.Player1ID, &m.Player2ID, &m.Status, &m.GameType, &m.TimeControl,
		&m.QuestionCount, &m.Player1Rating, &m.Player2Rating, &m.Player1Score, &m.Player2Score,
		&m.Player1Delta, &m.Player2Delta, &m.WinnerID, &m.StartedAt, &m.FinishedAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func getMatch(ctx context.Context, q querier, matchID uuid.UUID) (*match.Match, error) {
	m, err := scanMatch(q.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1`, matchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// FindActiveMatch returns the user's waiting or playing match, or nil.
func (r *MatchRepository) FindActiveMatch(ctx context.Context, userID uuid.UUID) (*match.Match, error) {
	m, err := scanMatch(r.pool.QueryRow(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE (player1_id = $1 OR player2_id = $1)
		  AND status IN ('waiting', 'playing')
		ORDER BY created_at DESC
		LIMIT 1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active match: %w", err)
	}
	return m, nil
}

// FindWaitingMatch returns the oldest compatible open match, or nil.
func (r *MatchRepository) FindWaitingMatch(ctx context.Context, gameType match.GameType, control match.TimeControl, excludeUser uuid.UUID) (*match.Match, error) {
	m, err := scanMatch(r.pool.QueryRow(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE status = 'waiting'
		  AND player2_id IS NULL
		  AND game_type = $1
		  AND time_control = $2
		  AND player1_id <> $3
		ORDER BY created_at ASC
		LIMIT 1`, gameType, control, excludeUser))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find waiting match: %w", err)
	}
	return m, nil
}

// CreateWaitingMatch inserts a fresh waiting match.
func (r *MatchRepository) CreateWaitingMatch(ctx context.Context, m *match.Match) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO matches (id, player1_id, status, game_type, time_control,
			question_count, player1_rating, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.Player1ID, m.Status, m.GameType, m.TimeControl,
		m.QuestionCount, m.Player1Rating, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create waiting match: %w", err)
	}
	return nil
}

// PairMatch attaches the second player and the shared question set in one
// transaction. The update is conditional on the match still waiting with no
// second player, so exactly one of two racing searches wins.
func (r *MatchRepository) PairMatch(ctx context.Context, matchID, player2ID uuid.UUID, player2Rating int, questions []match.Question) (*match.Match, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin pair tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE matches
		SET player2_id = $2, player2_rating = $3, status = 'playing', started_at = now()
		WHERE id = $1 AND status = 'waiting' AND player2_id IS NULL`,
		matchID, player2ID, player2Rating)
	if err != nil {
		return nil, fmt.Errorf("pair match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, match.ErrAlreadyPaired
	}

	batch := &pgx.Batch{}
	for i := range questions {
		q := &questions[i]
		batch.Queue(`
			INSERT INTO match_questions (id, match_id, ord, prompt, answer, op_type, difficulty)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			q.ID, q.MatchID, q.Order, q.Prompt, q.Answer, q.Type, q.Difficulty)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("insert questions: %w", err)
	}

	paired, err := getMatch(ctx, tx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load paired match: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit pair tx: %w", err)
	}
	return paired, nil
}

// GetMatch loads a match with its questions in presentation order.
func (r *MatchRepository) GetMatch(ctx context.Context, matchID uuid.UUID) (*match.Match, []match.Question, error) {
	m, err := getMatch(ctx, r.pool, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("get match: %w", err)
	}
	if m == nil {
		return nil, nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+questionColumns+`
		FROM match_questions
		WHERE match_id = $1
		ORDER BY ord ASC`, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("get match questions: %w", err)
	}
	defer rows.Close()

	var questions []match.Question
	for rows.Next() {
		var q match.Question
		if err := rows.Scan(
			&q.ID, &q.MatchID, &q.Order, &q.Prompt, &q.Answer, &q.Type, &q.Difficulty,
			&q.Player1Answer, &q.Player1Time, &q.Player1Correct,
			&q.Player2Answer, &q.Player2Time, &q.Player2Correct,
		); err != nil {
			return nil, nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate questions: %w", err)
	}
	return m, questions, nil
}

// WriteAnswerSlot records one player's answer, touching only that slot's
// columns and only while the slot is empty.
func (r *MatchRepository) WriteAnswerSlot(ctx context.Context, matchID, questionID uuid.UUID, slot match.Slot, answer string, timeTaken float64, correct bool) (bool, error) {
	var stmt string
	if slot == match.SlotPlayer1 {
		stmt = `
			UPDATE match_questions
			SET p1_answer = $3, p1_time = $4, p1_correct = $5
			WHERE id = $1 AND match_id = $2 AND p1_answer IS NULL`
	} else {
		stmt = `
			UPDATE match_questions
			SET p2_answer = $3, p2_time = $4, p2_correct = $5
			WHERE id = $1 AND match_id = $2 AND p2_answer IS NULL`
	}

	tag, err := r.pool.Exec(ctx, stmt, questionID, matchID, answer, timeTaken, correct)
	if err != nil {
		return false, fmt.Errorf("write answer slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, match.ErrAlreadyAnswered
	}

	var both bool
	err = r.pool.QueryRow(ctx, `
		SELECT p1_answer IS NOT NULL AND p2_answer IS NOT NULL
		FROM match_questions WHERE id = $1`, questionID).Scan(&both)
	if err != nil {
		return false, fmt.Errorf("check answer slots: %w", err)
	}
	return both, nil
}

// IncrementScore bumps one player's running score atomically.
func (r *MatchRepository) IncrementScore(ctx context.Context, matchID uuid.UUID, slot match.Slot) error {
	stmt := `UPDATE matches SET player1_score = player1_score + 1 WHERE id = $1`
	if slot == match.SlotPlayer2 {
		stmt = `UPDATE matches SET player2_score = player2_score + 1 WHERE id = $1`
	}
	if _, err := r.pool.Exec(ctx, stmt, matchID); err != nil {
		return fmt.Errorf("increment score: %w", err)
	}
	return nil
}

// FinishMatch applies the settlement in one transaction, conditional on the
// match still being in playing state. The rating updates read the live rows
// under row locks, so concurrent settlements of different matches for the
// same player serialize correctly.
func (r *MatchRepository) FinishMatch(ctx context.Context, matchID uuid.UUID, s match.Settlement) (*match.Match, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin finish tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE matches
		SET status = 'finished',
			player1_score = $2, player2_score = $3,
			player1_delta = $4, player2_delta = $5,
			winner_id = $6, finished_at = $7
		WHERE id = $1 AND status = 'playing'`,
		matchID, s.Player1Score, s.Player2Score, s.Player1Delta, s.Player2Delta,
		s.WinnerID, s.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("finish match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, match.ErrAlreadySettled
	}

	for _, u := range s.RatingUpdates {
		if err := applyRatingUpdate(ctx, tx, u); err != nil {
			return nil, err
		}
	}

	finished, err := getMatch(ctx, tx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load finished match: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit finish tx: %w", err)
	}
	return finished, nil
}

// applyRatingUpdate moves one player's match rating by the settled delta,
// recomputes the tier and best-rating watermark, and bumps the win/loss/draw
// and per-time-control aggregates. Column names come from the static
// time-control table, never from request input.
func applyRatingUpdate(ctx context.Context, tx pgx.Tx, u match.RatingUpdate) error {
	var current, best int
	err := tx.QueryRow(ctx, `
		SELECT match_rating, best_match_rating
		FROM users WHERE id = $1
		FOR UPDATE`, u.UserID).Scan(&current, &best)
	if err != nil {
		return fmt.Errorf("lock user %s: %w", u.UserID, err)
	}

	newRating := current + u.Delta
	if newRating < 0 {
		newRating = 0
	}
	if newRating > best {
		best = newRating
	}

	var wins, losses, draws int
	switch u.Outcome {
	case match.OutcomeWin:
		wins = 1
	case match.OutcomeLoss:
		losses = 1
	default:
		draws = 1
	}

	spec := u.TimeControl.Spec()
	stmt := fmt.Sprintf(`
		UPDATE users
		SET match_rating = $2, match_tier = $3, best_match_rating = $4,
			wins = wins + $5, losses = losses + $6, draws = draws + $7,
			%[1]s = %[1]s + 1, %[2]s = %[2]s + $8,
			updated_at = now()
		WHERE id = $1`, spec.GamesColumn, spec.WinsColumn)

	_, err = tx.Exec(ctx, stmt,
		u.UserID, newRating, rating.TierFor(newRating), best,
		wins, losses, draws, wins)
	if err != nil {
		return fmt.Errorf("apply rating update for %s: %w", u.UserID, err)
	}
	return nil
}

// AbortWaitingMatch cancels a search if the match is still unpaired.
func (r *MatchRepository) AbortWaitingMatch(ctx context.Context, matchID, player1ID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE matches
		SET status = 'aborted', finished_at = now()
		WHERE id = $1 AND player1_id = $2 AND status = 'waiting' AND player2_id IS NULL`,
		matchID, player1ID)
	if err != nil {
		return false, fmt.Errorf("abort waiting match: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SweepStale aborts matches stuck past their cutoffs. Aborted matches keep
// their scores but never produce rating updates.
func (r *MatchRepository) SweepStale(ctx context.Context, waitingBefore, playingBefore time.Time) (int64, error) {
	tag1, err := r.pool.Exec(ctx, `
		UPDATE matches SET status = 'aborted', finished_at = now()
		WHERE status = 'waiting' AND created_at < $1`, waitingBefore)
	if err != nil {
		return 0, fmt.Errorf("sweep waiting matches: %w", err)
	}

	tag2, err := r.pool.Exec(ctx, `
		UPDATE matches SET status = 'aborted', finished_at = now()
		WHERE status = 'playing' AND started_at < $1`, playingBefore)
	if err != nil {
		return tag1.RowsAffected(), fmt.Errorf("sweep playing matches: %w", err)
	}

	return tag1.RowsAffected() + tag2.RowsAffected(), nil
}
