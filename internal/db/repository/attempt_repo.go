package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentalmath/arena/internal/solo"
)

// AttemptRepository persists graded solo attempts.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository constructs an attempt repository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// SaveGradedAttempt writes the attempt, its question rows, and the user
// profile update in one transaction, so a crash never leaves a graded attempt
// without its rating change or vice versa.
func (r *AttemptRepository) SaveGradedAttempt(ctx context.Context, a *solo.Attempt, questions []solo.AttemptQuestion, p solo.ProfileUpdate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin attempt tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO attempts (id, user_id, question_count, correct_answers,
			total_time_seconds, time_bonus, elo_change, new_rating, streak, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.UserID, a.QuestionCount, a.CorrectAnswers,
		a.TotalTimeSeconds, a.TimeBonus, a.EloChange, a.NewRating, a.Streak, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range questions {
		q := &questions[i]
		batch.Queue(`
			INSERT INTO attempt_questions (attempt_id, ord, prompt, correct_answer,
				given_answer, correct, time_taken, op_type, difficulty)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			a.ID, q.Order, q.Prompt, q.CorrectAnswer,
			q.GivenAnswer, q.Correct, q.TimeTaken, q.Type, q.Difficulty)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert attempt questions: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET rating = $2, tier = $3, best_rating = $4,
			current_streak = $5, last_test_at = $6, updated_at = now()
		WHERE id = $1`,
		p.UserID, p.NewRating, p.Tier, p.BestRating, p.Streak, p.TestedAt)
	if err != nil {
		return fmt.Errorf("apply profile update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit attempt tx: %w", err)
	}
	return nil
}
