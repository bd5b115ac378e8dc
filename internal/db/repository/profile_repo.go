package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentalmath/arena/internal/match"
	"github.com/mentalmath/arena/internal/solo"
)

// ErrProfileNotFound is returned when no user row exists for the id.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository reads and bootstraps user rating profiles. Rating writes
// happen inside the match settlement and solo grading transactions, not here.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository constructs a profile repository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Get returns the rating fields the match coordinator snapshots.
func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*match.RatingProfile, error) {
	var p match.RatingProfile
	err := r.pool.QueryRow(ctx, `
		SELECT id, display_name, rating, match_rating, best_rating, best_match_rating,
			current_streak, last_test_at, tier, match_tier
		FROM users WHERE id = $1`, userID).Scan(
		&p.UserID, &p.DisplayName, &p.Rating, &p.MatchRating, &p.BestRating, &p.BestMatchRating,
		&p.CurrentStreak, &p.LastTestAt, &p.Tier, &p.MatchTier,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// GetSoloProfile returns the slice of the user row solo grading reads.
func (r *ProfileRepository) GetSoloProfile(ctx context.Context, userID uuid.UUID) (*solo.Profile, error) {
	var p solo.Profile
	err := r.pool.QueryRow(ctx, `
		SELECT rating, best_rating, current_streak, last_test_at
		FROM users WHERE id = $1`, userID).Scan(
		&p.Rating, &p.BestRating, &p.CurrentStreak, &p.LastTestAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get solo profile: %w", err)
	}
	return &p, nil
}

// Ensure creates the user row on first contact. Identity comes from the token
// issuer; this only bootstraps the rating fields.
func (r *ProfileRepository) Ensure(ctx context.Context, userID uuid.UUID, displayName string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`, userID, displayName)
	if err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}
