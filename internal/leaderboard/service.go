// Package leaderboard keeps rating boards in Redis sorted sets, one per board
// and time window. Boards are advisory views over the ratings persisted in
// Postgres; Redis loss degrades the UI, never the ratings.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mentalmath/arena/internal/match"
)

// Boards.
const (
	BoardSolo  = "solo"
	BoardMatch = "match"
)

// Windows.
const (
	WindowDaily   = "daily"
	WindowWeekly  = "weekly"
	WindowMonthly = "monthly"
	WindowAllTime = "all_time"
)

var windowTTLs = map[string]time.Duration{
	WindowDaily:   24 * time.Hour,
	WindowWeekly:  7 * 24 * time.Hour,
	WindowMonthly: 31 * 24 * time.Hour,
	WindowAllTime: 0,
}

// ValidBoard reports whether the board name is known.
func ValidBoard(board string) bool {
	return board == BoardSolo || board == BoardMatch
}

// ValidWindow reports whether the window name is known.
func ValidWindow(window string) bool {
	_, ok := windowTTLs[window]
	return ok
}

// Entry is one leaderboard row sent to clients.
type Entry struct {
	Rank        int       `json:"rank"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Rating      int       `json:"rating"`
	Tier        string    `json:"tier"`
}

// ServiceOptions configures the leaderboard service.
type ServiceOptions struct {
	TopN           int
	RedisKeyPrefix string
}

// Service maintains the boards and answers top-N queries. It implements the
// match and solo recorder contracts.
type Service struct {
	redis    *redis.Client
	profiles match.Profiles
	logger   zerolog.Logger
	topN     int
	prefix   string
}

// NewService constructs a leaderboard service.
func NewService(redis *redis.Client, profiles match.Profiles, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}
	return &Service{
		redis:    redis,
		profiles: profiles,
		logger:   logger.With().Str("component", "leaderboard").Logger(),
		topN:     topN,
		prefix:   prefix,
	}
}

// RecordMatchRating places a player's post-settlement match rating on the
// match boards.
func (s *Service) RecordMatchRating(ctx context.Context, userID uuid.UUID, newRating int) error {
	return s.record(ctx, BoardMatch, userID, newRating)
}

// RecordSoloRating places a player's post-grade solo rating on the solo
// boards.
func (s *Service) RecordSoloRating(ctx context.Context, userID uuid.UUID, newRating int) error {
	return s.record(ctx, BoardSolo, userID, newRating)
}

func (s *Service) record(ctx context.Context, board string, userID uuid.UUID, newRating int) error {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load profile for board: %w", err)
	}

	tier := profile.Tier
	if board == BoardMatch {
		tier = profile.MatchTier
	}

	pipe := s.redis.TxPipeline()
	for window, ttl := range windowTTLs {
		zKey := s.boardKey(board, window)
		pipe.ZAdd(ctx, zKey, redis.Z{Score: float64(newRating), Member: userID.String()})
		if ttl > 0 {
			pipe.Expire(ctx, zKey, ttl)
		}
	}
	metaKey := s.metaKey(board, userID)
	pipe.HSet(ctx, metaKey, map[string]interface{}{
		"display_name": profile.DisplayName,
		"tier":         string(tier),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record rating on %s board: %w", board, err)
	}
	return nil
}

// Top returns the highest-rated entries for a board window.
func (s *Service) Top(ctx context.Context, board, window string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	results, err := s.redis.ZRevRangeWithScores(ctx, s.boardKey(board, window), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s board: %w", board, window, err)
	}

	entries := make([]Entry, 0, len(results))
	for i, z := range results {
		userID, err := uuid.Parse(z.Member.(string))
		if err != nil {
			s.logger.Warn().Str("member", z.Member.(string)).Msg("malformed board member, skipping")
			continue
		}

		entry := Entry{
			Rank:   i + 1,
			UserID: userID,
			Rating: int(z.Score),
		}
		if meta, err := s.redis.HGetAll(ctx, s.metaKey(board, userID)).Result(); err == nil {
			entry.DisplayName = meta["display_name"]
			entry.Tier = meta["tier"]
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Service) boardKey(board, window string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, board, window)
}

func (s *Service) metaKey(board string, userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:meta:%s", s.prefix, board, userID.String())
}
