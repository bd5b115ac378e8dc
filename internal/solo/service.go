package solo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mentalmath/arena/internal/generator"
	"github.com/mentalmath/arena/internal/metrics"
	"github.com/mentalmath/arena/internal/rating"
)

// Attempt is a graded solo timed test. Created wholesale at submission;
// immutable afterward.
type Attempt struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	QuestionCount    int
	CorrectAnswers   int
	TotalTimeSeconds float64
	TimeBonus        int
	EloChange        int
	NewRating        int
	Streak           int
	CreatedAt        time.Time
}

// AttemptQuestion is one graded question within an attempt.
type AttemptQuestion struct {
	Order         int
	Prompt        string
	CorrectAnswer string
	GivenAnswer   string
	Correct       bool
	TimeTaken     float64
	Type          string
	Difficulty    int
}

// ProfileUpdate is the user-row mutation applied with the attempt in one
// transaction.
type ProfileUpdate struct {
	UserID     uuid.UUID
	NewRating  int
	Tier       rating.Tier
	BestRating int
	Streak     int
	TestedAt   time.Time
}

// Store persists graded attempts together with the profile update.
type Store interface {
	SaveGradedAttempt(ctx context.Context, a *Attempt, questions []AttemptQuestion, p ProfileUpdate) error
}

// Profile is the slice of a user record solo grading reads.
type Profile struct {
	Rating        int
	BestRating    int
	CurrentStreak int
	LastTestAt    *time.Time
}

// Profiles reads the current solo rating fields for a user.
type Profiles interface {
	GetSoloProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
}

// Recorder receives the post-grade rating for leaderboard upkeep.
type Recorder interface {
	RecordSoloRating(ctx context.Context, userID uuid.UUID, newRating int) error
}

// ServiceOptions configures the solo test service.
type ServiceOptions struct {
	Store         Store
	Profiles      Profiles
	Engine        *rating.Engine
	Recorder      Recorder
	Logger        zerolog.Logger
	QuestionCount int
	Now           func() time.Time
}

// Service runs the solo timed-test flow: deterministic question generation
// calibrated to the player's rating, then grading and rating application.
type Service struct {
	store         Store
	profiles      Profiles
	engine        *rating.Engine
	recorder      Recorder
	logger        zerolog.Logger
	questionCount int
	now           func() time.Time
}

// NewService creates a solo test service.
func NewService(opts ServiceOptions) *Service {
	if opts.QuestionCount <= 0 {
		opts.QuestionCount = 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:         opts.Store,
		profiles:      opts.Profiles,
		engine:        opts.Engine,
		recorder:      opts.Recorder,
		logger:        opts.Logger.With().Str("component", "solo_service").Logger(),
		questionCount: opts.QuestionCount,
		now:           opts.Now,
	}
}

// TestQuestion is a generated question as exposed to the client. The answer
// stays server-side.
type TestQuestion struct {
	Order      int    `json:"order"`
	Prompt     string `json:"prompt"`
	Type       string `json:"type"`
	Difficulty int    `json:"difficulty"`
}

// Start generates a timed-test question set calibrated to the player's
// current rating. Generation is deterministic for a given rating, so the set
// is reproduced at grading time without pending-test state.
func (s *Service) Start(ctx context.Context, userID uuid.UUID) ([]TestQuestion, error) {
	profile, err := s.profiles.GetSoloProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	exercises, err := s.generate(profile.Rating)
	if err != nil {
		return nil, err
	}

	out := make([]TestQuestion, len(exercises))
	for i, ex := range exercises {
		out[i] = TestQuestion{
			Order:      i + 1,
			Prompt:     ex.Question,
			Type:       string(ex.Type),
			Difficulty: ex.Difficulty,
		}
	}
	return out, nil
}

// AnswerSubmission is one answered question, in presentation order.
type AnswerSubmission struct {
	Answer    string  `json:"answer"`
	TimeTaken float64 `json:"time_taken_seconds"`
}

// Result is the graded outcome returned to the player.
type Result struct {
	AttemptID      uuid.UUID
	CorrectAnswers int
	TotalQuestions int
	TimeBonus      int
	EloChange      int
	RatingDelta    int
	NewRating      int
	Tier           rating.Tier
	Streak         int
}

// Submit grades a completed test against the regenerated question set and
// applies the rating change atomically with the attempt record.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, answers []AnswerSubmission) (*Result, error) {
	profile, err := s.profiles.GetSoloProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	exercises, err := s.generate(profile.Rating)
	if err != nil {
		return nil, err
	}
	if len(answers) != len(exercises) {
		return nil, fmt.Errorf("%w: expected %d answers, got %d",
			generator.ErrInvalidConfiguration, len(exercises), len(answers))
	}

	now := s.now().UTC()
	questions := make([]AttemptQuestion, len(exercises))
	correct := 0
	totalTime := 0.0
	times := make([]float64, len(exercises))
	difficulties := make([]int, len(exercises))

	for i, ex := range exercises {
		given := answers[i].Answer
		ok := answersMatch(given, ex.Answer)
		if ok {
			correct++
		}
		totalTime += answers[i].TimeTaken
		times[i] = answers[i].TimeTaken
		difficulties[i] = ex.Difficulty
		questions[i] = AttemptQuestion{
			Order:         i + 1,
			Prompt:        ex.Question,
			CorrectAnswer: ex.Answer,
			GivenAnswer:   given,
			Correct:       ok,
			TimeTaken:     answers[i].TimeTaken,
			Type:          string(ex.Type),
			Difficulty:    ex.Difficulty,
		}
	}

	var last time.Time
	if profile.LastTestAt != nil {
		last = *profile.LastTestAt
	}
	streak := rating.NextStreak(profile.CurrentStreak, last, now)

	timeBonus := rating.TimeBonus(correct, len(exercises), totalTime)
	eloChange := s.engine.Solo(rating.SoloInput{
		CorrectAnswers:   correct,
		TotalQuestions:   len(exercises),
		TotalTimeSeconds: totalTime,
		QuestionTimes:    times,
		Difficulties:     difficulties,
		CurrentRating:    profile.Rating,
		Streak:           streak,
	})

	delta := eloChange + timeBonus
	newRating := profile.Rating + delta
	if newRating < 0 {
		newRating = 0
	}
	best := profile.BestRating
	if newRating > best {
		best = newRating
	}

	attempt := &Attempt{
		ID:               uuid.New(),
		UserID:           userID,
		QuestionCount:    len(exercises),
		CorrectAnswers:   correct,
		TotalTimeSeconds: totalTime,
		TimeBonus:        timeBonus,
		EloChange:        eloChange,
		NewRating:        newRating,
		Streak:           streak,
		CreatedAt:        now,
	}
	update := ProfileUpdate{
		UserID:     userID,
		NewRating:  newRating,
		Tier:       rating.TierFor(newRating),
		BestRating: best,
		Streak:     streak,
		TestedAt:   now,
	}

	if err := s.store.SaveGradedAttempt(ctx, attempt, questions, update); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}

	if s.recorder != nil {
		if err := s.recorder.RecordSoloRating(ctx, userID, newRating); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("leaderboard record failed")
		}
	}
	metrics.SoloTestsGraded.Inc()

	s.logger.Info().
		Str("user_id", userID.String()).
		Int("correct", correct).
		Int("delta", delta).
		Int("new_rating", newRating).
		Msg("solo test graded")

	return &Result{
		AttemptID:      attempt.ID,
		CorrectAnswers: correct,
		TotalQuestions: len(exercises),
		TimeBonus:      timeBonus,
		EloChange:      eloChange,
		RatingDelta:    delta,
		NewRating:      newRating,
		Tier:           update.Tier,
		Streak:         streak,
	}, nil
}

func (s *Service) generate(playerRating int) ([]generator.Exercise, error) {
	return generator.Generate(generator.Config{
		Count:   s.questionCount,
		Ratings: []int{playerRating},
	})
}

func answersMatch(given, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(expected))
}
