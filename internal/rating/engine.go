package rating

import (
	"math"
)

// Config holds rating constants (defaults match production tuning).
type Config struct {
	SoloK          float64 // K-factor for solo timed tests, default: 40
	MatchK         float64 // K-factor for head-to-head matches, default: 32
	Scale          float64 // Elo expectation spread, default: 400
	StreakBonusCap int     // max flat streak bonus for solo tests, default: 10
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SoloK:          40,
		MatchK:         32,
		Scale:          400,
		StreakBonusCap: 10,
	}
}

// Engine computes rating deltas. Stateless; safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates a rating engine with the provided config.
func NewEngine(cfg Config) *Engine {
	if cfg.SoloK == 0 || cfg.MatchK == 0 || cfg.Scale == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// SoloInput describes a completed timed test.
type SoloInput struct {
	CorrectAnswers   int
	TotalQuestions   int
	TotalTimeSeconds float64
	QuestionTimes    []float64
	Difficulties     []int
	CurrentRating    int
	Streak           int
}

// Time-bonus constants. The formula is tied to the standard 20-question
// timed test and is intentionally not parameterized by question count.
const (
	timeBonusBaseSeconds = 120
	timeBonusDivisorBase = 20
	perfectRunBonus      = 20
	lowAccuracyThreshold = 10
)

// TimeBonus computes the speed bonus (or malus) for a timed test.
//
//	correct == 0              -> -baseTime (maximum penalty)
//	correct < 10              -> -ceil(baseTime / correct)
//	correct == total          -> baseTime + 20
//	10 <= correct < total     -> ceil(baseTime / (20 - correct))
//
// where baseTime = max(0, 120 - totalTimeSeconds), rounded up.
func TimeBonus(correct, total int, totalTimeSeconds float64) int {
	if total == 0 {
		return 0
	}

	baseTime := int(math.Ceil(float64(timeBonusBaseSeconds) - totalTimeSeconds))
	if baseTime < 0 {
		baseTime = 0
	}

	switch {
	case correct == 0:
		return -baseTime
	case correct < lowAccuracyThreshold:
		return -ceilDiv(baseTime, correct)
	case correct == total:
		return baseTime + perfectRunBonus
	default:
		divisor := timeBonusDivisorBase - correct
		if divisor < 1 {
			divisor = 1
		}
		return ceilDiv(baseTime, divisor)
	}
}

// Solo computes the signed rating delta for a timed test. The actual score is
// the player's accuracy; the expected score is an Elo expectation against a
// synthetic par rating derived from the mean question difficulty. A positive
// run extends by a flat streak bonus.
func (e *Engine) Solo(in SoloInput) int {
	if in.TotalQuestions == 0 {
		return 0
	}

	accuracy := float64(in.CorrectAnswers) / float64(in.TotalQuestions)
	expected := e.expectedScore(float64(in.CurrentRating), parRating(in.Difficulties))
	delta := int(math.Round(e.cfg.SoloK * (accuracy - expected)))

	if delta >= 0 && in.Streak > 0 {
		bonus := in.Streak
		if bonus > e.cfg.StreakBonusCap {
			bonus = e.cfg.StreakBonusCap
		}
		delta += bonus
	}

	return delta
}

// HeadToHead computes one player's signed rating delta for a match. Called
// once per player with the roles swapped; both calls are independent pure
// evaluations. Friendly matches never move rating.
func (e *Engine) HeadToHead(selfRating, opponentRating, selfScore, opponentScore int, ranked bool) int {
	if !ranked {
		return 0
	}

	expected := e.expectedScore(float64(selfRating), float64(opponentRating))

	var actual float64
	switch {
	case selfScore > opponentScore:
		actual = 1
	case selfScore < opponentScore:
		actual = 0
	default:
		actual = 0.5
	}

	return int(math.Round(e.cfg.MatchK * (actual - expected)))
}

// expectedScore is the standard Elo win expectation for self against opponent.
func (e *Engine) expectedScore(self, opponent float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (opponent-self)/e.cfg.Scale))
}

// parRating maps a question set's mean difficulty (1..5) to the rating at
// which an average player is expected to score 50%.
func parRating(difficulties []int) float64 {
	if len(difficulties) == 0 {
		return 1000
	}
	sum := 0
	for _, d := range difficulties {
		sum += d
	}
	mean := float64(sum) / float64(len(difficulties))
	return 600 + 200*mean
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
