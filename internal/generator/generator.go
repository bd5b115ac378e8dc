package generator

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
)

// ErrInvalidConfiguration is returned for malformed generation requests.
var ErrInvalidConfiguration = errors.New("invalid generator configuration")

// OpType identifies the arithmetic operation of an exercise.
type OpType string

const (
	OpAddition       OpType = "addition"
	OpSubtraction    OpType = "subtraction"
	OpMultiplication OpType = "multiplication"
	OpDivision       OpType = "division"
)

var defaultTypes = []OpType{OpAddition, OpSubtraction, OpMultiplication, OpDivision}

// Exercise is a single generated question with its canonical answer.
type Exercise struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Type       OpType `json:"type"`
	Difficulty int    `json:"difficulty"` // 1..5
}

// Config describes a generation request. Ratings carries one rating for solo
// tests or both participants' ratings for a match; two-player generation
// calibrates off the combined signal so both players receive the identical
// ordered list.
type Config struct {
	Count   int
	Ratings []int
	Types   []OpType
}

// Generate produces an ordered, deterministic exercise list. The sequence is
// seeded by the ratings and count only; no wall-clock or external state, so a
// given pairing always reproduces the same questions.
func Generate(cfg Config) ([]Exercise, error) {
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", ErrInvalidConfiguration, cfg.Count)
	}
	types := cfg.Types
	if len(types) == 0 {
		types = defaultTypes
	}
	for _, t := range types {
		if !validType(t) {
			return nil, fmt.Errorf("%w: unknown operation type %q", ErrInvalidConfiguration, t)
		}
	}

	rng := rand.New(rand.NewSource(seed(cfg)))
	band := skillBand(cfg.Ratings)

	exercises := make([]Exercise, cfg.Count)
	for i := range exercises {
		difficulty := pickDifficulty(rng, band)
		op := types[rng.Intn(len(types))]
		exercises[i] = buildExercise(rng, op, difficulty)
	}
	return exercises, nil
}

func validType(t OpType) bool {
	switch t {
	case OpAddition, OpSubtraction, OpMultiplication, OpDivision:
		return true
	}
	return false
}

// seed folds the request into a stable 64-bit value.
func seed(cfg Config) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "count=%d", cfg.Count)
	for _, r := range cfg.Ratings {
		fmt.Fprintf(h, ":r=%d", r)
	}
	for _, t := range cfg.Types {
		fmt.Fprintf(h, ":t=%s", t)
	}
	return int64(h.Sum64())
}

// skillBand maps the averaged rating signal to a difficulty band 1..5.
// 400 rating points per band, same spread the rating expectation uses.
func skillBand(ratings []int) int {
	if len(ratings) == 0 {
		return 2
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	avg := sum / len(ratings)

	band := avg/400 + 1
	if band < 1 {
		band = 1
	}
	if band > 5 {
		band = 5
	}
	return band
}

// pickDifficulty samples around the band: 25% one step easier, 50% at the
// band, 25% one step harder, clamped to 1..5.
func pickDifficulty(rng *rand.Rand, band int) int {
	d := band
	switch roll := rng.Intn(4); roll {
	case 0:
		d = band - 1
	case 3:
		d = band + 1
	}
	if d < 1 {
		d = 1
	}
	if d > 5 {
		d = 5
	}
	return d
}

// Operand ceilings per difficulty, index 0 unused.
var (
	addCeilings = []int{0, 20, 50, 100, 500, 1000}
	mulCeilings = []int{0, 9, 12, 20, 50, 99}
)

func buildExercise(rng *rand.Rand, op OpType, difficulty int) Exercise {
	switch op {
	case OpAddition:
		ceil := addCeilings[difficulty]
		a, b := rng.Intn(ceil)+1, rng.Intn(ceil)+1
		return exercise(a, "+", b, a+b, op, difficulty)
	case OpSubtraction:
		ceil := addCeilings[difficulty]
		a, b := rng.Intn(ceil)+1, rng.Intn(ceil)+1
		if b > a {
			a, b = b, a
		}
		return exercise(a, "-", b, a-b, op, difficulty)
	case OpMultiplication:
		ceil := mulCeilings[difficulty]
		a, b := rng.Intn(ceil)+2, rng.Intn(ceil)+2
		return exercise(a, "×", b, a*b, op, difficulty)
	default: // division, built from a product so the result is always whole
		ceil := mulCeilings[difficulty]
		quotient, divisor := rng.Intn(ceil)+2, rng.Intn(ceil)+2
		return exercise(quotient*divisor, "÷", divisor, quotient, op, difficulty)
	}
}

func exercise(a int, sign string, b, answer int, op OpType, difficulty int) Exercise {
	return Exercise{
		Question:   fmt.Sprintf("%d %s %d", a, sign, b),
		Answer:     strconv.Itoa(answer),
		Type:       op,
		Difficulty: difficulty,
	}
}
