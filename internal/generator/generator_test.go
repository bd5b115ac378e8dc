package generator

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Deterministic(t *testing.T) {
	cfg := Config{Count: 20, Ratings: []int{1180, 1320}}

	first, err := Generate(cfg)
	require.NoError(t, err)
	second, err := Generate(cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same config must reproduce the identical ordered list")
	assert.Len(t, first, 20)
}

func TestGenerate_OrderIndependentOfRatingOrder(t *testing.T) {
	// The two participants' ratings feed a combined signal; a swapped order is
	// a different seed, but both players of one match share one config, so the
	// fairness property is exercised by determinism above. Here we only check
	// the skill signal itself averages.
	assert.Equal(t, skillBand([]int{800, 1200}), skillBand([]int{1000, 1000}))
}

func TestGenerate_InvalidCount(t *testing.T) {
	_, err := Generate(Config{Count: 0, Ratings: []int{1000}})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = Generate(Config{Count: -5, Ratings: []int{1000}})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestGenerate_UnknownType(t *testing.T) {
	_, err := Generate(Config{Count: 5, Ratings: []int{1000}, Types: []OpType{"modulo"}})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestGenerate_AnswersAreCanonical(t *testing.T) {
	exercises, err := Generate(Config{Count: 200, Ratings: []int{1900}})
	require.NoError(t, err)

	for _, ex := range exercises {
		answer, convErr := strconv.Atoi(ex.Answer)
		require.NoError(t, convErr, "answer %q must be a whole number", ex.Answer)

		parts := strings.Fields(ex.Question)
		require.Len(t, parts, 3)
		a, _ := strconv.Atoi(parts[0])
		b, _ := strconv.Atoi(parts[2])

		switch ex.Type {
		case OpAddition:
			assert.Equal(t, a+b, answer)
		case OpSubtraction:
			assert.Equal(t, a-b, answer)
			assert.GreaterOrEqual(t, answer, 0, "subtraction stays non-negative")
		case OpMultiplication:
			assert.Equal(t, a*b, answer)
		case OpDivision:
			assert.Equal(t, a/b, answer)
			assert.Zero(t, a%b, "division must come out whole")
		}

		assert.GreaterOrEqual(t, ex.Difficulty, 1)
		assert.LessOrEqual(t, ex.Difficulty, 5)
	}
}

func TestGenerate_DifficultyTracksRating(t *testing.T) {
	low, err := Generate(Config{Count: 100, Ratings: []int{100}})
	require.NoError(t, err)
	high, err := Generate(Config{Count: 100, Ratings: []int{1900}})
	require.NoError(t, err)

	assert.Greater(t, meanDifficulty(high), meanDifficulty(low))
}

func TestGenerate_RespectsRequestedTypes(t *testing.T) {
	exercises, err := Generate(Config{Count: 50, Ratings: []int{1000}, Types: []OpType{OpMultiplication}})
	require.NoError(t, err)

	for _, ex := range exercises {
		assert.Equal(t, OpMultiplication, ex.Type)
	}
}

func meanDifficulty(exercises []Exercise) float64 {
	sum := 0
	for _, ex := range exercises {
		sum += ex.Difficulty
	}
	return float64(sum) / float64(len(exercises))
}
