package match

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mentalmath/arena/internal/rating"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindActiveMatch(ctx context.Context, userID uuid.UUID) (*Match, error) {
	args := m.Called(ctx, userID)
	match, _ := args.Get(0).(*Match)
	return match, args.Error(1)
}

func (m *mockStore) FindWaitingMatch(ctx context.Context, gameType GameType, control TimeControl, excludeUser uuid.UUID) (*Match, error) {
	args := m.Called(ctx, gameType, control, excludeUser)
	match, _ := args.Get(0).(*Match)
	return match, args.Error(1)
}

func (m *mockStore) CreateWaitingMatch(ctx context.Context, match *Match) error {
	return m.Called(ctx, match).Error(0)
}

func (m *mockStore) PairMatch(ctx context.Context, matchID, player2ID uuid.UUID, player2Rating int, questions []Question) (*Match, error) {
	args := m.Called(ctx, matchID, player2ID, player2Rating, questions)
	match, _ := args.Get(0).(*Match)
	return match, args.Error(1)
}

func (m *mockStore) GetMatch(ctx context.Context, matchID uuid.UUID) (*Match, []Question, error) {
	args := m.Called(ctx, matchID)
	match, _ := args.Get(0).(*Match)
	questions, _ := args.Get(1).([]Question)
	return match, questions, args.Error(2)
}

func (m *mockStore) WriteAnswerSlot(ctx context.Context, matchID, questionID uuid.UUID, slot Slot, answer string, timeTaken float64, correct bool) (bool, error) {
	args := m.Called(ctx, matchID, questionID, slot, answer, timeTaken, correct)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) IncrementScore(ctx context.Context, matchID uuid.UUID, slot Slot) error {
	return m.Called(ctx, matchID, slot).Error(0)
}

func (m *mockStore) FinishMatch(ctx context.Context, matchID uuid.UUID, s Settlement) (*Match, error) {
	args := m.Called(ctx, matchID, s)
	match, _ := args.Get(0).(*Match)
	return match, args.Error(1)
}

func (m *mockStore) AbortWaitingMatch(ctx context.Context, matchID, player1ID uuid.UUID) (bool, error) {
	args := m.Called(ctx, matchID, player1ID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) SweepStale(ctx context.Context, waitingBefore, playingBefore time.Time) (int64, error) {
	args := m.Called(ctx, waitingBefore, playingBefore)
	return args.Get(0).(int64), args.Error(1)
}

type mockProfiles struct {
	mock.Mock
}

func (m *mockProfiles) Get(ctx context.Context, userID uuid.UUID) (*RatingProfile, error) {
	args := m.Called(ctx, userID)
	profile, _ := args.Get(0).(*RatingProfile)
	return profile, args.Error(1)
}

func newTestCoordinator(store *mockStore, profiles *mockProfiles) *Coordinator {
	return NewCoordinator(store, profiles, rating.NewEngine(rating.DefaultConfig()), nil, nil, DefaultCoordinatorConfig(), zerolog.Nop())
}

func playingMatch(p1, p2 uuid.UUID) *Match {
	started := time.Now().UTC().Add(-time.Minute)
	return &Match{
		ID:            uuid.New(),
		Player1ID:     p1,
		Player2ID:     &p2,
		Status:        StatusPlaying,
		GameType:      GameRanked,
		TimeControl:   ControlBlitz,
		QuestionCount: 20,
		Player1Rating: 1200,
		Player2Rating: 1200,
		StartedAt:     &started,
		CreatedAt:     started,
	}
}

func TestSearch_CreatesWaitingMatchWhenPoolEmpty(t *testing.T) {
	store := new(mockStore)
	profiles := new(mockProfiles)
	coord := newTestCoordinator(store, profiles)
	userID := uuid.New()

	store.On("FindActiveMatch", mock.Anything, userID).Return(nil, nil)
	profiles.On("Get", mock.Anything, userID).Return(&RatingProfile{UserID: userID, MatchRating: 1150}, nil)
	store.On("FindWaitingMatch", mock.Anything, GameRanked, ControlBlitz, userID).Return(nil, nil)
	store.On("CreateWaitingMatch", mock.Anything, mock.MatchedBy(func(m *Match) bool {
		return m.Player1ID == userID && m.Status == StatusWaiting && m.Player1Rating == 1150 && m.QuestionCount == 20
	})).Return(nil)

	res, err := coord.Search(context.Background(), SearchRequest{
		UserID: userID, GameType: GameRanked, TimeControl: ControlBlitz, QuestionCount: 20,
	})
	require.NoError(t, err)
	assert.False(t, res.Paired)
	assert.Equal(t, StatusWaiting, res.Match.Status)
	store.AssertExpectations(t)
}

func TestSearch_PairsIntoWaitingMatch(t *testing.T) {
	store := new(mockStore)
	profiles := new(mockProfiles)
	coord := newTestCoordinator(store, profiles)
	opponent := uuid.New()
	userID := uuid.New()

	waiting := &Match{
		ID: uuid.New(), Player1ID: opponent, Status: StatusWaiting,
		GameType: GameRanked, TimeControl: ControlBlitz, QuestionCount: 20, Player1Rating: 1300,
	}
	paired := playingMatch(opponent, userID)
	paired.ID = waiting.ID

	store.On("FindActiveMatch", mock.Anything, userID).Return(nil, nil)
	profiles.On("Get", mock.Anything, userID).Return(&RatingProfile{UserID: userID, MatchRating: 1100}, nil)
	store.On("FindWaitingMatch", mock.Anything, GameRanked, ControlBlitz, userID).Return(waiting, nil)
	store.On("PairMatch", mock.Anything, waiting.ID, userID, 1100, mock.MatchedBy(func(qs []Question) bool {
		if len(qs) != 20 {
			return false
		}
		for i, q := range qs {
			if q.Order != i+1 || q.Prompt == "" || q.Answer == "" {
				return false
			}
		}
		return true
	})).Return(paired, nil)

	res, err := coord.Search(context.Background(), SearchRequest{
		UserID: userID, GameType: GameRanked, TimeControl: ControlBlitz, QuestionCount: 20,
	})
	require.NoError(t, err)
	assert.True(t, res.Paired)
	assert.Equal(t, waiting.ID, res.Match.ID)
	store.AssertExpectations(t)
}

func TestSearch_PairingRaceFallsThroughToNewWaitingMatch(t *testing.T) {
	store := new(mockStore)
	profiles := new(mockProfiles)
	coord := newTestCoordinator(store, profiles)
	userID := uuid.New()

	waiting := &Match{
		ID: uuid.New(), Player1ID: uuid.New(), Status: StatusWaiting,
		GameType: GameRanked, TimeControl: ControlBlitz, QuestionCount: 20, Player1Rating: 1250,
	}

	store.On("FindActiveMatch", mock.Anything, userID).Return(nil, nil)
	profiles.On("Get", mock.Anything, userID).Return(&RatingProfile{UserID: userID, MatchRating: 1200}, nil)
	store.On("FindWaitingMatch", mock.Anything, GameRanked, ControlBlitz, userID).Return(waiting, nil).Twice()
	store.On("PairMatch", mock.Anything, waiting.ID, userID, 1200, mock.Anything).Return(nil, ErrAlreadyPaired).Twice()
	store.On("CreateWaitingMatch", mock.Anything, mock.Anything).Return(nil)

	res, err := coord.Search(context.Background(), SearchRequest{
		UserID: userID, GameType: GameRanked, TimeControl: ControlBlitz, QuestionCount: 20,
	})
	require.NoError(t, err)
	assert.False(t, res.Paired, "losing both pairing races must end in a fresh waiting match")
	store.AssertExpectations(t)
}

func TestSearch_RejectsPlayerAlreadyInActiveMatch(t *testing.T) {
	store := new(mockStore)
	profiles := new(mockProfiles)
	coord := newTestCoordinator(store, profiles)
	userID := uuid.New()

	active := playingMatch(userID, uuid.New())
	store.On("FindActiveMatch", mock.Anything, userID).Return(active, nil)

	_, err := coord.Search(context.Background(), SearchRequest{
		UserID: userID, GameType: GameRanked, TimeControl: ControlBlitz, QuestionCount: 20,
	})

	var activeErr *ActiveMatchError
	require.ErrorAs(t, err, &activeErr)
	assert.Equal(t, active.ID, activeErr.Match.ID)
	assert.Equal(t, StatusPlaying, activeErr.Match.Status)
}

func TestSearch_InvalidConfiguration(t *testing.T) {
	coord := newTestCoordinator(new(mockStore), new(mockProfiles))

	_, err := coord.Search(context.Background(), SearchRequest{
		UserID: uuid.New(), GameType: "speedrun", TimeControl: ControlBlitz, QuestionCount: 20,
	})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = coord.Search(context.Background(), SearchRequest{
		UserID: uuid.New(), GameType: GameRanked, TimeControl: "hyperbullet", QuestionCount: 20,
	})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = coord.Search(context.Background(), SearchRequest{
		UserID: uuid.New(), GameType: GameRanked, TimeControl: ControlBlitz, QuestionCount: -3,
	})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestCancelSearch_AbortsOwnWaitingMatch(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	userID := uuid.New()

	waiting := &Match{ID: uuid.New(), Player1ID: userID, Status: StatusWaiting, GameType: GameRanked, TimeControl: ControlBlitz}
	store.On("FindActiveMatch", mock.Anything, userID).Return(waiting, nil)
	store.On("AbortWaitingMatch", mock.Anything, waiting.ID, userID).Return(true, nil)

	res, err := coord.CancelSearch(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	store.AssertExpectations(t)
}

func TestCancelSearch_RaceWithPairingReportsPlayingMatch(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	userID := uuid.New()

	// Still reads as waiting, but the conditional abort finds it paired.
	stale := &Match{ID: uuid.New(), Player1ID: userID, Status: StatusWaiting, GameType: GameRanked, TimeControl: ControlBlitz}
	live := playingMatch(userID, uuid.New())
	live.ID = stale.ID

	store.On("FindActiveMatch", mock.Anything, userID).Return(stale, nil)
	store.On("AbortWaitingMatch", mock.Anything, stale.ID, userID).Return(false, nil)
	store.On("GetMatch", mock.Anything, stale.ID).Return(live, []Question(nil), nil)

	res, err := coord.CancelSearch(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, res.Cancelled)
	require.NotNil(t, res.Match)
	assert.Equal(t, StatusPlaying, res.Match.Status)
	store.AssertExpectations(t)
}

func TestSubmitAnswer_WritesOnlyOwnSlot(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	p1, p2 := uuid.New(), uuid.New()

	m := playingMatch(p1, p2)
	q := Question{ID: uuid.New(), MatchID: m.ID, Order: 1, Prompt: "6 × 7", Answer: "42"}

	store.On("GetMatch", mock.Anything, m.ID).Return(m, []Question{q}, nil)
	store.On("WriteAnswerSlot", mock.Anything, m.ID, q.ID, SlotPlayer2, " 42 ", 3.5, true).Return(false, nil)
	store.On("IncrementScore", mock.Anything, m.ID, SlotPlayer2).Return(nil)

	res, err := coord.SubmitAnswer(context.Background(), SubmitRequest{
		MatchID: m.ID, UserID: p2, QuestionID: q.ID, Answer: " 42 ", TimeTaken: 3.5,
	})
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.False(t, res.BothAnswered)
	store.AssertExpectations(t)
}

func TestSubmitAnswer_IncorrectAnswerSkipsScoreIncrement(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	p1, p2 := uuid.New(), uuid.New()

	m := playingMatch(p1, p2)
	q := Question{ID: uuid.New(), MatchID: m.ID, Order: 1, Prompt: "6 × 7", Answer: "42"}

	store.On("GetMatch", mock.Anything, m.ID).Return(m, []Question{q}, nil)
	store.On("WriteAnswerSlot", mock.Anything, m.ID, q.ID, SlotPlayer1, "41", 2.0, false).Return(true, nil)

	res, err := coord.SubmitAnswer(context.Background(), SubmitRequest{
		MatchID: m.ID, UserID: p1, QuestionID: q.ID, Answer: "41", TimeTaken: 2.0,
	})
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.True(t, res.BothAnswered)
	store.AssertNotCalled(t, "IncrementScore", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitAnswer_RejectsNonParticipant(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))

	m := playingMatch(uuid.New(), uuid.New())
	store.On("GetMatch", mock.Anything, m.ID).Return(m, []Question{}, nil)

	_, err := coord.SubmitAnswer(context.Background(), SubmitRequest{
		MatchID: m.ID, UserID: uuid.New(), QuestionID: uuid.New(), Answer: "1",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSubmitAnswer_RejectsDoubleWrite(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	p1, p2 := uuid.New(), uuid.New()

	m := playingMatch(p1, p2)
	answered := "40"
	taken := 2.0
	wrong := false
	q := Question{
		ID: uuid.New(), MatchID: m.ID, Order: 1, Prompt: "6 × 7", Answer: "42",
		Player1Answer: &answered, Player1Time: &taken, Player1Correct: &wrong,
	}
	store.On("GetMatch", mock.Anything, m.ID).Return(m, []Question{q}, nil)

	_, err := coord.SubmitAnswer(context.Background(), SubmitRequest{
		MatchID: m.ID, UserID: p1, QuestionID: q.ID, Answer: "42",
	})
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
	store.AssertNotCalled(t, "WriteAnswerSlot", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitAnswer_RejectsFinishedMatch(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	p1, p2 := uuid.New(), uuid.New()

	m := playingMatch(p1, p2)
	m.Status = StatusFinished
	store.On("GetMatch", mock.Anything, m.ID).Return(m, []Question{}, nil)

	_, err := coord.SubmitAnswer(context.Background(), SubmitRequest{
		MatchID: m.ID, UserID: p1, QuestionID: uuid.New(), Answer: "1",
	})
	assert.ErrorIs(t, err, ErrNotPlaying)
}

// questionsWithResults builds a full question set with per-slot results.
func questionsWithResults(m *Match, p1Correct, p2Correct int, p1Time, p2Time float64) []Question {
	total := m.QuestionCount
	questions := make([]Question, total)
	perQ1 := p1Time / float64(total)
	perQ2 := p2Time / float64(total)
	for i := range questions {
		c1 := i < p1Correct
		c2 := i < p2Correct
		a := "42"
		t1, t2 := perQ1, perQ2
		questions[i] = Question{
			ID: uuid.New(), MatchID: m.ID, Order: i + 1, Prompt: "6 × 7", Answer: "42",
			Player1Answer: &a, Player1Time: &t1, Player1Correct: &c1,
			Player2Answer: &a, Player2Time: &t2, Player2Correct: &c2,
		}
	}
	return questions
}

func TestFinish_RankedSettlement(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	p1, p2 := uuid.New(), uuid.New()

	m := playingMatch(p1, p2)
	questions := questionsWithResults(m, 15, 10, 60, 70)

	store.On("GetMatch", mock.Anything, m.ID).Return(m, questions, nil)
	store.On("FinishMatch", mock.Anything, m.ID, mock.MatchedBy(func(s Settlement) bool {
		return s.Player1Score == 15 && s.Player2Score == 10 &&
			s.WinnerID != nil && *s.WinnerID == p1 &&
			s.Player1Delta == 16 && s.Player2Delta == -16 &&
			len(s.RatingUpdates) == 2 &&
			s.RatingUpdates[0].Outcome == OutcomeWin &&
			s.RatingUpdates[1].Outcome == OutcomeLoss
	})).Run(func(args mock.Arguments) {
		s := args.Get(2).(Settlement)
		m.Status = StatusFinished
		m.Player1Score = s.Player1Score
		m.Player2Score = s.Player2Score
		m.Player1Delta = s.Player1Delta
		m.Player2Delta = s.Player2Delta
		m.WinnerID = s.WinnerID
		m.FinishedAt = &s.FinishedAt
	}).Return(m, nil)

	res, err := coord.Finish(context.Background(), m.ID, p1)
	require.NoError(t, err)
	assert.False(t, res.AlreadySettled)
	assert.Equal(t, 15, res.Player1Score)
	assert.Equal(t, 16, res.Player1Delta)
	assert.Equal(t, -16, res.Player2Delta)
	store.AssertExpectations(t)
}

func TestFinish_FriendlyNeverTouchesRating(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	p1, p2 := uuid.New(), uuid.New()

	m := playingMatch(p1, p2)
	m.GameType = GameFriendly
	questions := questionsWithResults(m, 20, 0, 50, 80)

	store.On("GetMatch", mock.Anything, m.ID).Return(m, questions, nil)
	store.On("FinishMatch", mock.Anything, m.ID, mock.MatchedBy(func(s Settlement) bool {
		return s.Player1Delta == 0 && s.Player2Delta == 0 && len(s.RatingUpdates) == 0 &&
			s.WinnerID != nil && *s.WinnerID == p1
	})).Return(m, nil)

	_, err := coord.Finish(context.Background(), m.ID, p2)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestFinish_TieBreakByTotalTime(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	p1, p2 := uuid.New(), uuid.New()

	m := playingMatch(p1, p2)
	// Equal 15/15 scores, player1 answered faster overall.
	questions := questionsWithResults(m, 15, 15, 55, 72)

	store.On("GetMatch", mock.Anything, m.ID).Return(m, questions, nil)
	store.On("FinishMatch", mock.Anything, m.ID, mock.MatchedBy(func(s Settlement) bool {
		// Winner by time, but the Elo outcome stays the score-differential draw.
		return s.WinnerID != nil && *s.WinnerID == p1 && s.Player1Delta == 0 && s.Player2Delta == 0
	})).Return(m, nil)

	_, err := coord.Finish(context.Background(), m.ID, p1)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestFinish_EqualScoreEqualTimeIsDraw(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	p1, p2 := uuid.New(), uuid.New()

	m := playingMatch(p1, p2)
	questions := questionsWithResults(m, 12, 12, 60, 60)

	store.On("GetMatch", mock.Anything, m.ID).Return(m, questions, nil)
	store.On("FinishMatch", mock.Anything, m.ID, mock.MatchedBy(func(s Settlement) bool {
		return s.WinnerID == nil
	})).Return(m, nil)

	_, err := coord.Finish(context.Background(), m.ID, p1)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestFinish_IdempotentOnFinishedMatch(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	p1, p2 := uuid.New(), uuid.New()

	m := playingMatch(p1, p2)
	m.Status = StatusFinished
	m.Player1Score, m.Player2Score = 15, 10
	m.Player1Delta, m.Player2Delta = 16, -16
	m.WinnerID = &p1
	finishedAt := time.Now().UTC().Add(-10 * time.Second)
	m.FinishedAt = &finishedAt

	store.On("GetMatch", mock.Anything, m.ID).Return(m, []Question{}, nil)

	first, err := coord.Finish(context.Background(), m.ID, p1)
	require.NoError(t, err)
	second, err := coord.Finish(context.Background(), m.ID, p2)
	require.NoError(t, err)

	assert.True(t, first.AlreadySettled)
	assert.Equal(t, first.Player1Score, second.Player1Score)
	assert.Equal(t, first.Player1Delta, second.Player1Delta)
	assert.Equal(t, first.WinnerID, second.WinnerID)
	assert.Equal(t, first.FinishedAt, second.FinishedAt)
	store.AssertNotCalled(t, "FinishMatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestFinish_ConcurrentSettlementReturnsStoredResult(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	p1, p2 := uuid.New(), uuid.New()

	m := playingMatch(p1, p2)
	questions := questionsWithResults(m, 15, 10, 60, 70)

	settled := *m
	settled.Status = StatusFinished
	settled.Player1Score, settled.Player2Score = 15, 10
	settled.Player1Delta, settled.Player2Delta = 16, -16
	settled.WinnerID = &p1
	finishedAt := time.Now().UTC()
	settled.FinishedAt = &finishedAt

	store.On("GetMatch", mock.Anything, m.ID).Return(m, questions, nil).Once()
	store.On("FinishMatch", mock.Anything, m.ID, mock.Anything).Return(nil, ErrAlreadySettled)
	store.On("GetMatch", mock.Anything, m.ID).Return(&settled, []Question(nil), nil).Once()

	res, err := coord.Finish(context.Background(), m.ID, p2)
	require.NoError(t, err)
	assert.True(t, res.AlreadySettled)
	assert.Equal(t, 16, res.Player1Delta)
	store.AssertExpectations(t)
}

func TestFinish_RejectsNonParticipant(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))

	m := playingMatch(uuid.New(), uuid.New())
	store.On("GetMatch", mock.Anything, m.ID).Return(m, []Question{}, nil)

	_, err := coord.Finish(context.Background(), m.ID, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSweepStale_PassesCutoffs(t *testing.T) {
	store := new(mockStore)
	coord := newTestCoordinator(store, new(mockProfiles))
	cfg := DefaultCoordinatorConfig()

	store.On("SweepStale", mock.Anything,
		mock.MatchedBy(func(cutoff time.Time) bool {
			return time.Since(cutoff) >= cfg.WaitingTimeout && time.Since(cutoff) < cfg.WaitingTimeout+time.Minute
		}),
		mock.MatchedBy(func(cutoff time.Time) bool {
			return time.Since(cutoff) >= cfg.PlayingTimeout && time.Since(cutoff) < cfg.PlayingTimeout+time.Minute
		}),
	).Return(int64(3), nil)

	count, err := coord.SweepStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	store.AssertExpectations(t)
}
