package game

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kibbyd/rps-adaptive/internal/capture"
	"github.com/kibbyd/rps-adaptive/internal/move"
	"github.com/kibbyd/rps-adaptive/internal/predictor"
)

// #region fakes

type recordingSaver struct {
	mu     sync.Mutex
	saves  []predictor.Table
	failed error
}

func (r *recordingSaver) Save(t predictor.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed != nil {
		return r.failed
	}
	r.saves = append(r.saves, t)
	return nil
}

func (r *recordingSaver) last() predictor.Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saves) == 0 {
		return nil
	}
	return r.saves[len(r.saves)-1]
}

func newPredictor(t *testing.T, depth int, table predictor.Table) *predictor.Predictor {
	t.Helper()
	p, err := predictor.New(predictor.Config{Depth: depth, Seed: 42}, table, nil)
	require.NoError(t, err)
	return p
}

func rockThenPaper() predictor.Table {
	return predictor.Table{
		predictor.NewContext([]move.Move{move.Rock}): {move.Paper: 5},
	}
}

// #endregion fakes

// #region play-round-tests

func TestPlayRound_CountersPredictionBeforeLearning(t *testing.T) {
	saver := &recordingSaver{}
	s := NewSession(newPredictor(t, 1, rockThenPaper()), saver, nil, nil)

	_, err := s.PlayRound(move.Rock, SourceManual)
	require.NoError(t, err)

	r, err := s.PlayRound(move.Paper, SourceManual)
	require.NoError(t, err)
	assert.Equal(t, move.Paper, r.Predicted)
	assert.Equal(t, move.Scissors, r.AI)
	assert.Equal(t, move.AIWins, r.Result)
	assert.Equal(t, 2, r.Number)
	assert.Equal(t, s.ID(), r.SessionID)
	assert.NotEmpty(t, r.ID)

	// rock -> paper observed once more on top of the seeded five
	assert.Equal(t, 6, saver.last()[predictor.NewContext([]move.Move{move.Rock})][move.Paper])
	assert.Len(t, saver.saves, 2)
}

func TestPlayRound_ScoreTally(t *testing.T) {
	s := NewSession(newPredictor(t, 3, nil), nil, nil, nil)
	for i := 0; i < 20; i++ {
		r, err := s.PlayRound(move.All[i%3], SourceManual)
		require.NoError(t, err)
		assert.Equal(t, move.Outcome(r.Player, r.AI), r.Result)
	}
	score := s.Score()
	assert.Equal(t, 20, score.Rounds())
}

func TestPlayRound_InvalidMove(t *testing.T) {
	saver := &recordingSaver{}
	s := NewSession(newPredictor(t, 3, nil), saver, nil, nil)
	_, err := s.PlayRound(move.Move(0), SourceManual)
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.Zero(t, s.Score().Rounds())
	assert.Empty(t, saver.saves)
}

func TestPlayRound_SaveFailureStillCounts(t *testing.T) {
	saver := &recordingSaver{failed: errors.New("disk full")}
	s := NewSession(newPredictor(t, 3, nil), saver, nil, nil)

	r, err := s.PlayRound(move.Rock, SourceManual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, r.Number)
	assert.Equal(t, 1, s.Score().Rounds())
}

func TestPlayRound_SourceDoesNotAffectLearning(t *testing.T) {
	seq := []move.Move{move.Rock, move.Rock, move.Paper, move.Scissors, move.Rock, move.Paper}

	manual := &recordingSaver{}
	sm := NewSession(newPredictor(t, 2, nil), manual, nil, nil)
	camera := &recordingSaver{}
	sc := NewSession(newPredictor(t, 2, nil), camera, nil, nil)

	for _, m := range seq {
		_, err := sm.PlayRound(m, SourceManual)
		require.NoError(t, err)
		_, err = sc.PlayRound(m, SourceCamera)
		require.NoError(t, err)
	}
	assert.Equal(t, manual.last(), camera.last())
}

// #endregion play-round-tests

// #region pending-tests

func TestConfirmPending_OneShot(t *testing.T) {
	s := NewSession(newPredictor(t, 3, nil), nil, nil, nil)
	pending := capture.NewMailbox[move.Move]()

	_, ok, err := s.ConfirmPending(pending)
	require.NoError(t, err)
	assert.False(t, ok, "nothing pending")

	pending.Offer(move.Scissors)
	r, ok, err := s.ConfirmPending(pending)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, move.Scissors, r.Player)
	assert.Equal(t, SourceCamera, r.Source)

	_, ok, err = s.ConfirmPending(pending)
	require.NoError(t, err)
	assert.False(t, ok, "confirmation is consumed")
	assert.Equal(t, 1, s.Score().Rounds())
}

// #endregion pending-tests

// #region publish-tests

func TestPlayRound_PublishesEvent(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	msgs, err := pubSub.Subscribe(t.Context(), TopicRoundPlayed)
	require.NoError(t, err)

	s := NewSession(newPredictor(t, 3, nil), nil, pubSub, nil)
	r, err := s.PlayRound(move.Paper, SourceCamera)
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		var ev RoundPlayed
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		msg.Ack()
		assert.Equal(t, r.ID, ev.RoundID)
		assert.Equal(t, s.ID(), ev.SessionID)
		assert.Equal(t, move.Paper, ev.Player)
		assert.Equal(t, r.AI, ev.AI)
		assert.Equal(t, r.Result, ev.Result)
		assert.Equal(t, SourceCamera, ev.Source)
		assert.Contains(t, string(msg.Payload), `"player":"paper"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no round event published")
	}
}

// #endregion publish-tests
