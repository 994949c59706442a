package ledger

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kibbyd/rps-adaptive/internal/game"
	"github.com/kibbyd/rps-adaptive/internal/move"
)

// #region helpers
func tempDB(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "rounds.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func round(session, id string, n int, player, predicted, ai move.Move) RoundRecord {
	return RoundRecord{
		RoundID:   id,
		SessionID: session,
		Number:    n,
		Player:    player,
		Predicted: predicted,
		AI:        ai,
		Result:    move.Outcome(player, ai),
		Source:    "manual",
		PlayedAt:  time.Date(2026, 1, 1, 0, 0, n, 0, time.UTC),
	}
}

// #endregion helpers

// #region store-tests

func TestRecordAndListRounds(t *testing.T) {
	s := tempDB(t)
	require.NoError(t, s.EnsureSession(SessionRecord{SessionID: "s1", Depth: 3, Classifier: "local"}))

	require.NoError(t, s.RecordRound(round("s1", "r2", 2, move.Paper, move.Rock, move.Paper)))
	require.NoError(t, s.RecordRound(round("s1", "r1", 1, move.Rock, move.Rock, move.Paper)))

	rounds, err := s.ListRounds("s1", 10)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, "r1", rounds[0].RoundID)
	assert.Equal(t, move.Rock, rounds[0].Player)
	assert.Equal(t, move.Paper, rounds[0].AI)
	assert.Equal(t, move.AIWins, rounds[0].Result)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC), rounds[0].PlayedAt)
	assert.Equal(t, move.Draw, rounds[1].Result)
}

func TestRecordRound_RedeliveryIgnored(t *testing.T) {
	s := tempDB(t)
	rec := round("s1", "r1", 1, move.Rock, move.Paper, move.Scissors)
	require.NoError(t, s.RecordRound(rec))
	require.NoError(t, s.RecordRound(rec))

	st, err := s.Stats("s1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Rounds)
}

func TestRecordRound_CreatesPlaceholderSession(t *testing.T) {
	s := tempDB(t)
	require.NoError(t, s.RecordRound(round("orphan", "r1", 1, move.Rock, move.Rock, move.Paper)))

	sessions, err := s.ListSessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "orphan", sessions[0].SessionID)
	assert.Equal(t, 1, sessions[0].Rounds)
	assert.Empty(t, sessions[0].Classifier)
}

func TestEnsureSession_Idempotent(t *testing.T) {
	s := tempDB(t)
	rec := SessionRecord{SessionID: "s1", Depth: 3, Classifier: "remote"}
	require.NoError(t, s.EnsureSession(rec))
	require.NoError(t, s.EnsureSession(rec))

	sessions, err := s.ListSessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 3, sessions[0].Depth)
	assert.Equal(t, "remote", sessions[0].Classifier)
	assert.Zero(t, sessions[0].Rounds)
}

func TestStats(t *testing.T) {
	s := tempDB(t)
	// AI wins twice with a correct prediction, loses once, draws once.
	require.NoError(t, s.RecordRound(round("s1", "a", 1, move.Rock, move.Rock, move.Paper)))
	require.NoError(t, s.RecordRound(round("s1", "b", 2, move.Rock, move.Rock, move.Paper)))
	require.NoError(t, s.RecordRound(round("s1", "c", 3, move.Scissors, move.Rock, move.Paper)))
	require.NoError(t, s.RecordRound(round("s1", "d", 4, move.Paper, move.Rock, move.Paper)))
	require.NoError(t, s.RecordRound(round("s2", "e", 1, move.Paper, move.Paper, move.Scissors)))

	st, err := s.Stats("s1")
	require.NoError(t, err)
	assert.Equal(t, 4, st.Rounds)
	assert.Equal(t, 2, st.AIWins)
	assert.Equal(t, 1, st.PlayerWins)
	assert.Equal(t, 1, st.Draws)
	assert.Equal(t, 2, st.Correct)
	assert.Equal(t, 2, st.PlayerMoves[move.Rock])
	assert.Equal(t, map[string]int{"manual": 4}, st.Sources)
	assert.InDelta(t, 0.5, st.AIWinRate(), 1e-9)

	all, err := s.Stats("")
	require.NoError(t, err)
	assert.Equal(t, 5, all.Rounds)
	assert.Equal(t, 3, all.AIWins)

	empty, err := s.Stats("nope")
	require.NoError(t, err)
	assert.Zero(t, empty.AIWinRate())
}

func TestNewStore_BadPath(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "missing", "dir", "x.db"), nil)
	assert.Error(t, err)
}

// #endregion store-tests

// #region subscriber-tests

func TestHandle_MalformedIsDropped(t *testing.T) {
	s := tempDB(t)
	s.Handle(message.NewMessage(watermill.NewUUID(), []byte("{")))
	s.Handle(message.NewMessage(watermill.NewUUID(), []byte(`{"round_id":"r1","session_id":"s1"}`)))

	st, err := s.Stats("")
	require.NoError(t, err)
	assert.Zero(t, st.Rounds)
}

func TestConsume_RecordsPublishedRounds(t *testing.T) {
	s := tempDB(t)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	require.NoError(t, s.Consume(t.Context(), pubSub))

	ev := game.RoundPlayed{
		RoundID:   "r1",
		SessionID: "s1",
		Number:    1,
		Player:    move.Scissors,
		Predicted: move.Paper,
		AI:        move.Scissors,
		Result:    move.Draw,
		Source:    game.SourceCamera,
		PlayedAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, pubSub.Publish(game.TopicRoundPlayed, message.NewMessage(watermill.NewUUID(), payload)))

	require.Eventually(t, func() bool {
		rounds, err := s.ListRounds("s1", 10)
		return err == nil && len(rounds) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rounds, err := s.ListRounds("s1", 10)
	require.NoError(t, err)
	assert.Equal(t, "camera", rounds[0].Source)
	assert.Equal(t, move.Draw, rounds[0].Result)
}

// #endregion subscriber-tests
