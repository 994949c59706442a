package replay

import (
	"errors"
	"testing"

	"github.com/kibbyd/rps-adaptive/internal/game"
	"github.com/kibbyd/rps-adaptive/internal/move"
	"github.com/kibbyd/rps-adaptive/internal/predictor"
)

// #region harness-tests

func TestReplay_Deterministic(t *testing.T) {
	moves := []move.Move{
		move.Rock, move.Paper, move.Paper, move.Scissors, move.Rock,
		move.Rock, move.Scissors, move.Paper, move.Rock, move.Paper,
	}
	cfg := predictor.Config{Depth: 2, Seed: 1234}

	a, _, err := Replay(moves, cfg)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	b, _, err := Replay(moves, cfg)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("round %d differs: %+v vs %+v", i+1, a[i], b[i])
		}
	}
}

func TestReplay_AIAlwaysCountersPrediction(t *testing.T) {
	moves := make([]move.Move, 30)
	for i := range moves {
		moves[i] = move.All[(i*i)%3]
	}
	results, _, err := Replay(moves, predictor.Config{Depth: 1, Seed: 3})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for _, r := range results {
		if r.AI != move.Counter(r.Predicted) {
			t.Fatalf("round %d: ai %s does not counter prediction %s", r.Round, r.AI, r.Predicted)
		}
		if r.Outcome != move.Outcome(r.Player, r.AI) {
			t.Fatalf("round %d: outcome %s inconsistent", r.Round, r.Outcome)
		}
	}
}

func TestReplay_InvalidInput(t *testing.T) {
	if _, _, err := Replay([]move.Move{move.Rock}, predictor.Config{Depth: 0}); !errors.Is(err, predictor.ErrInvalidDepth) {
		t.Errorf("expected ErrInvalidDepth, got %v", err)
	}
	if _, _, err := Replay([]move.Move{move.Rock, move.Move(9)}, predictor.Config{Depth: 1, Seed: 1}); !errors.Is(err, game.ErrInvalidMove) {
		t.Errorf("expected ErrInvalidMove, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{Round: 1, Player: move.Rock, Predicted: move.Rock, AI: move.Paper, Outcome: move.AIWins},
		{Round: 2, Player: move.Rock, Predicted: move.Paper, AI: move.Scissors, Outcome: move.PlayerWins},
		{Round: 3, Player: move.Paper, Predicted: move.Rock, AI: move.Paper, Outcome: move.Draw},
		{Round: 4, Player: move.Paper, Predicted: move.Paper, AI: move.Scissors, Outcome: move.AIWins},
	}
	s := Summarize(results, nil)
	if s.TotalRounds != 4 || s.AIWins != 2 || s.PlayerWins != 1 || s.Draws != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Correct != 2 {
		t.Errorf("expected 2 correct predictions, got %d", s.Correct)
	}
	if s.AIWinRate != 0.5 {
		t.Errorf("expected win rate 0.5, got %f", s.AIWinRate)
	}

	if empty := Summarize(nil, nil); empty.AIWinRate != 0 {
		t.Errorf("expected 0 win rate on empty run, got %f", empty.AIWinRate)
	}
}

// #endregion harness-tests
