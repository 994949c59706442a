package replay

import (
	"fmt"

	"github.com/kibbyd/rps-adaptive/internal/game"
	"github.com/kibbyd/rps-adaptive/internal/move"
	"github.com/kibbyd/rps-adaptive/internal/predictor"
)

// #region types
// Result captures one replayed round.
type Result struct {
	Round     int         `json:"round"`
	Player    move.Move   `json:"player"`
	Predicted move.Move   `json:"predicted"`
	AI        move.Move   `json:"ai"`
	Outcome   move.Result `json:"outcome"`
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalRounds int             `json:"total_rounds"`
	AIWins      int             `json:"ai_wins"`
	PlayerWins  int             `json:"player_wins"`
	Draws       int             `json:"draws"`
	Correct     int             `json:"correct_predictions"`
	AIWinRate   float64         `json:"ai_win_rate"`
	FinalTable  predictor.Table `json:"-"`
}

// #endregion types

// #region replay
// Replay plays moves through a fresh in-memory session: no model file, no
// events. With a fixed seed the run is deterministic.
func Replay(moves []move.Move, cfg predictor.Config) ([]Result, predictor.Table, error) {
	p, err := predictor.New(cfg, nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("new predictor: %w", err)
	}
	session := game.NewSession(p, nil, nil, nil)

	results := make([]Result, 0, len(moves))
	for i, m := range moves {
		r, err := session.PlayRound(m, game.SourceManual)
		if err != nil {
			return nil, nil, fmt.Errorf("round %d: %w", i+1, err)
		}
		results = append(results, Result{
			Round:     r.Number,
			Player:    r.Player,
			Predicted: r.Predicted,
			AI:        r.AI,
			Outcome:   r.Result,
		})
	}
	return results, p.Snapshot(), nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, final predictor.Table) Summary {
	s := Summary{
		TotalRounds: len(results),
		FinalTable:  final,
	}
	for _, r := range results {
		switch r.Outcome {
		case move.AIWins:
			s.AIWins++
		case move.PlayerWins:
			s.PlayerWins++
		default:
			s.Draws++
		}
		if r.Player == r.Predicted {
			s.Correct++
		}
	}
	if s.TotalRounds > 0 {
		s.AIWinRate = float64(s.AIWins) / float64(s.TotalRounds)
	}
	return s
}

// Run replays a fixture and summarizes it.
func Run(f *Fixture) (Summary, []Result, error) {
	results, final, err := Replay(f.Sequence(), f.PredictorConfig())
	if err != nil {
		return Summary{}, nil, err
	}
	return Summarize(results, final), results, nil
}

// #endregion replay
