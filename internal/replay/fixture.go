package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kibbyd/rps-adaptive/internal/ledger"
	"github.com/kibbyd/rps-adaptive/internal/move"
	"github.com/kibbyd/rps-adaptive/internal/predictor"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture. The played
// sequence is Moves followed by Pattern repeated Repeat times.
type Fixture struct {
	Description  string      `json:"description"`
	Depth        int         `json:"depth"`
	Seed         int64       `json:"seed"`
	Moves        []move.Move `json:"moves,omitempty"`
	Pattern      []move.Move `json:"pattern,omitempty"`
	Repeat       int         `json:"repeat,omitempty"`
	MinAIWinRate float64     `json:"min_ai_win_rate,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.Repeat < 0 {
		return nil, fmt.Errorf("fixture %s: negative repeat %d", path, f.Repeat)
	}
	if len(f.Sequence()) == 0 {
		return nil, fmt.Errorf("fixture %s: %w", path, errors.New("no moves"))
	}
	return &f, nil
}

// Save writes the fixture as indented JSON.
func (f *Fixture) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// Sequence expands the fixture into the moves to play.
func (f *Fixture) Sequence() []move.Move {
	repeat := max(f.Repeat, 0)
	seq := make([]move.Move, 0, len(f.Moves)+len(f.Pattern)*repeat)
	seq = append(seq, f.Moves...)
	for i := 0; i < repeat; i++ {
		seq = append(seq, f.Pattern...)
	}
	return seq
}

// PredictorConfig converts the fixture settings, defaulting the depth.
func (f *Fixture) PredictorConfig() predictor.Config {
	cfg := predictor.Config{Depth: f.Depth, Seed: f.Seed}
	if cfg.Depth == 0 {
		cfg.Depth = predictor.DefaultDepth
	}
	return cfg
}

// FromRounds builds a fixture from recorded ledger rounds in play order.
func FromRounds(description string, depth int, seed int64, rounds []ledger.RoundRecord) Fixture {
	moves := make([]move.Move, len(rounds))
	for i, r := range rounds {
		moves[i] = r.Player
	}
	return Fixture{
		Description: description,
		Depth:       depth,
		Seed:        seed,
		Moves:       moves,
	}
}

// #endregion fixture-loader
