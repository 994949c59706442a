package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/kibbyd/rps-adaptive/internal/ledger"
	"github.com/kibbyd/rps-adaptive/internal/move"
	"github.com/kibbyd/rps-adaptive/internal/predictor"
	"github.com/kibbyd/rps-adaptive/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	dbPath := flag.String("db", "", "path to rps_rounds.db (ledger mode)")
	session := flag.String("session", "", "session id to replay (ledger mode)")
	depth := flag.Int("depth", predictor.DefaultDepth, "memory depth for ledger mode")
	seed := flag.Int64("seed", 1, "predictor seed for ledger mode")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	fixtureMode := *fixturePath != ""
	ledgerMode := *dbPath != "" && *session != ""
	if fixtureMode == ledgerMode {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--json]")
		fmt.Fprintln(os.Stderr, "       replay --db path/to/rps_rounds.db --session id [--depth N] [--seed N] [--json]")
		os.Exit(2)
	}

	var exitCode int
	if fixtureMode {
		exitCode = runFixtureMode(*fixturePath, *jsonOut)
	} else {
		exitCode = runLedgerMode(*dbPath, *session, predictor.Config{Depth: *depth, Seed: *seed}, *jsonOut)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string, jsonOut bool) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	summary, results, err := replay.Run(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	if jsonOut {
		if err := printJSON(report{Description: f.Description, Summary: summary, Rounds: results}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	} else {
		if f.Description != "" {
			fmt.Println(f.Description)
		}
		printRounds(results, nil)
		printSummary(summary)
	}

	if f.MinAIWinRate > 0 && summary.AIWinRate < f.MinAIWinRate {
		color.New(color.FgRed).Fprintf(os.Stderr, "ai win rate %.2f below fixture floor %.2f\n", summary.AIWinRate, f.MinAIWinRate)
		return 1
	}
	return 0
}

// #endregion fixture-mode

// #region ledger-mode

// runLedgerMode replays a recorded session's player moves through a fresh
// predictor and compares the replayed outcomes with the recorded ones.
func runLedgerMode(dbPath, sessionID string, cfg predictor.Config, jsonOut bool) int {
	store, err := ledger.NewStore(dbPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	rounds, err := store.ListRounds(sessionID, -1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list rounds: %v\n", err)
		return 2
	}
	if len(rounds) == 0 {
		fmt.Fprintf(os.Stderr, "no rounds recorded for session %s\n", sessionID)
		return 2
	}

	f := replay.FromRounds("session "+sessionID, cfg.Depth, cfg.Seed, rounds)
	summary, results, err := replay.Run(&f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	recorded := make([]move.Result, len(rounds))
	for i, r := range rounds {
		recorded[i] = r.Result
	}

	if jsonOut {
		if err := printJSON(report{Description: f.Description, Summary: summary, Rounds: results, Recorded: recorded}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		return 0
	}
	printRounds(results, recorded)
	printSummary(summary)
	return 0
}

// #endregion ledger-mode

// #region output

type report struct {
	Description string          `json:"description,omitempty"`
	Summary     replay.Summary  `json:"summary"`
	Rounds      []replay.Result `json:"rounds"`
	Recorded    []move.Result   `json:"recorded,omitempty"`
}

// printRounds outputs a per-round table. recorded may be nil.
func printRounds(results []replay.Result, recorded []move.Result) {
	if recorded != nil {
		fmt.Printf("%5s| %-9s| %-9s| %-9s| %-12s| %s\n", "Round", "Player", "Predicted", "AI", "Replayed", "Recorded")
		fmt.Printf("%5s+%-10s+%-10s+%-10s+%-13s+%s\n", "-----", "----------", "----------", "----------", "-------------", "------------")
	} else {
		fmt.Printf("%5s| %-9s| %-9s| %-9s| %s\n", "Round", "Player", "Predicted", "AI", "Outcome")
		fmt.Printf("%5s+%-10s+%-10s+%-10s+%s\n", "-----", "----------", "----------", "----------", "------------")
	}
	for i, r := range results {
		if recorded != nil && i < len(recorded) {
			fmt.Printf("%5d| %-9s| %-9s| %-9s| %-12s| %s\n", r.Round, r.Player, r.Predicted, r.AI, r.Outcome, recorded[i])
			continue
		}
		fmt.Printf("%5d| %-9s| %-9s| %-9s| %s\n", r.Round, r.Player, r.Predicted, r.AI, r.Outcome)
	}
}

func printSummary(s replay.Summary) {
	fmt.Printf("\nSummary: %d rounds, AI %d, player %d, draws %d, %d correct predictions, AI win rate %.2f\n",
		s.TotalRounds, s.AIWins, s.PlayerWins, s.Draws, s.Correct, s.AIWinRate)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output
