package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kibbyd/rps-adaptive/internal/ledger"
	"github.com/kibbyd/rps-adaptive/internal/predictor"
	"github.com/kibbyd/rps-adaptive/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to rps_rounds.db")
	session := flag.String("session", "", "session id to export (default: most recent)")
	depth := flag.Int("depth", 0, "memory depth to record (default: the session's depth)")
	seed := flag.Int64("seed", 1, "predictor seed to record")
	minRate := flag.Float64("min-ai-win-rate", 0, "optional AI win-rate floor to record")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/rps_rounds.db --out path/to/fixture.json [--session id] [--depth N] [--seed N]")
		os.Exit(2)
	}

	if err := run(*dbPath, *session, *depth, *seed, *minRate, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, sessionID string, depth int, seed int64, minRate float64, outPath string) error {
	store, err := ledger.NewStore(dbPath, nil)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	sessions, err := store.ListSessions(-1)
	if err != nil {
		return err
	}
	var chosen *ledger.SessionRecord
	for i := range sessions {
		if sessionID == "" || sessions[i].SessionID == sessionID {
			chosen = &sessions[i]
			break
		}
	}
	if chosen == nil {
		if sessionID == "" {
			return fmt.Errorf("no sessions in %s", dbPath)
		}
		return fmt.Errorf("session %s not found", sessionID)
	}

	rounds, err := store.ListRounds(chosen.SessionID, -1)
	if err != nil {
		return err
	}
	if len(rounds) == 0 {
		return fmt.Errorf("session %s has no rounds", chosen.SessionID)
	}

	if depth == 0 {
		depth = chosen.Depth
	}
	if depth == 0 {
		depth = predictor.DefaultDepth
	}

	f := replay.FromRounds(
		fmt.Sprintf("exported from session %s (%d rounds)", chosen.SessionID, len(rounds)),
		depth, seed, rounds,
	)
	f.MinAIWinRate = minRate
	if err := f.Save(outPath); err != nil {
		return err
	}

	fmt.Printf("Exported %d rounds from session %s to %s\n", len(rounds), chosen.SessionID, outPath)
	return nil
}

// #endregion extract
