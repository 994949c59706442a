package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"

	"github.com/kibbyd/rps-adaptive/internal/config"
	"github.com/kibbyd/rps-adaptive/internal/health"
	"github.com/kibbyd/rps-adaptive/internal/ledger"
	"github.com/kibbyd/rps-adaptive/internal/modelstore"
	"github.com/kibbyd/rps-adaptive/internal/move"
	"github.com/kibbyd/rps-adaptive/internal/predictor"
)

// #region main

func main() {
	cfg := config.Load()
	modelPath := flag.String("model", cfg.ModelPath, "path to the pattern model JSON")
	dbPath := flag.String("db", "", "path to the round ledger (e.g. "+cfg.DBPath+")")
	session := flag.String("session", "", "show one session's rounds (needs --db)")
	last := flag.Int("last", 20, "show N most recent sessions or rounds")
	top := flag.Int("top", 10, "show the N most observed contexts")
	healthAddr := flag.String("health", "", "query a running game's health server at addr")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *session != "" && *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect [--model patrones.json] [--db rps_rounds.db [--session id]] [--health addr] [--last N] [--top N] [--json]")
		os.Exit(2)
	}

	var err error
	switch {
	case *healthAddr != "":
		err = runHealthMode(*healthAddr, *jsonOut)
	case *session != "":
		err = runSessionMode(*dbPath, *session, *last, *jsonOut)
	case *dbPath != "":
		err = runLedgerMode(*dbPath, *last, *jsonOut)
	default:
		err = runModelMode(*modelPath, *top, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region model-mode

type contextRow struct {
	Context   string            `json:"context"`
	Total     int               `json:"total"`
	Counts    map[move.Move]int `json:"counts"`
	Predicted move.Move         `json:"predicted"`
	Counter   move.Move         `json:"counter"`
}

type modelOutput struct {
	Path     string       `json:"path"`
	Depth    int          `json:"depth"`
	Contexts int          `json:"contexts"`
	Observed int          `json:"observed"`
	Top      []contextRow `json:"top"`
}

func runModelMode(path string, top int, jsonOut bool) error {
	table, err := modelstore.New(path, nil).LoadStrict()
	if err != nil {
		return err
	}
	out := summarizeTable(path, table, top)

	if jsonOut {
		return printJSON(out)
	}
	if out.Contexts == 0 {
		fmt.Printf("%s: empty model (nothing learned yet)\n", path)
		return nil
	}

	bold := color.New(color.Bold)
	bold.Printf("Model %s\n", out.Path)
	fmt.Printf("  depth %d, %d contexts, %d observations\n\n", out.Depth, out.Contexts, out.Observed)
	fmt.Printf("%-28s  %6s  %6s  %6s  %6s  %-9s  %s\n", "Context", "Total", "Rock", "Paper", "Sciss", "Predicts", "Counter")
	fmt.Printf("%-28s+-%6s+-%6s+-%6s+-%6s+-%-9s+-%s\n",
		"----------------------------", "------", "------", "------", "------", "---------", "--------")
	for _, r := range out.Top {
		fmt.Printf("%-28s  %6d  %6d  %6d  %6d  %-9s  %s\n",
			r.Context, r.Total, r.Counts[move.Rock], r.Counts[move.Paper], r.Counts[move.Scissors], r.Predicted, r.Counter)
	}
	return nil
}

// summarizeTable orders contexts by observations, ties by context name.
func summarizeTable(path string, table predictor.Table, top int) modelOutput {
	out := modelOutput{Path: path, Contexts: len(table)}
	out.Depth, _ = table.Depth()

	rows := make([]contextRow, 0, len(table))
	for ctx, counts := range table {
		total := counts.Total()
		out.Observed += total
		best := move.Rock
		for _, m := range move.All {
			if counts[m] > counts[best] {
				best = m
			}
		}
		rows = append(rows, contextRow{
			Context:   string(ctx),
			Total:     total,
			Counts:    counts,
			Predicted: best,
			Counter:   move.Counter(best),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Context < rows[j].Context
	})
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}
	out.Top = rows
	return out
}

// #endregion model-mode

// #region ledger-mode

type sessionRow struct {
	SessionID  string `json:"session_id"`
	StartedAt  string `json:"started_at"`
	Depth      int    `json:"depth"`
	Classifier string `json:"classifier,omitempty"`
	Rounds     int    `json:"rounds"`
}

type ledgerOutput struct {
	Totals   ledger.Stats `json:"totals"`
	Sessions []sessionRow `json:"sessions"`
}

func runLedgerMode(dbPath string, last int, jsonOut bool) error {
	store, err := ledger.NewStore(dbPath, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	totals, err := store.Stats("")
	if err != nil {
		return err
	}
	sessions, err := store.ListSessions(last)
	if err != nil {
		return err
	}
	out := ledgerOutput{Totals: totals, Sessions: make([]sessionRow, len(sessions))}
	for i, s := range sessions {
		out.Sessions[i] = sessionRow{
			SessionID:  s.SessionID,
			StartedAt:  s.StartedAt.Format(time.RFC3339),
			Depth:      s.Depth,
			Classifier: s.Classifier,
			Rounds:     s.Rounds,
		}
	}

	if jsonOut {
		return printJSON(out)
	}
	printStats(totals)
	if len(out.Sessions) == 0 {
		fmt.Println("\nno sessions recorded")
		return nil
	}
	fmt.Printf("\n%-10s  %-20s  %5s  %-10s  %s\n", "Session", "Started", "Depth", "Camera", "Rounds")
	fmt.Printf("%-10s+-%-20s+-%5s+-%-10s+-%s\n", "----------", "--------------------", "-----", "----------", "------")
	for _, s := range out.Sessions {
		camera := s.Classifier
		if camera == "" {
			camera = "off"
		}
		fmt.Printf("%-10s  %-20s  %5d  %-10s  %d\n", shortID(s.SessionID), s.StartedAt, s.Depth, camera, s.Rounds)
	}
	return nil
}

// #endregion ledger-mode

// #region session-mode

type roundRow struct {
	Number    int         `json:"number"`
	Player    move.Move   `json:"player"`
	Predicted move.Move   `json:"predicted"`
	AI        move.Move   `json:"ai"`
	Result    move.Result `json:"result"`
	Source    string      `json:"source"`
	PlayedAt  string      `json:"played_at"`
}

type sessionOutput struct {
	SessionID string       `json:"session_id"`
	Stats     ledger.Stats `json:"stats"`
	Rounds    []roundRow   `json:"rounds"`
}

func runSessionMode(dbPath, sessionID string, last int, jsonOut bool) error {
	store, err := ledger.NewStore(dbPath, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(sessionID)
	if err != nil {
		return err
	}
	if stats.Rounds == 0 {
		return fmt.Errorf("session %s has no rounds", sessionID)
	}
	rounds, err := store.ListRounds(sessionID, last)
	if err != nil {
		return err
	}
	out := sessionOutput{SessionID: sessionID, Stats: stats, Rounds: make([]roundRow, len(rounds))}
	for i, r := range rounds {
		out.Rounds[i] = roundRow{
			Number:    r.Number,
			Player:    r.Player,
			Predicted: r.Predicted,
			AI:        r.AI,
			Result:    r.Result,
			Source:    r.Source,
			PlayedAt:  r.PlayedAt.Format(time.RFC3339),
		}
	}

	if jsonOut {
		return printJSON(out)
	}
	fmt.Printf("Session:    %s\n", sessionID)
	printStats(stats)
	fmt.Printf("\n%5s  %-9s  %-9s  %-9s  %-12s  %s\n", "Round", "Player", "Predicted", "AI", "Result", "Source")
	fmt.Printf("%5s+-%-9s+-%-9s+-%-9s+-%-12s+-%s\n", "-----", "---------", "---------", "---------", "------------", "------")
	for _, r := range out.Rounds {
		fmt.Printf("%5d  %-9s  %-9s  %-9s  %-12s  %s\n", r.Number, r.Player, r.Predicted, r.AI, resultColor(r.Result).Sprint(r.Result), r.Source)
	}
	return nil
}

// #endregion session-mode

// #region health-mode

type healthOutput struct {
	Addr     string            `json:"addr"`
	Services map[string]string `json:"services"`
}

func runHealthMode(addr string, jsonOut bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	out := healthOutput{Addr: addr, Services: make(map[string]string)}
	for _, svc := range []string{"", health.ServicePredictor, health.ServiceVision} {
		status, err := health.Check(ctx, addr, svc)
		if err != nil {
			return err
		}
		name := svc
		if name == "" {
			name = "overall"
		}
		out.Services[name] = status.String()
	}

	if jsonOut {
		return printJSON(out)
	}
	for _, name := range []string{"overall", health.ServicePredictor, health.ServiceVision} {
		c := color.New(color.FgGreen)
		if out.Services[name] != "SERVING" {
			c = color.New(color.FgRed)
		}
		fmt.Printf("  %-10s ", name)
		c.Println(out.Services[name])
	}
	return nil
}

// #endregion health-mode

// #region output

func printStats(s ledger.Stats) {
	fmt.Printf("Rounds:     %d\n", s.Rounds)
	fmt.Printf("AI wins:    %d (%.1f%%)\n", s.AIWins, 100*s.AIWinRate())
	fmt.Printf("You win:    %d\n", s.PlayerWins)
	fmt.Printf("Draws:      %d\n", s.Draws)
	fmt.Printf("Predicted:  %d correct\n", s.Correct)
	fmt.Printf("Moves:      rock %d, paper %d, scissors %d\n",
		s.PlayerMoves[move.Rock], s.PlayerMoves[move.Paper], s.PlayerMoves[move.Scissors])
}

func resultColor(r move.Result) *color.Color {
	switch r {
	case move.AIWins:
		return color.New(color.FgRed)
	case move.PlayerWins:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgYellow)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
