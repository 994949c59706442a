package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/kibbyd/rps-adaptive/internal/move"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id  TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	depth       INTEGER NOT NULL,
	classifier  TEXT
);

CREATE TABLE IF NOT EXISTS rounds (
	round_id    TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	number      INTEGER NOT NULL,
	player      TEXT NOT NULL,
	predicted   TEXT NOT NULL,
	ai          TEXT NOT NULL,
	result      TEXT NOT NULL,
	source      TEXT NOT NULL,
	played_at   TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE INDEX IF NOT EXISTS rounds_session ON rounds(session_id, number);
`
// #endregion schema

// #region store-struct
// Store is the SQLite round ledger. It is an audit trail only; the predictor
// never reads from it.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// single writer: the subscriber goroutine and the CLI share one connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, log: logger}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region ensure-session
// EnsureSession inserts the session row if it does not exist yet.
func (s *Store) EnsureSession(rec SessionRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, started_at, depth, classifier)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		rec.SessionID, rec.StartedAt.Format(time.RFC3339Nano), rec.Depth, nullIfEmpty(rec.Classifier),
	)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}
// #endregion ensure-session

// #region record-round
// RecordRound appends a round. Redelivered rounds (same RoundID) are ignored.
// A round for an unknown session creates a placeholder session row.
func (s *Store) RecordRound(rec RoundRecord) error {
	if rec.PlayedAt.IsZero() {
		rec.PlayedAt = time.Now().UTC()
	}
	played := rec.PlayedAt.Format(time.RFC3339Nano)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (session_id, started_at, depth) VALUES (?, ?, 0)
		 ON CONFLICT(session_id) DO NOTHING`,
		rec.SessionID, played,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO rounds (round_id, session_id, number, player, predicted, ai, result, source, played_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(round_id) DO NOTHING`,
		rec.RoundID, rec.SessionID, rec.Number,
		rec.Player.String(), rec.Predicted.String(), rec.AI.String(),
		string(rec.Result), rec.Source, played,
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
// #endregion record-round

// #region list-rounds
// ListRounds returns up to limit rounds of a session in play order. An empty
// sessionID lists the most recent rounds across all sessions.
func (s *Store) ListRounds(sessionID string, limit int) ([]RoundRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if sessionID == "" {
		rows, err = s.db.Query(
			`SELECT round_id, session_id, number, player, predicted, ai, result, source, played_at
			 FROM rounds ORDER BY played_at DESC LIMIT ?`, limit,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT round_id, session_id, number, player, predicted, ai, result, source, played_at
			 FROM rounds WHERE session_id = ? ORDER BY number ASC LIMIT ?`, sessionID, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var records []RoundRecord
	for rows.Next() {
		var rec RoundRecord
		var player, predicted, ai, result, played string
		if err := rows.Scan(&rec.RoundID, &rec.SessionID, &rec.Number,
			&player, &predicted, &ai, &result, &rec.Source, &played); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if rec.Player, err = move.Parse(player); err != nil {
			return nil, fmt.Errorf("round %s: %w", rec.RoundID, err)
		}
		if rec.Predicted, err = move.Parse(predicted); err != nil {
			return nil, fmt.Errorf("round %s: %w", rec.RoundID, err)
		}
		if rec.AI, err = move.Parse(ai); err != nil {
			return nil, fmt.Errorf("round %s: %w", rec.RoundID, err)
		}
		rec.Result = move.Result(result)
		rec.PlayedAt, _ = time.Parse(time.RFC3339Nano, played)
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list-rounds

// #region list-sessions
// ListSessions returns the most recent sessions with their round counts.
func (s *Store) ListSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(
		`SELECT s.session_id, s.started_at, s.depth, s.classifier, COUNT(r.round_id)
		 FROM sessions s LEFT JOIN rounds r ON r.session_id = s.session_id
		 GROUP BY s.session_id
		 ORDER BY s.started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var started string
		var classifier sql.NullString
		if err := rows.Scan(&rec.SessionID, &started, &rec.Depth, &classifier, &rec.Rounds); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rec.Classifier = classifier.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list-sessions

// #region stats
// Stats aggregates rounds. An empty sessionID covers the whole ledger.
func (s *Store) Stats(sessionID string) (Stats, error) {
	st := Stats{PlayerMoves: make(map[move.Move]int), Sources: make(map[string]int)}

	rows, err := s.db.Query(
		`SELECT player, result, source, player = predicted, COUNT(*)
		 FROM rounds WHERE (? = '' OR session_id = ?)
		 GROUP BY player, result, source, player = predicted`, sessionID, sessionID,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var player, result, source string
		var correct bool
		var n int
		if err := rows.Scan(&player, &result, &source, &correct, &n); err != nil {
			return Stats{}, fmt.Errorf("scan row: %w", err)
		}
		m, err := move.Parse(player)
		if err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
		st.Rounds += n
		st.PlayerMoves[m] += n
		st.Sources[source] += n
		if correct {
			st.Correct += n
		}
		switch move.Result(result) {
		case move.AIWins:
			st.AIWins += n
		case move.PlayerWins:
			st.PlayerWins += n
		default:
			st.Draws += n
		}
	}
	return st, rows.Err()
}
// #endregion stats

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
