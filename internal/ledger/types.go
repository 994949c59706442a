package ledger

import (
	"time"

	"github.com/kibbyd/rps-adaptive/internal/move"
)

// #region session-record
// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	SessionID  string
	StartedAt  time.Time
	Depth      int
	Classifier string // "local" | "remote" | "" when camera is off
	Rounds     int    // filled by ListSessions
}
// #endregion session-record

// #region round-record
// RoundRecord is one row of the rounds table.
type RoundRecord struct {
	RoundID   string
	SessionID string
	Number    int
	Player    move.Move
	Predicted move.Move
	AI        move.Move
	Result    move.Result
	Source    string
	PlayedAt  time.Time
}
// #endregion round-record

// #region stats
// Stats aggregates rounds for one session or for the whole ledger.
type Stats struct {
	Rounds      int               `json:"rounds"`
	AIWins      int               `json:"ai_wins"`
	PlayerWins  int               `json:"player_wins"`
	Draws       int               `json:"draws"`
	PlayerMoves map[move.Move]int `json:"player_moves"`
	Sources     map[string]int    `json:"sources"`
	Correct     int               `json:"correct_predictions"`
}

// AIWinRate is AI wins over all rounds, 0 when empty.
func (s Stats) AIWinRate() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return float64(s.AIWins) / float64(s.Rounds)
}
// #endregion stats
