package game

import (
	"errors"
	"time"

	"github.com/kibbyd/rps-adaptive/internal/move"
	"github.com/kibbyd/rps-adaptive/internal/predictor"
)

// #region source
// Source records how the player's move reached the table. Learning does not
// depend on it.
type Source string

const (
	SourceManual Source = "manual"
	SourceCamera Source = "camera"
)

// #endregion source

// #region round
// Round is one resolved round.
type Round struct {
	ID        string
	SessionID string
	Number    int
	Player    move.Move
	Predicted move.Move // what the AI expected the player to throw
	AI        move.Move
	Result    move.Result
	Source    Source
	PlayedAt  time.Time
}

// Score is the running tally for a session.
type Score struct {
	AI     int
	Player int
	Draws  int
}

// Rounds returns the number of rounds tallied.
func (s Score) Rounds() int {
	return s.AI + s.Player + s.Draws
}

// #endregion round

// #region events
// TopicRoundPlayed carries RoundPlayed events.
const TopicRoundPlayed = "rounds.played"

// RoundPlayed is the JSON payload published after every round.
type RoundPlayed struct {
	RoundID   string      `json:"round_id"`
	SessionID string      `json:"session_id"`
	Number    int         `json:"number"`
	Player    move.Move   `json:"player"`
	Predicted move.Move   `json:"predicted"`
	AI        move.Move   `json:"ai"`
	Result    move.Result `json:"result"`
	Source    Source      `json:"source"`
	PlayedAt  time.Time   `json:"played_at"`
}

func eventFor(r Round) RoundPlayed {
	return RoundPlayed{
		RoundID:   r.ID,
		SessionID: r.SessionID,
		Number:    r.Number,
		Player:    r.Player,
		Predicted: r.Predicted,
		AI:        r.AI,
		Result:    r.Result,
		Source:    r.Source,
		PlayedAt:  r.PlayedAt,
	}
}

// #endregion events

// #region collaborators
// ModelSaver persists the predictor's table after each learning step.
// *modelstore.Store satisfies it.
type ModelSaver interface {
	Save(table predictor.Table) error
}

// ErrInvalidMove is returned for a move outside rock/paper/scissors.
var ErrInvalidMove = errors.New("invalid move")

// #endregion collaborators
