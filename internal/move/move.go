package move

import (
	"errors"
	"fmt"
	"strings"
)

// #region move
// Move is one of the three hand shapes. The zero value is not a valid move.
type Move uint8

const (
	Rock Move = iota + 1
	Paper
	Scissors
)

// All lists every move in tie-break priority order.
var All = [3]Move{Rock, Paper, Scissors}

// ErrUnknownMove is returned when text does not name a move.
var ErrUnknownMove = errors.New("unknown move")

// #endregion move

// #region names
var names = map[Move]string{
	Rock:     "rock",
	Paper:    "paper",
	Scissors: "scissors",
}

// aliases covers the short forms typed at the prompt, spanish classifier
// labels and spanish names inside comma-delimited context keys.
var aliases = map[string]Move{
	"rock":     Rock,
	"r":        Rock,
	"piedra":   Rock,
	"paper":    Paper,
	"p":        Paper,
	"papel":    Paper,
	"scissors": Scissors,
	"scissor":  Scissors,
	"s":        Scissors,
	"tijera":   Scissors,
	"tijeras":  Scissors,
}

// String returns the canonical lowercase name.
func (m Move) String() string {
	if n, ok := names[m]; ok {
		return n
	}
	return fmt.Sprintf("move(%d)", uint8(m))
}

// Valid reports whether m is one of Rock, Paper or Scissors.
func (m Move) Valid() bool {
	return m >= Rock && m <= Scissors
}

// Parse maps a name or alias (case-insensitive) to a Move.
func Parse(s string) (Move, error) {
	if m, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMove, s)
}

// MarshalText lets moves act as JSON object keys.
func (m Move) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMove, uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts anything Parse accepts.
func (m *Move) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// #endregion names

// #region rules
// Counter returns the move that beats m.
func Counter(m Move) Move {
	switch m {
	case Rock:
		return Paper
	case Paper:
		return Scissors
	default:
		return Rock
	}
}

// Beats reports whether a wins against b.
func Beats(a, b Move) bool {
	return a.Valid() && b.Valid() && Counter(b) == a
}

// Result is the outcome of a single round from the table's point of view.
type Result string

const (
	Draw       Result = "draw"
	PlayerWins Result = "player_wins"
	AIWins     Result = "ai_wins"
)

// Outcome decides a round between the player and the AI.
func Outcome(player, ai Move) Result {
	switch {
	case player == ai:
		return Draw
	case Beats(player, ai):
		return PlayerWins
	default:
		return AIWins
	}
}

// #endregion rules
