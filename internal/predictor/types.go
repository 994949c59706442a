package predictor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kibbyd/rps-adaptive/internal/move"
)

// #region config
// Config holds the predictor's tunables.
type Config struct {
	Depth int   // memory depth k: how many trailing moves form a context
	Seed  int64 // RNG seed for the no-data fallback (0 => time-based)
}

// DefaultDepth matches the depth the persisted models were trained with.
const DefaultDepth = 3

// ErrInvalidDepth is returned for a non-positive memory depth.
var ErrInvalidDepth = errors.New("memory depth must be > 0")

// DefaultConfig returns depth 3 with a time-based seed.
func DefaultConfig() Config {
	return Config{Depth: DefaultDepth}
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.Depth <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDepth, c.Depth)
	}
	return nil
}

// #endregion config

// #region context
// Context is a fixed-length run of moves encoded as comma-delimited names,
// e.g. "rock,rock,paper". The encoding doubles as the persisted key.
type Context string

const contextSep = ","

// NewContext encodes moves as a Context.
func NewContext(moves []move.Move) Context {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = m.String()
	}
	return Context(strings.Join(parts, contextSep))
}

// Moves decodes the context back into moves.
func (c Context) Moves() ([]move.Move, error) {
	if c == "" {
		return nil, fmt.Errorf("empty context")
	}
	parts := strings.Split(string(c), contextSep)
	out := make([]move.Move, len(parts))
	for i, p := range parts {
		m, err := move.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("context %q: %w", string(c), err)
		}
		out[i] = m
	}
	return out, nil
}

// Len returns the number of moves in the context without validating them.
func (c Context) Len() int {
	if c == "" {
		return 0
	}
	return strings.Count(string(c), contextSep) + 1
}

// #endregion context

// #region table
// Counts maps a next move to how often it followed a context.
type Counts map[move.Move]int

// Total sums all counts.
func (c Counts) Total() int {
	var n int
	for _, v := range c {
		n += v
	}
	return n
}

// Table is the pattern table: context -> next-move counts. A context that is
// absent means "no data", not a uniform distribution.
type Table map[Context]Counts

// Learn increments table[ctx][next], creating the entry if needed. It reports
// false and changes nothing when ctx does not decode or next is invalid.
func (t Table) Learn(ctx Context, next move.Move) bool {
	if !next.Valid() {
		return false
	}
	if _, err := ctx.Moves(); err != nil {
		return false
	}
	counts, ok := t[ctx]
	if !ok {
		counts = make(Counts, len(move.All))
		t[ctx] = counts
	}
	counts[next]++
	return true
}

// Clone returns a deep copy.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for ctx, counts := range t {
		cc := make(Counts, len(counts))
		for m, n := range counts {
			cc[m] = n
		}
		out[ctx] = cc
	}
	return out
}

// Depth reports the common context length. ok is false for an empty table.
func (t Table) Depth() (depth int, ok bool) {
	for ctx := range t {
		return ctx.Len(), true
	}
	return 0, false
}

// Validate checks that every context decodes, all contexts share one length,
// every next move is valid and every count is non-negative.
func (t Table) Validate() error {
	depth := -1
	for ctx, counts := range t {
		moves, err := ctx.Moves()
		if err != nil {
			return err
		}
		if depth == -1 {
			depth = len(moves)
		} else if len(moves) != depth {
			return fmt.Errorf("context %q has length %d, want %d", string(ctx), len(moves), depth)
		}
		for m, n := range counts {
			if !m.Valid() {
				return fmt.Errorf("context %q: %w", string(ctx), move.ErrUnknownMove)
			}
			if n < 0 {
				return fmt.Errorf("context %q: negative count %d for %s", string(ctx), n, m)
			}
		}
	}
	return nil
}

// #endregion table
