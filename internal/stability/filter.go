package stability

import (
	"fmt"
	"time"

	"github.com/kibbyd/rps-adaptive/internal/move"
)

// #region config
// Config holds the debounce thresholds.
type Config struct {
	StableRequired int           // consecutive identical reads needed to confirm
	Cooldown       time.Duration // minimum gap between two confirmations
}

// DefaultConfig returns 6 frames and a one second cooldown.
func DefaultConfig() Config {
	return Config{
		StableRequired: 6,
		Cooldown:       time.Second,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if c.StableRequired <= 0 {
		return fmt.Errorf("StableRequired must be > 0, got %d", c.StableRequired)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("Cooldown must be >= 0, got %s", c.Cooldown)
	}
	return nil
}

// #endregion config

// #region sample
// Sample is one per-frame classification. Known is false for "no hand" or an
// inconclusive read.
type Sample struct {
	Move  move.Move
	Known bool
	At    time.Time
}

// Unknown builds a sample with no gesture.
func Unknown(at time.Time) Sample {
	return Sample{At: at}
}

// Seen builds a sample for a recognized gesture.
func Seen(m move.Move, at time.Time) Sample {
	return Sample{Move: m, Known: true, At: at}
}

// State is a snapshot of the filter's fields.
type State struct {
	LastSymbol       move.Move // zero when no run is in progress
	ConsecutiveCount int
	LastConfirmed    time.Time
}

// #endregion sample

// #region filter
// Filter turns a noisy per-frame stream into one-shot confirmations. It is
// not safe for concurrent use; the capture goroutine owns it.
type Filter struct {
	cfg   Config
	state State
}

// New creates a Filter.
func New(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Observe feeds one sample. It returns the confirmed move and true when the
// current run has lasted StableRequired samples and more than Cooldown has
// passed since the previous confirmation. A confirmation restarts the count.
func (f *Filter) Observe(s Sample) (move.Move, bool) {
	st := &f.state
	switch {
	case !s.Known:
		// a dropout ends the run outright
		st.LastSymbol = 0
		st.ConsecutiveCount = 0
		return 0, false
	case s.Move == st.LastSymbol:
		st.ConsecutiveCount++
	default:
		st.LastSymbol = s.Move
		st.ConsecutiveCount = 1
	}

	if st.ConsecutiveCount >= f.cfg.StableRequired && s.At.Sub(st.LastConfirmed) > f.cfg.Cooldown {
		st.LastConfirmed = s.At
		st.ConsecutiveCount = 0
		return s.Move, true
	}
	return 0, false
}

// State returns a copy of the current fields.
func (f *Filter) State() State {
	return f.state
}

// Reset clears the run and the cooldown.
func (f *Filter) Reset() {
	f.state = State{}
}

// #endregion filter
