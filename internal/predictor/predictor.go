package predictor

import (
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kibbyd/rps-adaptive/internal/move"
)

// #region predictor
// Predictor learns the player's move-sequence statistics online and predicts
// the next move from the trailing context. It exclusively owns the history
// and the pattern table.
type Predictor struct {
	mu      sync.Mutex
	depth   int
	history []move.Move // capped at depth+1
	table   Table
	rng     *rand.Rand
	log     *zap.Logger
}

// New creates a Predictor seeded with table (may be nil). A table whose
// contexts do not match cfg.Depth is discarded.
func New(cfg Config, table Table, logger *zap.Logger) (*Predictor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == nil {
		table = make(Table)
	}
	if d, ok := table.Depth(); ok && d != cfg.Depth {
		logger.Warn("discarding pattern table with mismatched depth",
			zap.Int("table_depth", d), zap.Int("depth", cfg.Depth), zap.Int("contexts", len(table)))
		table = make(Table)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Predictor{
		depth:   cfg.Depth,
		history: make([]move.Move, 0, cfg.Depth+1),
		table:   table,
		rng:     rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)),
		log:     logger,
	}, nil
}

// Depth returns the memory depth k.
func (p *Predictor) Depth() int {
	return p.depth
}

// #endregion predictor

// #region learn
// Learn increments the count of actualNext following context. A context whose
// length is not k, or any invalid move, is ignored so the table stays
// persistable.
func (p *Predictor) Learn(context []move.Move, actualNext move.Move) {
	if len(context) != p.depth {
		p.log.Warn("ignoring context with wrong length",
			zap.Int("len", len(context)), zap.Int("depth", p.depth))
		return
	}
	for _, m := range context {
		if !m.Valid() {
			p.log.Warn("ignoring context with invalid move", zap.Uint8("move", uint8(m)))
			return
		}
	}
	if !actualNext.Valid() {
		p.log.Warn("ignoring invalid next move", zap.Uint8("move", uint8(actualNext)))
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.table.Learn(NewContext(context), actualNext)
}

// #endregion learn

// #region predict
// PredictPlayerMove returns the move the player most often made after the
// current context. With fewer than k moves of history, or no data for the
// context, it returns a uniformly random move. Equal counts resolve in
// move.All order.
func (p *Predictor) PredictPlayerMove() move.Move {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.predictLocked()
}

func (p *Predictor) predictLocked() move.Move {
	if len(p.history) < p.depth {
		return p.randomLocked()
	}
	ctx := NewContext(p.history[len(p.history)-p.depth:])
	counts := p.table[ctx]
	if counts.Total() == 0 {
		return p.randomLocked()
	}
	best, bestCount := move.Move(0), 0
	for _, m := range move.All {
		if n := counts[m]; n > bestCount {
			best, bestCount = m, n
		}
	}
	return best
}

func (p *Predictor) randomLocked() move.Move {
	return move.All[p.rng.IntN(len(move.All))]
}

// CounterMove returns the move that beats predicted.
func (p *Predictor) CounterMove(predicted move.Move) move.Move {
	return move.Counter(predicted)
}

// ChooseCounter predicts the player's next move and returns it together with
// the move that beats it.
func (p *Predictor) ChooseCounter() (predicted, counter move.Move) {
	predicted = p.PredictPlayerMove()
	return predicted, move.Counter(predicted)
}

// #endregion predict

// #region record
// RecordRound appends the player's move and, once more than k moves are
// known, learns from the (k+1)-move window that just completed. An invalid
// move is ignored.
func (p *Predictor) RecordRound(playerMove move.Move) {
	if !playerMove.Valid() {
		p.log.Warn("ignoring invalid player move", zap.Uint8("move", uint8(playerMove)))
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.history = append(p.history, playerMove)
	if len(p.history) <= p.depth {
		return
	}
	if len(p.history) > p.depth+1 {
		p.history = append(p.history[:0], p.history[len(p.history)-p.depth-1:]...)
	}
	window := p.history
	p.table.Learn(NewContext(window[:p.depth]), window[p.depth])
}

// #endregion record

// #region accessors
// History returns a copy of the retained trailing history (at most k+1 moves).
func (p *Predictor) History() []move.Move {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]move.Move, len(p.history))
	copy(out, p.history)
	return out
}

// Snapshot returns a deep copy of the pattern table for persistence.
func (p *Predictor) Snapshot() Table {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.table.Clone()
}

// #endregion accessors
