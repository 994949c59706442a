package modelstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/kibbyd/rps-adaptive/internal/predictor"
)

// ErrCorrupt marks a model file that exists but cannot be decoded.
var ErrCorrupt = errors.New("corrupt model file")

// #region store-struct
// Store persists a predictor.Table as an indented JSON object keyed by
// comma-delimited contexts. Saves are serialized; the last writer wins.
type Store struct {
	path string
	mu   sync.Mutex
	log  *zap.Logger
}

// New returns a Store for path. logger may be nil.
func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, log: logger.With(zap.String("path", path))}
}

// Path returns the model file location.
func (s *Store) Path() string {
	return s.path
}

// #endregion store-struct

// #region save
// Save overwrites the model file with table. The file is written next to its
// destination and renamed into place so readers never see a partial model.
func (s *Store) Save(table predictor.Table) error {
	data, err := encode(table)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace model: %w", err)
	}
	s.log.Debug("model saved", zap.Int("contexts", len(table)))
	return nil
}

func encode(table predictor.Table) ([]byte, error) {
	if table == nil {
		table = predictor.Table{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// #endregion save

// #region load
// Load reads the model. A missing file is a cold start and yields an empty
// table. A corrupt file is logged and also yields an empty table, so a bad
// model never keeps a game from starting.
func (s *Store) Load() predictor.Table {
	table, err := s.LoadStrict()
	if err != nil {
		s.log.Error("discarding unreadable model, starting empty", zap.Error(err))
		return predictor.Table{}
	}
	s.log.Info("model loaded", zap.Int("contexts", len(table)))
	return table
}

// LoadStrict is Load without the recovery: decode failures are returned
// wrapped in ErrCorrupt. A missing file still returns an empty table.
func (s *Store) LoadStrict() (predictor.Table, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return predictor.Table{}, nil
		}
		return nil, fmt.Errorf("read model: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (predictor.Table, error) {
	table := predictor.Table{}
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if table == nil {
		table = predictor.Table{}
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return canonical(table), nil
}

// canonical re-encodes every context with the canonical move names, so files
// written with aliases still match the predictor's lookups.
func canonical(table predictor.Table) predictor.Table {
	out := make(predictor.Table, len(table))
	for ctx, counts := range table {
		moves, _ := ctx.Moves() // validated
		key := predictor.NewContext(moves)
		merged, ok := out[key]
		if !ok {
			merged = predictor.Counts{}
			out[key] = merged
		}
		for m, n := range counts {
			merged[m] += n
		}
	}
	return out
}

// #endregion load
