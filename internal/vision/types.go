package vision

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/kibbyd/rps-adaptive/internal/move"
)

// #region classifier
// Classifier maps a single frame to a gesture. ok is false when no hand is
// present or the read is inconclusive. Implementations must not retain frame.
type Classifier interface {
	Classify(ctx context.Context, frame gocv.Mat) (m move.Move, ok bool)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, frame gocv.Mat) (move.Move, bool)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, frame gocv.Mat) (move.Move, bool) {
	return f(ctx, frame)
}

// #endregion classifier

// #region config
// Config holds the silhouette heuristic's fixed thresholds. They were tuned
// for a laptop webcam at arm's length.
type Config struct {
	ROIFraction float64 // central fraction of width and height kept
	BlurKernel  int     // odd Gaussian kernel size
	MinArea     float64 // noise floor for the largest contour, px²
	DefectDepth float64 // convexity defect depth (1/256 px) counted as a finger valley
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		ROIFraction: 0.6,
		BlurKernel:  7,
		MinArea:     2000,
		DefectDepth: 4000,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if c.ROIFraction <= 0 || c.ROIFraction > 1 {
		return fmt.Errorf("ROIFraction must be in (0, 1], got %v", c.ROIFraction)
	}
	if c.BlurKernel <= 0 || c.BlurKernel%2 == 0 {
		return fmt.Errorf("BlurKernel must be a positive odd number, got %d", c.BlurKernel)
	}
	if c.MinArea < 0 || c.DefectDepth < 0 {
		return fmt.Errorf("thresholds must be >= 0")
	}
	return nil
}

// #endregion config

// #region mapping
// FingerCount estimates raised fingers from the number of deep valleys
// between them: n valleys separate n+1 fingers, none means a closed fist.
func FingerCount(valleys int) int {
	if valleys > 0 {
		return valleys + 1
	}
	return 0
}

// GestureForFingers maps a finger count to a move. Three fingers sits between
// scissors and paper and is rejected rather than guessed.
func GestureForFingers(fingers int) (move.Move, bool) {
	switch {
	case fingers <= 1:
		return move.Rock, true
	case fingers == 2:
		return move.Scissors, true
	case fingers >= 4:
		return move.Paper, true
	default:
		return 0, false
	}
}

// #endregion mapping
