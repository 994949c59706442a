package capture

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/kibbyd/rps-adaptive/internal/move"
	"github.com/kibbyd/rps-adaptive/internal/stability"
	"github.com/kibbyd/rps-adaptive/internal/vision"
)

// #region worker
// WorkerConfig configures a capture worker.
type WorkerConfig struct {
	Mirror    bool // flip frames horizontally so the preview reads like a mirror
	Stability stability.Config
}

// DefaultWorkerConfig mirrors frames and uses the default debounce.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{Mirror: true, Stability: stability.DefaultConfig()}
}

// Stats is a snapshot of worker counters.
type Stats struct {
	Frames        uint64
	Recognized    uint64
	Confirmations uint64
}

// Worker polls a Source, classifies each frame and debounces the results.
// The latest sample and the pending confirmation are the only state it
// shares; both go through mailboxes.
//
// Thread-safety: Run must be called once, from one goroutine. Stats and the
// mailboxes may be read from anywhere.
type Worker struct {
	source     Source
	classifier vision.Classifier
	filter     *stability.Filter
	mirror     bool
	latest     *Mailbox[stability.Sample]
	pending    *Mailbox[move.Move]
	now        func() time.Time
	log        *zap.Logger

	frames        atomic.Uint64
	recognized    atomic.Uint64
	confirmations atomic.Uint64
}

// NewWorker wires a worker. latest receives every sample, pending receives
// confirmations. logger may be nil.
func NewWorker(
	src Source,
	classifier vision.Classifier,
	cfg WorkerConfig,
	latest *Mailbox[stability.Sample],
	pending *Mailbox[move.Move],
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		source:     src,
		classifier: classifier,
		filter:     stability.New(cfg.Stability),
		mirror:     cfg.Mirror,
		latest:     latest,
		pending:    pending,
		now:        time.Now,
		log:        logger,
	}
}

// #endregion worker

// #region run
// Run captures until ctx is cancelled or the source stops producing, then
// closes the source. ctx is checked between frames, so cancellation takes
// effect within one frame interval. Returns ctx.Err() or ErrSourceClosed.
func (w *Worker) Run(ctx context.Context) error {
	defer func() {
		if err := w.source.Close(); err != nil {
			w.log.Warn("close frame source", zap.Error(err))
		}
	}()

	frame := gocv.NewMat()
	defer frame.Close()

	w.log.Info("capture started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("capture stopped", zap.Uint64("frames", w.frames.Load()))
			return ctx.Err()
		default:
		}

		if !w.source.Read(&frame) {
			w.log.Warn("frame source ended", zap.Uint64("frames", w.frames.Load()))
			return ErrSourceClosed
		}
		if ctx.Err() != nil {
			continue
		}
		w.step(ctx, &frame)
	}
}

// step processes one frame.
func (w *Worker) step(ctx context.Context, frame *gocv.Mat) {
	w.frames.Add(1)
	if w.mirror && !frame.Empty() {
		gocv.Flip(*frame, frame, 1)
	}

	sample := stability.Unknown(w.now())
	if m, ok := w.classify(ctx, *frame); ok {
		sample = stability.Seen(m, sample.At)
		w.recognized.Add(1)
	}
	w.latest.Offer(sample)

	if m, ok := w.filter.Observe(sample); ok {
		w.confirmations.Add(1)
		w.pending.Offer(m)
		w.log.Info("gesture confirmed", zap.Stringer("move", m))
	}
}

// classify shields the loop from a panicking classifier: the frame just
// counts as unknown.
func (w *Worker) classify(ctx context.Context, frame gocv.Mat) (m move.Move, ok bool) {
	if frame.Empty() {
		return 0, false
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("classifier panicked", zap.Any("panic", r))
			m, ok = 0, false
		}
	}()
	return w.classifier.Classify(ctx, frame)
}

// Stats returns the worker counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Frames:        w.frames.Load(),
		Recognized:    w.recognized.Load(),
		Confirmations: w.confirmations.Load(),
	}
}

// #endregion run
